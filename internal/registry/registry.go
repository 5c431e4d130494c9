// Package registry is the process-wide directory of live blocks:
// an RWMutex-guarded name->actor map, where each actor is a goroutine with a
// serial mailbox running the execution kernel. This is the only
// process-wide shared state in the runtime; everything else about a block
// is private to its actor goroutine.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/controlflow"
	"github.com/lacquerai/blockrt/internal/dataflow"
	"github.com/lacquerai/blockrt/internal/events"
	"github.com/lacquerai/blockrt/internal/kernel"
	"github.com/lacquerai/blockrt/internal/timer"
	"github.com/lacquerai/blockrt/internal/value"
)

// mailboxSize bounds how many pending messages an actor will buffer; once it
// is full, TriggerExecute and DeliverValue log and drop further messages
// instead of blocking the caller. Control-flow fan-in is coalesced upstream
// (controlflow.Coalescer), so steady-state depth is small; this only
// absorbs bursts.
const mailboxSize = 32

type msgKind int

const (
	msgExecute msgKind = iota
	msgDeliverValue
)

type message struct {
	kind       msgKind
	execMethod blockstate.ExecMethod
	fromBlock  string
	outputName string
	value      value.Value
}

// Metrics groups the Prometheus instruments the registry reports, mirroring
// the counter/gauge/histogram shape used elsewhere in this stack.
type Metrics struct {
	TicksTotal    *prometheus.CounterVec
	TickDuration  *prometheus.HistogramVec
	ActiveBlocks  prometheus.Gauge
	PropagateFail *prometheus.CounterVec
}

// NewMetrics registers the registry's instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockrt_ticks_total",
			Help: "Total number of block execution ticks, labeled by exec_method.",
		}, []string{"exec_method"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "blockrt_tick_duration_seconds",
			Help: "Duration of a single block tick.",
		}, []string{"block_type"}),
		ActiveBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockrt_active_blocks",
			Help: "Number of blocks currently registered.",
		}),
		PropagateFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockrt_propagate_dropped_total",
			Help: "Dataflow writes dropped because the target had no matching linked input.",
		}, []string{"from_block", "output"}),
	}
	reg.MustRegister(m.TicksTotal, m.TickDuration, m.ActiveBlocks, m.PropagateFail)
	return m
}

// Registry is the process-wide directory of live block actors.
type Registry struct {
	mu     sync.RWMutex
	actors map[string]*Actor

	types   *blocktype.Registry
	kernel  *kernel.Kernel
	timers  *timer.Scheduler
	coalesc *controlflow.Coalescer
	metrics *Metrics
	log     zerolog.Logger

	// Events is the optional runtime event stream; nil disables publishing.
	Events *events.Bus
}

// New creates an empty registry bound to a type registry. metrics may be nil
// to disable instrumentation.
func New(types *blocktype.Registry, log zerolog.Logger, metrics *Metrics) *Registry {
	r := &Registry{
		actors:  make(map[string]*Actor),
		types:   types,
		kernel:  kernel.New(types),
		coalesc: controlflow.NewCoalescer(),
		metrics: metrics,
		log:     log,
	}
	r.timers = timer.NewScheduler(r.onTimerFire)
	return r
}

func (r *Registry) publish(e events.Event) {
	if r.Events == nil {
		return
	}
	e.Timestamp = time.Now()
	r.Events.Publish(e)
}

// Spawn creates and starts an actor for a newly-initialized block state and
// arms its timer when execute_interval is positive. It fails if a block with
// that name is already registered.
func (r *Registry) Spawn(s *blockstate.State) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[s.Name]; exists {
		return nil, fmt.Errorf("registry: block %q already registered", s.Name)
	}

	a := &Actor{
		name:     s.Name,
		state:    s,
		mailbox:  make(chan message, mailboxSize),
		registry: r,
		done:     make(chan struct{}),
	}
	r.actors[s.Name] = a
	if r.metrics != nil {
		r.metrics.ActiveBlocks.Inc()
	}
	go a.run()
	if ms, ok := kernel.ExecuteIntervalMS(s); ok && ms > 0 {
		r.timers.Arm(s.Name, time.Duration(ms)*time.Millisecond)
	}
	r.publish(events.Event{Type: events.EventBlockSpawned, Block: s.Name})
	return a, nil
}

// Get looks up a live actor by block name.
func (r *Registry) Get(name string) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[name]
	return a, ok
}

// Names returns the names of all currently registered blocks.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actors))
	for name := range r.actors {
		names = append(names, name)
	}
	return names
}

// Remove stops and drops an actor, cancelling its timer. Type-specific
// teardown that releases drivers must run before Remove is called.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	a, ok := r.actors[name]
	if ok {
		delete(r.actors, name)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.timers.CancelBlock(name)
	close(a.done)
	if r.metrics != nil {
		r.metrics.ActiveBlocks.Dec()
	}
	r.publish(events.Event{Type: events.EventBlockRemoved, Block: name})
}

func (r *Registry) onTimerFire(blockName string) {
	r.publish(events.Event{Type: events.EventTimerFired, Block: blockName})
	_ = r.TriggerExecute(blockName, blockstate.ExecTimer)
}

// TriggerExecute implements controlflow.Triggerer: it enqueues an execute
// trigger on the target's mailbox, coalescing a second trigger while one is
// already pending for a busy target.
func (r *Registry) TriggerExecute(block string, method blockstate.ExecMethod) error {
	a, ok := r.Get(block)
	if !ok {
		return fmt.Errorf("registry: trigger for unknown block %q", block)
	}
	if !r.coalesc.Offer(block, method) {
		return nil // already pending; the existing trigger runs with its own method
	}
	select {
	case a.mailbox <- message{kind: msgExecute, execMethod: method}:
	default:
		r.log.Warn().Str("block", block).Msg("mailbox full, dropping execute trigger")
		r.coalesc.Clear(block)
	}
	return nil
}

// DeliverValue implements dataflow.Deliverer: it enqueues a value write on
// the target's mailbox. The target actor locates the linked input itself
// (dataflow.WriteIfLinked) since only it may mutate its own Inputs
// container.
func (r *Registry) DeliverValue(targetBlock, fromBlock, outputName string, v value.Value) error {
	a, ok := r.Get(targetBlock)
	if !ok {
		return fmt.Errorf("registry: dataflow target %q not registered", targetBlock)
	}
	select {
	case a.mailbox <- message{kind: msgDeliverValue, fromBlock: fromBlock, outputName: outputName, value: v}:
	default:
		r.log.Warn().Str("block", targetBlock).Str("from", fromBlock).Str("output", outputName).
			Msg("mailbox full, dropping dataflow update")
	}
	return nil
}

// Actor is one block instance's single-threaded home: a goroutine draining
// a serial mailbox, running the kernel tick to completion before the next
// message is taken.
type Actor struct {
	name     string
	state    *blockstate.State
	mailbox  chan message
	registry *Registry
	done     chan struct{}

	mu sync.Mutex // guards state for synchronous external reads (Snapshot)
}

// Snapshot returns a deep copy of the actor's current state, safe to read
// from any goroutine.
func (a *Actor) Snapshot() *blockstate.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

func (a *Actor) run() {
	for {
		select {
		case <-a.done:
			return
		case msg := <-a.mailbox:
			a.handle(msg)
		}
	}
}

func (a *Actor) handle(msg message) {
	switch msg.kind {
	case msgDeliverValue:
		a.mu.Lock()
		found, changed := dataflow.WriteIfLinked(a.state, msg.fromBlock, msg.outputName, msg.value)
		a.mu.Unlock()
		switch {
		case !found:
			a.registry.log.Debug().
				Str("block", a.name).Str("from", msg.fromBlock).Str("output", msg.outputName).
				Msg("dataflow update has no matching linked input, dropping")
			if a.registry.metrics != nil {
				a.registry.metrics.PropagateFail.WithLabelValues(msg.fromBlock, msg.outputName).Inc()
			}
		case changed:
			// spec.md:31/96 names an upstream value change on an executing
			// input as one of the three trigger sources (alongside timer and
			// exec_in); route it through TriggerExecute so it coalesces with
			// any control-flow trigger already pending for this block.
			_ = a.registry.TriggerExecute(a.name, blockstate.ExecInputChange)
		}
	case msgExecute:
		a.tick(msg.execMethod)
		a.registry.coalesc.Clear(a.name)
	}
}

func (a *Actor) tick(method blockstate.ExecMethod) {
	start := time.Now()

	a.mu.Lock()
	s := a.state
	a.mu.Unlock()

	next, effects, err := a.registry.kernel.Tick(s, method)
	if err != nil {
		a.registry.log.Error().Err(err).Str("block", a.name).Msg("tick failed")
		return
	}

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	if a.registry.metrics != nil {
		a.registry.metrics.TicksTotal.WithLabelValues(string(method)).Inc()
		a.registry.metrics.TickDuration.WithLabelValues(next.Type).Observe(time.Since(start).Seconds())
	}

	statusStr := ""
	if st, ok := next.Outputs.Get(blockstate.AttrStatus); ok {
		statusStr, _ = st.Value.AsString()
	}
	a.registry.publish(events.Event{
		Type:       events.EventTick,
		Block:      a.name,
		Status:     statusStr,
		ExecMethod: string(method),
	})

	a.applyTimer(next)
	a.applyEffects(effects)
}

func (a *Actor) applyTimer(s *blockstate.State) {
	ms, ok := kernel.ExecuteIntervalMS(s)
	if !ok {
		return
	}
	if ms <= 0 {
		a.registry.timers.CancelBlock(a.name)
		return
	}
	a.registry.timers.Arm(a.name, time.Duration(ms)*time.Millisecond)
}

func (a *Actor) applyEffects(effects []kernel.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case kernel.EffectDataflow:
			dataflow.Propagate(a.registry, e.FromBlock, e.OutputName, e.Value, e.Targets)
			for _, target := range e.Targets {
				a.registry.publish(events.Event{
					Type: events.EventDataflow, Block: e.FromBlock, Output: e.OutputName, Target: target,
				})
			}
		case kernel.EffectControlFlow:
			controlflow.NewDispatcher(a.registry).Dispatch(e.Targets, e.TargetMethod)
			for _, target := range e.Targets {
				a.registry.publish(events.Event{
					Type: events.EventControlFlow, Block: e.FromBlock, Target: target,
				})
			}
		}
	}
}
