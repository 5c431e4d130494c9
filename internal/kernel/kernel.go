// Package kernel implements the generic per-tick execution cycle shared by
// every block type: enable gate, delegation to the type's Execute,
// status-driven exec tracking, timer re-arm, and the two propagation
// effects (dataflow, control-flow) that the registry carries out.
package kernel

import (
	"fmt"
	"time"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/value"
)

const execCountRollover = 1_000_000_000

// EffectKind discriminates the two propagation disciplines a tick can emit.
type EffectKind int

const (
	// EffectDataflow: an output's value changed; push it to every block
	// linked from that output.
	EffectDataflow EffectKind = iota
	// EffectControlFlow: execute_out fired; trigger every connected target.
	EffectControlFlow
)

// Effect is one outbound message produced by a tick, for the registry to
// deliver. Dataflow effects carry Value; control-flow effects carry only the
// exec method the target should run under.
type Effect struct {
	Kind         EffectKind
	FromBlock    string
	OutputName   string
	Value        value.Value
	Targets      []string
	TargetMethod blockstate.ExecMethod // control-flow only
}

// Clock returns the current time, monotonic-friendly; overridable in tests.
type Clock func() time.Time

// Kernel runs ticks for a type registry, with an injectable clock.
type Kernel struct {
	Types *blocktype.Registry
	Now   Clock
}

// New creates a Kernel bound to a type registry, defaulting Now to time.Now.
func New(types *blocktype.Registry) *Kernel {
	return &Kernel{Types: types, Now: time.Now}
}

// Tick runs one full execution cycle for s under execMethod, returning the
// new state and the effects the registry must carry out.
func (k *Kernel) Tick(s *blockstate.State, execMethod blockstate.ExecMethod) (*blockstate.State, []Effect, error) {
	t, ok := k.Types.Get(s.Type)
	if !ok {
		return s, nil, fmt.Errorf("kernel: unknown block type %q for block %q", s.Type, s.Name)
	}

	prevOutputs := s.Outputs.Clone()
	next := s.Clone()

	enableVal, gateErr := k.readEnable(next)
	switch {
	case gateErr != nil:
		setAllOutputsInactive(next.Outputs, gateErr)
	case !enableVal:
		setAllOutputsInactive(next.Outputs, status.Disabled)
	default:
		executed, err := t.Execute(next, execMethod)
		if err != nil {
			return s, nil, fmt.Errorf("kernel: block %q execute: %w", s.Name, err)
		}
		next = executed

		if currentStatus(next.Outputs) == status.Normal {
			k.updateTracking(next, execMethod)
		}
	}

	if timerErr := k.rearmTimer(next); timerErr != status.Tag("") {
		setAllOutputsInactiveExceptStatus(next.Outputs, timerErr)
	}

	effects := k.dataflowEffects(s.Name, prevOutputs, next.Outputs)
	effects = append(effects, k.controlFlowEffects(s.Name, next.Outputs)...)

	return next, effects, nil
}

// readEnable implements step 1's classification of the enable input: a
// non-bool value (including not_active/empty) is an input_error, not a
// gate-open condition.
func (k *Kernel) readEnable(s *blockstate.State) (bool, status.Tag) {
	a, ok := s.Inputs.Get(blockstate.AttrEnable)
	if !ok {
		return false, status.InputError
	}
	b, ok := a.Value.AsBool()
	if !ok {
		return false, status.InputError
	}
	return b, status.Tag("")
}

func currentStatus(outputs *attr.Container) status.Tag {
	a, ok := outputs.Get(blockstate.AttrStatus)
	if !ok {
		return status.ProcessError
	}
	sym, ok := a.Value.AsString()
	if !ok {
		return status.ProcessError
	}
	return status.Tag(sym)
}

// setAllOutputsInactive implements the enable-gate failure branches: every
// output except status goes to not_active, and status carries the reason.
func setAllOutputsInactive(outputs *attr.Container, reason status.Tag) {
	for _, a := range outputs.Attributes() {
		if a.Name == blockstate.AttrStatus {
			continue
		}
		a.Value = value.NotActive()
	}
	_ = outputs.Set(blockstate.AttrStatus, value.Symbol(string(reason)))
}

// setAllOutputsInactiveExceptStatus is identical to setAllOutputsInactive;
// named separately because the timer re-arm failure branch is conceptually
// distinct even though the effect on the container is the same shape.
func setAllOutputsInactiveExceptStatus(outputs *attr.Container, reason status.Tag) {
	setAllOutputsInactive(outputs, reason)
}

// updateTracking implements step 3's normal-path private-attribute update:
// exec_method, last_exec (monotonic microseconds), and exec_count with
// modulo-1e9 rollover.
func (k *Kernel) updateTracking(s *blockstate.State, execMethod blockstate.ExecMethod) {
	_ = s.Private.Set(blockstate.AttrExecMethod, value.Symbol(string(execMethod)))
	_ = s.Private.Set(blockstate.AttrLastExec, value.Int(k.Now().UnixMicro()))

	countAttr, ok := s.Private.Get(blockstate.AttrExecCount)
	var count int64
	if ok {
		if i, ok := countAttr.Value.AsInt(); ok {
			count = i
		}
	}
	count++
	if count >= execCountRollover {
		count = 0
	}
	_ = s.Private.Set(blockstate.AttrExecCount, value.Int(count))
}

// rearmTimer returns the status tag the kernel should force when
// execute_interval is unusable, or status.Tag("") when it is valid. The
// scheduler itself is wired in by the registry (kernel.Tick does no I/O),
// so rearmTimer only validates execute_interval; actual arming is the
// registry's job, driven by ExecuteIntervalMS after the tick.
func (k *Kernel) rearmTimer(s *blockstate.State) status.Tag {
	a, ok := s.Config.Get(blockstate.AttrExecuteInterval)
	if !ok {
		return status.ConfigError
	}
	i, ok := a.Value.AsInt()
	if !ok {
		return status.ConfigError
	}
	if i < 0 {
		return status.InputError
	}
	return status.Tag("")
}

// ExecuteIntervalMS returns the block's configured timer interval, for the
// registry to act on after a successful tick.
func ExecuteIntervalMS(s *blockstate.State) (int64, bool) {
	a, ok := s.Config.Get(blockstate.AttrExecuteInterval)
	if !ok {
		return 0, false
	}
	i, ok := a.Value.AsInt()
	if !ok || i < 0 {
		return 0, false
	}
	return i, true
}

// dataflowEffects implements step 5: positional comparison of the previous
// and new output sequences, skipping execute_out, emitting one Effect per
// changed output that has connections.
func (k *Kernel) dataflowEffects(blockName string, prev, next *attr.Container) []Effect {
	prevAttrs := prev.Attributes()
	nextAttrs := next.Attributes()

	var effects []Effect
	n := len(prevAttrs)
	if len(nextAttrs) < n {
		n = len(nextAttrs)
	}
	for i := 0; i < n; i++ {
		p := prevAttrs[i]
		c := nextAttrs[i]
		if c.Name != p.Name || c.Name == blockstate.AttrExecuteOut {
			continue
		}
		if p.Value.Equal(c.Value) {
			continue
		}
		if len(c.Connections) == 0 {
			continue
		}
		effects = append(effects, Effect{
			Kind:       EffectDataflow,
			FromBlock:  blockName,
			OutputName: c.Name,
			Value:      c.Value,
			Targets:    append([]string(nil), c.Connections...),
		})
	}
	return effects
}

// controlFlowEffects implements step 6: execute_out's connections each get
// an execute trigger tagged exec_in.
func (k *Kernel) controlFlowEffects(blockName string, outputs *attr.Container) []Effect {
	a, ok := outputs.Get(blockstate.AttrExecuteOut)
	if !ok || len(a.Connections) == 0 {
		return nil
	}
	return []Effect{{
		Kind:         EffectControlFlow,
		FromBlock:    blockName,
		OutputName:   blockstate.AttrExecuteOut,
		Targets:      append([]string(nil), a.Connections...),
		TargetMethod: blockstate.ExecExecIn,
	}}
}
