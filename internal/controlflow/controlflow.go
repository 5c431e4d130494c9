// Package controlflow implements the execute-trigger propagation channel:
// firing execute_in on every block connected from an execute_out.
package controlflow

import (
	"sync"

	"github.com/lacquerai/blockrt/internal/blockstate"
)

// Trigger is one pending execute request for a target block.
type Trigger struct {
	Block  string
	Method blockstate.ExecMethod
}

// Dispatcher sends execute triggers to target blocks. Triggerer is the
// registry's per-block actor mailbox.
type Dispatcher struct {
	Triggerer Triggerer
}

// Triggerer enqueues an execute trigger on a block's mailbox.
type Triggerer interface {
	TriggerExecute(block string, method blockstate.ExecMethod) error
}

// NewDispatcher wraps a Triggerer.
func NewDispatcher(t Triggerer) *Dispatcher {
	return &Dispatcher{Triggerer: t}
}

// Dispatch fires an execute_in trigger at every target.
func (d *Dispatcher) Dispatch(targets []string, method blockstate.ExecMethod) {
	for _, target := range targets {
		_ = d.Triggerer.TriggerExecute(target, method)
	}
}

// Coalescer holds at most one pending trigger per target block: a trigger
// offered while another is already pending (enqueued but not yet started)
// is dropped, and the pending one keeps its own exec method. A busy
// target's mailbox therefore need not grow unbounded from repeated
// control-flow fan-in, since only the fact "run once more" matters, not how
// many times it was asked.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]blockstate.ExecMethod
}

// NewCoalescer creates an empty per-target pending-trigger set.
func NewCoalescer() *Coalescer {
	return &Coalescer{pending: make(map[string]blockstate.ExecMethod)}
}

// Offer records a trigger for block, returning true if this is the first
// pending trigger for that block (caller should enqueue), false if one was
// already pending (caller should drop; the existing one still fires).
func (c *Coalescer) Offer(block string, method blockstate.ExecMethod) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[block]; busy {
		return false
	}
	c.pending[block] = method
	return true
}

// Clear removes the pending marker for block once its trigger has been
// delivered and processing has started.
func (c *Coalescer) Clear(block string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, block)
}
