// Package dataflow implements the value-propagation channel: taking a
// changed output and writing it into every target block's linked input.
package dataflow

import (
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/value"
)

// Deliverer looks up a live block's input container by name and sets a
// value on it. The registry's per-block actor mailbox implements this so
// that the write lands on the target's serial queue rather than racing its
// own tick: writes into another block's input must be serialized per
// target.
type Deliverer interface {
	DeliverValue(targetBlock, fromBlock, outputName string, v value.Value) error
}

// Propagate applies one dataflow effect: for each target, the Deliverer is
// responsible for locating the input whose Link matches (fromBlock,
// outputName) and writing v into it. A target with no matching linked input
// is the receiving side's problem to log and drop — see blockstate/registry
// wiring, since a stale connections entry must not fail the source's tick.
func Propagate(d Deliverer, fromBlock, outputName string, v value.Value, targets []string) {
	for _, target := range targets {
		_ = d.DeliverValue(target, fromBlock, outputName, v)
	}
}

// WriteIfLinked is the per-target logic a Deliverer implementation runs: it
// finds the input among in whose Link matches (fromBlock, outputName) and
// sets its value. found reports whether a matching linked input exists;
// changed reports whether the write actually altered that input's value
// (the caller uses this to decide whether an input_change trigger is due).
func WriteIfLinked(in *blockstate.State, fromBlock, outputName string, v value.Value) (found, changed bool) {
	for _, a := range in.Inputs.Attributes() {
		if a.Link.SourceBlock == fromBlock && a.Link.SourceOutput == outputName {
			changed = !a.Value.Equal(v)
			a.Value = v
			return true, changed
		}
	}
	return false, false
}
