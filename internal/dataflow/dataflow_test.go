package dataflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/dataflow"
	"github.com/lacquerai/blockrt/internal/value"
)

func newStateWithLinkedInput(name, sourceBlock, sourceOutput string) *blockstate.State {
	in := attr.NewContainer(attr.KindInput)
	_ = in.Add(&attr.Attribute{
		Name:  "input",
		Value: value.Empty(),
		Link:  attr.Link{SourceBlock: sourceBlock, SourceOutput: sourceOutput},
	})
	return &blockstate.State{
		Name:    name,
		Inputs:  in,
		Config:  attr.NewContainer(attr.KindConfig),
		Outputs: attr.NewContainer(attr.KindOutput),
		Private: attr.NewContainer(attr.KindPrivate),
	}
}

func TestWriteIfLinkedMatch(t *testing.T) {
	s := newStateWithLinkedInput("b2", "b1", "value")

	found, changed := dataflow.WriteIfLinked(s, "b1", "value", value.Int(7))
	require.True(t, found)
	assert.True(t, changed)

	a, _ := s.Inputs.Get("input")
	v, _ := a.Value.AsInt()
	assert.Equal(t, int64(7), v)
}

func TestWriteIfLinkedNoMatch(t *testing.T) {
	s := newStateWithLinkedInput("b2", "b1", "value")

	found, changed := dataflow.WriteIfLinked(s, "other", "value", value.Int(7))
	assert.False(t, found)
	assert.False(t, changed)
}

func TestWriteIfLinkedUnchangedValue(t *testing.T) {
	s := newStateWithLinkedInput("b2", "b1", "value")
	_, _ = dataflow.WriteIfLinked(s, "b1", "value", value.Int(7))

	found, changed := dataflow.WriteIfLinked(s, "b1", "value", value.Int(7))
	assert.True(t, found)
	assert.False(t, changed)
}

type fakeDeliverer struct {
	calls []string
}

func (f *fakeDeliverer) DeliverValue(targetBlock, fromBlock, outputName string, v value.Value) error {
	f.calls = append(f.calls, targetBlock)
	return nil
}

func TestPropagateFansOutToAllTargets(t *testing.T) {
	f := &fakeDeliverer{}
	dataflow.Propagate(f, "b1", "value", value.Int(1), []string{"b2", "b3"})
	assert.Equal(t, []string{"b2", "b3"}, f.calls)
}
