package controlflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/controlflow"
)

type fakeTriggerer struct {
	calls []string
}

func (f *fakeTriggerer) TriggerExecute(block string, method blockstate.ExecMethod) error {
	f.calls = append(f.calls, block)
	return nil
}

func TestDispatchFiresEveryTarget(t *testing.T) {
	f := &fakeTriggerer{}
	d := controlflow.NewDispatcher(f)
	d.Dispatch([]string{"b2", "b3"}, blockstate.ExecExecIn)
	assert.Equal(t, []string{"b2", "b3"}, f.calls)
}

func TestCoalescerOfferAndClear(t *testing.T) {
	c := controlflow.NewCoalescer()

	first := c.Offer("b1", blockstate.ExecExecIn)
	assert.True(t, first, "first trigger for an idle block is accepted")

	second := c.Offer("b1", blockstate.ExecExecIn)
	assert.False(t, second, "second trigger while one is pending must be coalesced")

	c.Clear("b1")
	third := c.Offer("b1", blockstate.ExecExecIn)
	assert.True(t, third, "after Clear, a new trigger is accepted again")
}
