package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/blocktypes/counter"
	"github.com/lacquerai/blockrt/internal/kernel"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/value"
)

func newCounterState(t *testing.T, name string) *blockstate.State {
	t.Helper()
	ct := counter.New()
	def, err := ct.Create(name, "", nil, nil, nil)
	require.NoError(t, err)
	s := blockstate.NewState(name, ct.Name(), def)
	s, err = ct.Initialize(s)
	require.NoError(t, err)
	return s
}

func newKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	types := blocktype.NewRegistry()
	types.Register(counter.New())
	return kernel.New(types)
}

func setBool(t *testing.T, c *attr.Container, name string, v bool) {
	t.Helper()
	require.NoError(t, c.Set(name, value.Bool(v)))
}

func TestTickDisabledGate(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, false)

	next, effects, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)
	assert.Empty(t, effects)

	st, _ := next.Outputs.Get(blockstate.AttrStatus)
	sym, _ := st.Value.AsString()
	assert.Equal(t, string(status.Disabled), sym)

	val, _ := next.Outputs.Get(blockstate.AttrValue)
	assert.True(t, val.Value.IsNotActive())
}

func TestTickEnableNonBoolIsInputError(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	require.NoError(t, s.Inputs.Set(blockstate.AttrEnable, value.NotActive()))

	next, _, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)

	st, _ := next.Outputs.Get(blockstate.AttrStatus)
	sym, _ := st.Value.AsString()
	assert.Equal(t, string(status.InputError), sym)
}

func TestTickCounterBasicIncrement(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)
	setBool(t, s.Inputs, "input", false) // false_true trigger default, start false

	next, _, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)
	val, _ := next.Outputs.Get(blockstate.AttrValue)
	v, _ := val.Value.AsInt()
	assert.Equal(t, int64(0), v, "no transition yet, value holds at initial")

	setBool(t, next.Inputs, "input", true) // false->true qualifying transition
	next, _, err = k.Tick(next, blockstate.ExecManual)
	require.NoError(t, err)
	val, _ = next.Outputs.Get(blockstate.AttrValue)
	v, _ = val.Value.AsInt()
	assert.Equal(t, int64(1), v)
}

func TestTickCounterSaturatesAndWraps(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)
	require.NoError(t, s.Config.Set("trigger", value.Symbol("any_change")))
	require.NoError(t, s.Config.Set("final_value", value.Int(2)))

	toggle := false
	cur := s
	for i := 0; i < 2; i++ {
		toggle = !toggle
		setBool(t, cur.Inputs, "input", toggle)
		next, _, err := k.Tick(cur, blockstate.ExecManual)
		require.NoError(t, err)
		cur = next
	}
	val, _ := cur.Outputs.Get(blockstate.AttrValue)
	v, _ := val.Value.AsInt()
	assert.Equal(t, int64(2), v, "value saturates at final_value")
	carry, _ := cur.Outputs.Get("carry")
	cv, _ := carry.Value.AsBool()
	assert.True(t, cv)

	// One more qualifying transition wraps back to initial_value with carry=false.
	toggle = !toggle
	setBool(t, cur.Inputs, "input", toggle)
	cur, _, err := k.Tick(cur, blockstate.ExecManual)
	require.NoError(t, err)
	val, _ = cur.Outputs.Get(blockstate.AttrValue)
	v, _ = val.Value.AsInt()
	assert.Equal(t, int64(0), v)
	carry, _ = cur.Outputs.Get("carry")
	cv, _ = carry.Value.AsBool()
	assert.False(t, cv)
}

func TestTickExecTrackingOnlyOnNormal(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)

	next, _, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)

	count, _ := next.Private.Get(blockstate.AttrExecCount)
	cv, _ := count.Value.AsInt()
	assert.Equal(t, int64(1), cv)

	method, _ := next.Private.Get(blockstate.AttrExecMethod)
	mv, _ := method.Value.AsString()
	assert.Equal(t, string(blockstate.ExecManual), mv)
}

func TestTickNegativeIntervalIsInputError(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)
	require.NoError(t, s.Config.Set(blockstate.AttrExecuteInterval, value.Int(-1)))

	next, _, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)

	st, _ := next.Outputs.Get(blockstate.AttrStatus)
	sym, _ := st.Value.AsString()
	assert.Equal(t, string(status.InputError), sym)

	val, _ := next.Outputs.Get(blockstate.AttrValue)
	assert.True(t, val.Value.IsNotActive(), "a failed timer rearm blanks outputs")
}

func TestDataflowEffectsEmittedOnChange(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)
	setBool(t, s.Inputs, "input", true) // false->true qualifying transition

	valAttr, _ := s.Outputs.Get(blockstate.AttrValue)
	valAttr.AddConnection("downstream")

	_, effects, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)

	var found bool
	for _, e := range effects {
		if e.Kind == kernel.EffectDataflow && e.OutputName == blockstate.AttrValue {
			found = true
			assert.Equal(t, []string{"downstream"}, e.Targets)
		}
	}
	assert.True(t, found, "value change with a connection must emit a dataflow effect")
}

func TestDataflowEffectsSkipExecuteOut(t *testing.T) {
	k := newKernel(t)
	s := newCounterState(t, "c1")
	setBool(t, s.Inputs, blockstate.AttrEnable, true)

	eo, _ := s.Outputs.Get(blockstate.AttrExecuteOut)
	eo.AddConnection("downstream")

	_, effects, err := k.Tick(s, blockstate.ExecManual)
	require.NoError(t, err)

	for _, e := range effects {
		if e.Kind == kernel.EffectDataflow {
			assert.NotEqual(t, blockstate.AttrExecuteOut, e.OutputName, "execute_out must never appear as a dataflow effect")
		}
	}
}
