package gpio_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktypes/gpio"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/value"
)

type failingDriver struct{ gpio.Driver }

func (failingDriver) OpenOutput(pin int) (gpio.Handle, error) { return 0, errors.New("no such pin") }
func (failingDriver) OpenInput(pin int) (gpio.Handle, error)  { return 0, errors.New("no such pin") }

func newDOState(t *testing.T, d gpio.Driver) (*gpio.DigitalOutput, *blockstate.State) {
	t.Helper()
	do := gpio.NewDigitalOutput(d)
	def, err := do.Create("do1", "", nil, nil, nil)
	require.NoError(t, err)
	s := blockstate.NewState("do1", do.Name(), def)
	s, err = do.Initialize(s)
	require.NoError(t, err)
	return do, s
}

func TestDigitalOutputInitializeWritesDefault(t *testing.T) {
	drv := gpio.NewFakeDriver()
	_, s := newDOState(t, drv)

	require.Len(t, drv.Writes, 1)
	assert.Equal(t, 0, drv.Writes[0].Level, "default_value is false")

	val, _ := s.Outputs.Get(blockstate.AttrValue)
	b, _ := val.Value.AsBool()
	assert.False(t, b)
}

func TestDigitalOutputExecuteWritesInvertedLevel(t *testing.T) {
	drv := gpio.NewFakeDriver()
	do, s := newDOState(t, drv)
	require.NoError(t, s.Config.Set("invert_output", value.Bool(true)))
	require.NoError(t, s.Inputs.Set("input", value.Bool(true)))

	s, err := do.Execute(s, blockstate.ExecManual)
	require.NoError(t, err)

	last := drv.Writes[len(drv.Writes)-1]
	assert.Equal(t, 0, last.Level, "inverted true input writes a low physical level")

	val, _ := s.Outputs.Get(blockstate.AttrValue)
	b, _ := val.Value.AsBool()
	assert.True(t, b, "the logical output mirrors the input, not the inverted physical level")
}

func TestDigitalOutputInitializeDriverFailureIsProcErr(t *testing.T) {
	do, s := func() (*gpio.DigitalOutput, *blockstate.State) {
		do := gpio.NewDigitalOutput(failingDriver{})
		def, err := do.Create("do1", "", nil, nil, nil)
		require.NoError(t, err)
		return do, blockstate.NewState("do1", do.Name(), def)
	}()

	s, err := do.Initialize(s)
	require.NoError(t, err)
	st, _ := s.Outputs.Get(blockstate.AttrStatus)
	sym, _ := st.Value.AsString()
	assert.Equal(t, string(status.ProcErr), sym)
}

func TestDigitalOutputDeleteClosesHandle(t *testing.T) {
	drv := gpio.NewFakeDriver()
	do, s := newDOState(t, drv)

	handleAttr, ok := s.Private.Get("pin_handle")
	require.True(t, ok)
	raw, _ := handleAttr.Value.AsInt()

	_, err := do.Delete(s)
	require.NoError(t, err)

	_, err = drv.Read(gpio.Handle(raw))
	assert.Error(t, err, "the handle was closed by Delete so reading it must fail")
}

func newDIState(t *testing.T, d gpio.Driver) (*gpio.DigitalInput, *blockstate.State) {
	t.Helper()
	di := gpio.NewDigitalInput(d)
	def, err := di.Create("di1", "", nil, nil, nil)
	require.NoError(t, err)
	s := blockstate.NewState("di1", di.Name(), def)
	s, err = di.Initialize(s)
	require.NoError(t, err)
	return di, s
}

func TestDigitalInputReadsCurrentLevel(t *testing.T) {
	drv := gpio.NewFakeDriver()
	di, s := newDIState(t, drv)

	handleAttr, ok := s.Private.Get("pin_handle")
	require.True(t, ok)
	raw, _ := handleAttr.Value.AsInt()
	require.NoError(t, drv.Write(gpio.Handle(raw), 1))

	s, err := di.Execute(s, blockstate.ExecTimer)
	require.NoError(t, err)

	val, _ := s.Outputs.Get(blockstate.AttrValue)
	b, _ := val.Value.AsBool()
	assert.True(t, b)
}

func TestDigitalInputInvert(t *testing.T) {
	drv := gpio.NewFakeDriver()
	di, s := newDIState(t, drv)
	require.NoError(t, s.Config.Set("invert_input", value.Bool(true)))

	s, err := di.Execute(s, blockstate.ExecTimer)
	require.NoError(t, err)

	val, _ := s.Outputs.Get(blockstate.AttrValue)
	b, _ := val.Value.AsBool()
	assert.True(t, b, "level 0 inverted is logical true")
}

func TestDigitalInputProcErrOnReadFailure(t *testing.T) {
	di, s := newDIState(t, gpio.NewFakeDriver())
	_, err := di.Delete(s) // closes the handle
	require.NoError(t, err)

	s, err = di.Execute(s, blockstate.ExecTimer)
	require.NoError(t, err)
	st, _ := s.Outputs.Get(blockstate.AttrStatus)
	sym, _ := st.Value.AsString()
	assert.Equal(t, string(status.ProcErr), sym)
}
