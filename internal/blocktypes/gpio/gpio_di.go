package gpio

import (
	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/validate"
	"github.com/lacquerai/blockrt/internal/value"
)

const (
	diTypeName    = "gpio_di"
	diTypeVersion = "1.0.0"

	attrInvertInput = "invert_input"
)

// DigitalInput is the gpio_di block type: reads a GPIO input pin into a
// logical bool output, optionally inverted.
type DigitalInput struct {
	Driver Driver
}

// NewDigitalInput returns a gpio_di block type backed by d.
func NewDigitalInput(d Driver) *DigitalInput { return &DigitalInput{Driver: d} }

func (t *DigitalInput) Name() string    { return diTypeName }
func (t *DigitalInput) Version() string { return diTypeVersion }

func (t *DigitalInput) DefaultConfigs(name, description string) *attr.Container {
	common := blockstate.CommonConfigs(name, t.Name(), t.Version(), 0)
	specific := attr.NewContainer(attr.KindConfig)
	_ = specific.Add(&attr.Attribute{Name: attrGPIOPin, Value: value.Int(0)})
	_ = specific.Add(&attr.Attribute{Name: attrInvertInput, Value: value.Bool(false)})
	return attr.Merge(common, specific)
}

func (t *DigitalInput) DefaultInputs() *attr.Container {
	return blockstate.CommonInputs()
}

func (t *DigitalInput) DefaultOutputs() *attr.Container {
	return blockstate.CommonOutputs()
}

func (t *DigitalInput) Create(name, description string, initCfg, initIn, initOut *attr.Container) (*blockstate.Definition, error) {
	return blocktype.BuildDefinition(t, name, description, initCfg, initIn, initOut), nil
}

func (t *DigitalInput) Upgrade(def *blockstate.Definition) (*blockstate.Definition, error) {
	return blocktype.DefaultUpgrade(t, def)
}

func (t *DigitalInput) Initialize(s *blockstate.State) (*blockstate.State, error) {
	next := s.Clone()

	pin, err := validate.GetConfigInt(next.Config, attrGPIOPin)
	if err != nil {
		return failDI(next, status.ConfigError), nil
	}
	invert, err := validate.GetConfigBool(next.Config, attrInvertInput)
	if err != nil {
		return failDI(next, status.ConfigError), nil
	}

	handle, err := t.Driver.OpenInput(int(pin))
	if err != nil {
		return failDI(next, status.ProcErr), nil
	}
	level, err := t.Driver.Read(handle)
	if err != nil {
		return failDI(next, status.ProcErr), nil
	}

	if _, ok := next.Private.Get(attrPinHandle); ok {
		_ = next.Private.Set(attrPinHandle, value.Int(int64(handle)))
	} else {
		_ = next.Private.Add(&attr.Attribute{Name: attrPinHandle, Value: value.Int(int64(handle))})
	}
	_ = next.Outputs.Set(blockstate.AttrValue, value.Bool(logicalLevel(level, invert)))
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Initialed)))
	return next, nil
}

func (t *DigitalInput) Execute(s *blockstate.State, execMethod blockstate.ExecMethod) (*blockstate.State, error) {
	next := s.Clone()

	invert, err := validate.GetConfigBool(next.Config, attrInvertInput)
	if err != nil {
		return failDI(next, status.ConfigError), nil
	}
	handle, err := pinHandle(next)
	if err != nil {
		return failDI(next, status.ProcErr), nil
	}
	level, err := t.Driver.Read(handle)
	if err != nil {
		return failDI(next, status.ProcErr), nil
	}

	_ = next.Outputs.Set(blockstate.AttrValue, value.Bool(logicalLevel(level, invert)))
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Normal)))
	return next, nil
}

func (t *DigitalInput) Delete(s *blockstate.State) (*blockstate.Definition, error) {
	if handle, err := pinHandle(s); err == nil {
		_ = t.Driver.Close(handle)
	}
	return blocktype.DefaultDelete(s)
}

func logicalLevel(level int, invert bool) bool {
	on := level != 0
	if invert {
		on = !on
	}
	return on
}

func failDI(s *blockstate.State, reason status.Tag) *blockstate.State {
	_ = s.Outputs.Set(blockstate.AttrValue, value.NotActive())
	_ = s.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(reason)))
	return s
}
