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
	doTypeName    = "gpio_do"
	doTypeVersion = "1.0.0"

	attrGPIOPin       = "gpio_pin"
	attrDefaultValue  = "default_value"
	attrInvertOutput  = "invert_output"
	attrInput         = "input"
	attrPinHandle     = "pin_handle"
)

// DigitalOutput is the gpio_do block type: writes a logical bool input to a
// GPIO output pin, optionally inverted.
type DigitalOutput struct {
	Driver Driver
}

// NewDigitalOutput returns a gpio_do block type backed by d.
func NewDigitalOutput(d Driver) *DigitalOutput { return &DigitalOutput{Driver: d} }

func (t *DigitalOutput) Name() string    { return doTypeName }
func (t *DigitalOutput) Version() string { return doTypeVersion }

func (t *DigitalOutput) DefaultConfigs(name, description string) *attr.Container {
	common := blockstate.CommonConfigs(name, t.Name(), t.Version(), 0)
	specific := attr.NewContainer(attr.KindConfig)
	_ = specific.Add(&attr.Attribute{Name: attrGPIOPin, Value: value.Int(0)})
	_ = specific.Add(&attr.Attribute{Name: attrDefaultValue, Value: value.Bool(false)})
	_ = specific.Add(&attr.Attribute{Name: attrInvertOutput, Value: value.Bool(false)})
	return attr.Merge(common, specific)
}

func (t *DigitalOutput) DefaultInputs() *attr.Container {
	common := blockstate.CommonInputs()
	specific := attr.NewContainer(attr.KindInput)
	_ = specific.Add(&attr.Attribute{Name: attrInput, Value: value.Bool(false)})
	return attr.Merge(common, specific)
}

func (t *DigitalOutput) DefaultOutputs() *attr.Container {
	return blockstate.CommonOutputs()
}

func (t *DigitalOutput) Create(name, description string, initCfg, initIn, initOut *attr.Container) (*blockstate.Definition, error) {
	return blocktype.BuildDefinition(t, name, description, initCfg, initIn, initOut), nil
}

func (t *DigitalOutput) Upgrade(def *blockstate.Definition) (*blockstate.Definition, error) {
	return blocktype.DefaultUpgrade(t, def)
}

func (t *DigitalOutput) Initialize(s *blockstate.State) (*blockstate.State, error) {
	next := s.Clone()

	pin, err := validate.GetConfigInt(next.Config, attrGPIOPin)
	if err != nil {
		return failDO(next, status.ConfigError), nil
	}
	defaultValue, err := validate.GetConfigBool(next.Config, attrDefaultValue)
	if err != nil {
		return failDO(next, status.ConfigError), nil
	}
	invert, err := validate.GetConfigBool(next.Config, attrInvertOutput)
	if err != nil {
		return failDO(next, status.ConfigError), nil
	}

	handle, err := t.Driver.OpenOutput(int(pin))
	if err != nil {
		return failDO(next, status.ProcErr), nil
	}
	if err := t.Driver.Write(handle, physicalLevel(defaultValue, invert)); err != nil {
		return failDO(next, status.ProcErr), nil
	}

	if _, ok := next.Private.Get(attrPinHandle); ok {
		_ = next.Private.Set(attrPinHandle, value.Int(int64(handle)))
	} else {
		_ = next.Private.Add(&attr.Attribute{Name: attrPinHandle, Value: value.Int(int64(handle))})
	}
	_ = next.Outputs.Set(blockstate.AttrValue, value.Bool(defaultValue))
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Initialed)))
	return next, nil
}

func (t *DigitalOutput) Execute(s *blockstate.State, execMethod blockstate.ExecMethod) (*blockstate.State, error) {
	next := s.Clone()

	invert, err := validate.GetConfigBool(next.Config, attrInvertOutput)
	if err != nil {
		return failDO(next, status.ConfigError), nil
	}
	input, err := validate.GetInputBool(next.Inputs, attrInput)
	if err != nil {
		return failDO(next, reasonForDO(err)), nil
	}

	handle, err := pinHandle(next)
	if err != nil {
		return failDO(next, status.ProcErr), nil
	}
	if err := t.Driver.Write(handle, physicalLevel(input, invert)); err != nil {
		return failDO(next, status.ProcErr), nil
	}

	_ = next.Outputs.Set(blockstate.AttrValue, value.Bool(input))
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Normal)))
	return next, nil
}

func (t *DigitalOutput) Delete(s *blockstate.State) (*blockstate.Definition, error) {
	if handle, err := pinHandle(s); err == nil {
		_ = t.Driver.Close(handle)
	}
	return blocktype.DefaultDelete(s)
}

func physicalLevel(logical, invert bool) int {
	v := logical
	if invert {
		v = !v
	}
	if v {
		return 1
	}
	return 0
}

func pinHandle(s *blockstate.State) (Handle, error) {
	a, ok := s.Private.Get(attrPinHandle)
	if !ok {
		return 0, &validate.Error{Kind: validate.ErrNotFound, Attr: attrPinHandle}
	}
	i, ok := a.Value.AsInt()
	if !ok {
		return 0, &validate.Error{Kind: validate.ErrBadType, Attr: attrPinHandle}
	}
	return Handle(i), nil
}

func reasonForDO(err error) status.Tag {
	if ve, ok := err.(*validate.Error); ok && ve.Kind == validate.ErrBadLink {
		return status.BadLink
	}
	return status.InputError
}

func failDO(s *blockstate.State, reason status.Tag) *blockstate.State {
	_ = s.Outputs.Set(blockstate.AttrValue, value.NotActive())
	_ = s.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(reason)))
	return s
}
