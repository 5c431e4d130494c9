// Package counter implements the counter block type: an edge-triggered
// accumulator that increments on a configured input transition and saturates
// at final_value, wrapping back to initial_value on the next qualifying
// transition.
package counter

import (
	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/validate"
	"github.com/lacquerai/blockrt/internal/value"
)

const (
	typeName    = "counter"
	typeVersion = "1.0.0"

	attrTrigger      = "trigger"
	attrInitialValue = "initial_value"
	attrFinalValue   = "final_value"
	attrInput        = "input"
	attrCarry        = "carry"
	attrLastInput    = "last_input"

	triggerAnyChange = "any_change"
	triggerTrueFalse = "true_false"
	triggerFalseTrue = "false_true"
)

// Type is the counter block type.
type Type struct{}

// New returns a counter block type ready for registration.
func New() *Type { return &Type{} }

func (t *Type) Name() string    { return typeName }
func (t *Type) Version() string { return typeVersion }

func (t *Type) DefaultConfigs(name, description string) *attr.Container {
	common := blockstate.CommonConfigs(name, t.Name(), t.Version(), 0)
	specific := attr.NewContainer(attr.KindConfig)
	_ = specific.Add(&attr.Attribute{Name: attrTrigger, Value: value.Symbol(triggerFalseTrue)})
	_ = specific.Add(&attr.Attribute{Name: attrInitialValue, Value: value.Int(0)})
	_ = specific.Add(&attr.Attribute{Name: attrFinalValue, Value: value.Int(9)})
	return attr.Merge(common, specific)
}

func (t *Type) DefaultInputs() *attr.Container {
	common := blockstate.CommonInputs()
	specific := attr.NewContainer(attr.KindInput)
	_ = specific.Add(&attr.Attribute{Name: attrInput, Value: value.Bool(false)})
	return attr.Merge(common, specific)
}

func (t *Type) DefaultOutputs() *attr.Container {
	common := blockstate.CommonOutputs()
	specific := attr.NewContainer(attr.KindOutput)
	_ = specific.Add(&attr.Attribute{Name: attrCarry, Value: value.NotActive()})
	return attr.Merge(common, specific)
}

func (t *Type) Create(name, description string, initCfg, initIn, initOut *attr.Container) (*blockstate.Definition, error) {
	return blocktype.BuildDefinition(t, name, description, initCfg, initIn, initOut), nil
}

func (t *Type) Upgrade(def *blockstate.Definition) (*blockstate.Definition, error) {
	return blocktype.DefaultUpgrade(t, def)
}

func (t *Type) Initialize(s *blockstate.State) (*blockstate.State, error) {
	next := s.Clone()
	if _, ok := next.Private.Get(attrLastInput); !ok {
		_ = next.Private.Add(&attr.Attribute{Name: attrLastInput, Value: value.Bool(false)})
	}
	initial, err := validate.GetConfigInt(next.Config, attrInitialValue)
	if err != nil {
		_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.ConfigError)))
		return next, nil
	}
	_ = next.Outputs.Set(blockstate.AttrValue, value.Int(initial))
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Initialed)))
	return next, nil
}

func (t *Type) Execute(s *blockstate.State, execMethod blockstate.ExecMethod) (*blockstate.State, error) {
	next := s.Clone()

	trigger, err := validate.GetConfigString(next.Config, attrTrigger)
	if err != nil {
		return fail(next, status.ConfigError), nil
	}
	initial, err := validate.GetConfigInt(next.Config, attrInitialValue)
	if err != nil {
		return fail(next, status.ConfigError), nil
	}
	final, err := validate.GetConfigInt(next.Config, attrFinalValue)
	if err != nil {
		return fail(next, status.ConfigError), nil
	}

	current, err := validate.GetInputBool(next.Inputs, attrInput)
	if err != nil {
		return fail(next, reasonFor(err)), nil
	}

	lastAttr, _ := next.Private.Get(attrLastInput)
	last, _ := lastAttr.Value.AsBool()

	curValAttr, _ := next.Outputs.Get(blockstate.AttrValue)
	curVal, ok := curValAttr.Value.AsInt()
	if !ok {
		curVal = initial
	}

	newVal := curVal
	carry := value.NotActive()
	if transitioned(trigger, last, current) {
		candidate := curVal + 1
		switch {
		case candidate > final:
			newVal = initial
			carry = value.Bool(false)
		case candidate == final:
			newVal = candidate
			carry = value.Bool(true)
		default:
			newVal = candidate
		}
	}

	_ = next.Private.Set(attrLastInput, value.Bool(current))
	_ = next.Outputs.Set(blockstate.AttrValue, value.Int(newVal))
	_ = next.Outputs.Set(attrCarry, carry)
	_ = next.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(status.Normal)))
	return next, nil
}

func (t *Type) Delete(s *blockstate.State) (*blockstate.Definition, error) {
	return blocktype.DefaultDelete(s)
}

func transitioned(trigger string, last, current bool) bool {
	switch trigger {
	case triggerAnyChange:
		return last != current
	case triggerTrueFalse:
		return last && !current
	case triggerFalseTrue:
		return !last && current
	default:
		return false
	}
}

func reasonFor(err error) status.Tag {
	if ve, ok := err.(*validate.Error); ok && ve.Kind == validate.ErrBadLink {
		return status.BadLink
	}
	return status.InputError
}

func fail(s *blockstate.State, reason status.Tag) *blockstate.State {
	_ = s.Outputs.Set(blockstate.AttrValue, value.NotActive())
	_ = s.Outputs.Set(attrCarry, value.NotActive())
	_ = s.Outputs.Set(blockstate.AttrStatus, value.Symbol(string(reason)))
	return s
}
