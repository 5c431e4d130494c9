// Package blockstate defines the runtime tuple that binds a block instance
// to its module type and four attribute containers, and the reduced
// "definition" shape used for persistence.
package blockstate

import (
	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/status"
	"github.com/lacquerai/blockrt/internal/value"
)

// ExecMethod records why a tick ran.
type ExecMethod string

const (
	ExecTimer       ExecMethod = "timer"
	ExecExecIn      ExecMethod = "exec_in"
	ExecInputChange ExecMethod = "input_change"
	ExecManual      ExecMethod = "manual"
)

// Definition is the persisted shape of a block: config, inputs, and outputs,
// with no private state.
type Definition struct {
	Name    string
	Config  *attr.Container
	Inputs  *attr.Container
	Outputs *attr.Container
}

// Clone returns a deep-enough copy of the definition.
func (d *Definition) Clone() *Definition {
	return &Definition{
		Name:    d.Name,
		Config:  d.Config.Clone(),
		Inputs:  d.Inputs.Clone(),
		Outputs: d.Outputs.Clone(),
	}
}

// State is the full runtime tuple bound to a live block instance.
type State struct {
	Name    string
	Type    string // block_type selector into the type registry
	Config  *attr.Container
	Inputs  *attr.Container
	Outputs *attr.Container
	Private *attr.Container
}

// NewState builds a full runtime State from a persisted Definition, adding
// freshly-initialized private attributes.
func NewState(name, blockType string, def *Definition) *State {
	return &State{
		Name:    name,
		Type:    blockType,
		Config:  def.Config.Clone(),
		Inputs:  def.Inputs.Clone(),
		Outputs: def.Outputs.Clone(),
		Private: CommonPrivate(),
	}
}

// ToDefinition strips the private attributes, producing the persistable shape.
func (s *State) ToDefinition() *Definition {
	return &Definition{
		Name:    s.Name,
		Config:  s.Config.Clone(),
		Inputs:  s.Inputs.Clone(),
		Outputs: s.Outputs.Clone(),
	}
}

// Clone returns a deep-enough copy of the state.
func (s *State) Clone() *State {
	return &State{
		Name:    s.Name,
		Type:    s.Type,
		Config:  s.Config.Clone(),
		Inputs:  s.Inputs.Clone(),
		Outputs: s.Outputs.Clone(),
		Private: s.Private.Clone(),
	}
}

// CommonConfigs returns the configs every block must carry.
func CommonConfigs(name, blockType, version string, executeIntervalMS int64) *attr.Container {
	c := attr.NewContainer(attr.KindConfig)
	_ = c.Add(&attr.Attribute{Name: AttrBlockName, Value: value.String(name)})
	_ = c.Add(&attr.Attribute{Name: AttrBlockType, Value: value.String(blockType)})
	_ = c.Add(&attr.Attribute{Name: AttrVersion, Value: value.String(version)})
	_ = c.Add(&attr.Attribute{Name: AttrExecuteInterval, Value: value.Int(executeIntervalMS)})
	return c
}

// CommonInputs returns the inputs every block must carry.
func CommonInputs() *attr.Container {
	c := attr.NewContainer(attr.KindInput)
	_ = c.Add(&attr.Attribute{Name: AttrEnable, Value: value.Bool(true)})
	_ = c.Add(&attr.Attribute{Name: AttrExecuteIn, Value: value.Empty()})
	return c
}

// CommonOutputs returns the outputs every block must carry.
func CommonOutputs() *attr.Container {
	c := attr.NewContainer(attr.KindOutput)
	_ = c.Add(&attr.Attribute{Name: AttrExecuteOut, Value: value.Empty()})
	_ = c.Add(&attr.Attribute{Name: AttrStatus, Value: value.Symbol(string(status.Created))})
	_ = c.Add(&attr.Attribute{Name: AttrValue, Value: value.NotActive()})
	return c
}

// CommonPrivate returns the private attributes every block must carry.
func CommonPrivate() *attr.Container {
	c := attr.NewContainer(attr.KindPrivate)
	_ = c.Add(&attr.Attribute{Name: AttrExecCount, Value: value.Int(0)})
	_ = c.Add(&attr.Attribute{Name: AttrLastExec, Value: value.Int(0)})
	_ = c.Add(&attr.Attribute{Name: AttrTimerRef, Value: value.Empty()})
	_ = c.Add(&attr.Attribute{Name: AttrExecMethod, Value: value.Symbol("")})
	return c
}

// Common attribute names shared across all block types.
const (
	AttrBlockName       = "block_name"
	AttrBlockType       = "block_type"
	AttrVersion         = "version"
	AttrExecuteInterval = "execute_interval"
	AttrEnable          = "enable"
	AttrExecuteIn       = "execute_in"
	AttrExecuteOut      = "execute_out"
	AttrStatus          = "status"
	AttrValue           = "value"
	AttrExecCount       = "exec_count"
	AttrLastExec        = "last_exec"
	AttrTimerRef        = "timer_ref"
	AttrExecMethod      = "exec_method"
)
