// Package blocktype defines the contract every block type implements
// and the startup-time registry blocks are looked up through.
package blocktype

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/value"
)

// Type is the contract every block type implements. Type-specific code sees
// a fully-populated state and returns a fully-populated state; the kernel
// controls exec tracking, timers, and propagation around it.
type Type interface {
	// Name is the type_name tag blocks of this type are registered under.
	Name() string

	// Version is the semver version this module currently implements.
	Version() string

	// DefaultConfigs returns this type's config attributes merged over the
	// common configs.
	DefaultConfigs(name, description string) *attr.Container

	// DefaultInputs returns this type's input attributes merged over the
	// common inputs.
	DefaultInputs() *attr.Container

	// DefaultOutputs returns this type's output attributes merged over the
	// common outputs.
	DefaultOutputs() *attr.Container

	// Create builds a persistable Definition from defaults overridden by
	// the caller-supplied initial config/input/output values.
	Create(name, description string, initCfg, initIn, initOut *attr.Container) (*blockstate.Definition, error)

	// Upgrade reconciles a persisted definition whose "version" config
	// differs from Version(). At minimum it stamps the new version.
	Upgrade(def *blockstate.Definition) (*blockstate.Definition, error)

	// Initialize performs type-specific setup: reads config, acquires
	// drivers, populates private attributes, sets the initial output
	// value/status.
	Initialize(s *blockstate.State) (*blockstate.State, error)

	// Execute reads inputs and computes outputs, setting value and status.
	// It must not update exec_count/last_exec or propagate; the kernel
	// owns both.
	Execute(s *blockstate.State, execMethod blockstate.ExecMethod) (*blockstate.State, error)

	// Delete releases drivers and returns the pruned definition.
	Delete(s *blockstate.State) (*blockstate.Definition, error)
}

// BuildDefinition merges common + type-specific defaults with the caller's
// initial overrides, producing the Definition a Type.Create typically
// returns. Concrete types call this instead of re-implementing the merge.
func BuildDefinition(t Type, name, description string, initCfg, initIn, initOut *attr.Container) *blockstate.Definition {
	def := &blockstate.Definition{
		Name:    name,
		Config:  t.DefaultConfigs(name, description),
		Inputs:  t.DefaultInputs(),
		Outputs: t.DefaultOutputs(),
	}
	if initCfg != nil {
		def.Config = attr.Merge(def.Config, initCfg)
	}
	if initIn != nil {
		def.Inputs = attr.Merge(def.Inputs, initIn)
	}
	if initOut != nil {
		def.Outputs = attr.Merge(def.Outputs, initOut)
	}
	return def
}

// DefaultUpgrade is the minimal Type.Upgrade a concrete type can delegate to
// when its only reconciliation work is stamping the current version into
// config.
func DefaultUpgrade(t Type, def *blockstate.Definition) (*blockstate.Definition, error) {
	clone := def.Clone()
	if err := clone.Config.Set(blockstate.AttrVersion, value.String(t.Version())); err != nil {
		return nil, err
	}
	return clone, nil
}

// DefaultDelete is the minimal Type.Delete a concrete type can delegate to
// when teardown needs no driver release beyond returning the pruned
// definition.
func DefaultDelete(s *blockstate.State) (*blockstate.Definition, error) {
	return s.ToDefinition(), nil
}

// Registry is the process-wide, startup-time directory of known block
// types, keyed by type name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register adds a type to the registry, replacing any prior registration
// under the same name.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name()] = t
}

// Get looks up a type by name.
func (r *Registry) Get(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// NeedsUpgrade compares a persisted definition's version config against the
// registered type's current version, using semver so that "1.2.0" and
// "1.2" compare sanely.
func NeedsUpgrade(t Type, persistedVersion string) (bool, error) {
	current, err := semver.NewVersion(t.Version())
	if err != nil {
		return false, fmt.Errorf("type %s has invalid version %q: %w", t.Name(), t.Version(), err)
	}
	persisted, err := semver.NewVersion(persistedVersion)
	if err != nil {
		return false, fmt.Errorf("persisted version %q is invalid: %w", persistedVersion, err)
	}
	return !persisted.Equal(current), nil
}
