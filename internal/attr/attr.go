// Package attr implements the ordered attribute containers that back every
// block's Config, Input, Output, and Private attribute sets.
//
// Ordering is preserved with an ordered map rather than a plain Go map
// because the dataflow propagator compares old and new output sequences
// positionally; a bare map has no iteration discipline and would silently
// break that comparison.
package attr

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/lacquerai/blockrt/internal/value"
)

// Kind identifies which of the four attribute containers an Attribute belongs to.
type Kind int

const (
	KindConfig Kind = iota
	KindInput
	KindOutput
	KindPrivate
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Link is an input's back-reference to the output that feeds it. An empty
// Link means the input is unlinked and its value is locally supplied.
type Link struct {
	SourceBlock  string
	SourceOutput string
}

// Empty reports whether the link is unset.
func (l Link) Empty() bool { return l.SourceBlock == "" && l.SourceOutput == "" }

// Attribute is a single named, typed cell. Link is only meaningful on
// KindInput attributes; Connections only on KindOutput attributes.
type Attribute struct {
	Name        string
	Value       value.Value
	Link        Link
	Connections []string // ordered, deduplicated set of target block names
}

// Clone returns a deep-enough copy for safe mutation (Connections is copied).
func (a *Attribute) Clone() *Attribute {
	clone := *a
	if a.Connections != nil {
		clone.Connections = append([]string(nil), a.Connections...)
	}
	return &clone
}

// AddConnection appends target to the attribute's connection set if absent.
func (a *Attribute) AddConnection(target string) {
	for _, c := range a.Connections {
		if c == target {
			return
		}
	}
	a.Connections = append(a.Connections, target)
}

// RemoveConnection drops target from the attribute's connection set.
func (a *Attribute) RemoveConnection(target string) {
	out := a.Connections[:0]
	for _, c := range a.Connections {
		if c != target {
			out = append(out, c)
		}
	}
	a.Connections = out
}

// Container is an ordered, name-unique sequence of attributes of one Kind.
type Container struct {
	kind Kind
	om   *orderedmap.OrderedMap[string, *Attribute]
}

// NewContainer creates an empty container of the given kind.
func NewContainer(kind Kind) *Container {
	return &Container{kind: kind, om: orderedmap.New[string, *Attribute]()}
}

// Kind returns the container's attribute kind.
func (c *Container) Kind() Kind { return c.kind }

// Len returns the number of attributes in the container.
func (c *Container) Len() int { return c.om.Len() }

// Get looks up an attribute by name.
func (c *Container) Get(name string) (*Attribute, bool) {
	return c.om.Get(name)
}

// Add appends a new attribute. It fails if the name already exists.
func (c *Container) Add(a *Attribute) error {
	if _, exists := c.om.Get(a.Name); exists {
		return fmt.Errorf("attribute %q already present in %s container", a.Name, c.kind)
	}
	c.om.Set(a.Name, a)
	return nil
}

// Set overwrites the value of an existing attribute, leaving Link/Connections
// untouched. It returns an error if the attribute is not present.
func (c *Container) Set(name string, v value.Value) error {
	existing, ok := c.om.Get(name)
	if !ok {
		return fmt.Errorf("attribute %q not found in %s container", name, c.kind)
	}
	existing.Value = v
	return nil
}

// Names returns the attribute names in container order.
func (c *Container) Names() []string {
	names := make([]string, 0, c.om.Len())
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Attributes returns the attributes themselves in container order.
func (c *Container) Attributes() []*Attribute {
	out := make([]*Attribute, 0, c.om.Len())
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Clone returns a deep-enough copy of the container (attributes are cloned).
func (c *Container) Clone() *Container {
	clone := NewContainer(c.kind)
	for pair := c.om.Oldest(); pair != nil; pair = pair.Next() {
		_ = clone.Add(pair.Value.Clone())
	}
	return clone
}

// Merge produces the union of defaults and overrides, keyed by name:
// overrides win on shared names, defaults set the base order, and override
// names absent from defaults are appended in their given order.
func Merge(defaults, overrides *Container) *Container {
	kind := defaults.kind
	merged := NewContainer(kind)

	for _, d := range defaults.Attributes() {
		a := d.Clone()
		if o, ok := overrides.Get(d.Name); ok {
			a.Value = o.Value
			if kind == KindInput {
				a.Link = o.Link
			}
			if kind == KindOutput {
				a.Connections = append([]string(nil), o.Connections...)
			}
		}
		_ = merged.Add(a)
	}

	for _, o := range overrides.Attributes() {
		if _, exists := defaults.Get(o.Name); !exists {
			_ = merged.Add(o.Clone())
		}
	}

	return merged
}
