// Package validate implements the type-checked attribute accessors shared
// by every block type. Accessors perform lookup, shape check (is the
// name present in the expected container kind), and a domain check (is the
// value the right Go-level variant, and in range where applicable), folding
// all three failure classes into a uniform ErrorKind.
package validate

import (
	"fmt"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/value"
)

// ErrorKind enumerates the validator's failure taxonomy.
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrBadType
	ErrRange
	ErrBadLink
	ErrNotConfig
	ErrNotInput
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "not_found"
	case ErrBadType:
		return "bad_type"
	case ErrRange:
		return "range"
	case ErrBadLink:
		return "bad_link"
	case ErrNotConfig:
		return "not_config"
	case ErrNotInput:
		return "not_input"
	default:
		return "unknown"
	}
}

// Error reports a validator failure for a specific attribute.
type Error struct {
	Kind ErrorKind
	Attr string
}

func (e *Error) Error() string {
	return fmt.Sprintf("attribute %q: %s", e.Attr, e.Kind)
}

func fail(kind ErrorKind, name string) (value.Value, error) {
	return value.Value{}, &Error{Kind: kind, Attr: name}
}

// GetConfig performs the shape check (container must be KindConfig) and
// returns the raw value with no domain narrowing.
func GetConfig(c *attr.Container, name string) (value.Value, error) {
	if c.Kind() != attr.KindConfig {
		return fail(ErrNotConfig, name)
	}
	a, ok := c.Get(name)
	if !ok {
		return fail(ErrNotFound, name)
	}
	return a.Value, nil
}

// GetInput performs the shape check (container must be KindInput) and
// surfaces bad_link: an input that is empty while linked means the upstream
// output has not published yet.
func GetInput(c *attr.Container, name string) (value.Value, error) {
	if c.Kind() != attr.KindInput {
		return fail(ErrNotInput, name)
	}
	a, ok := c.Get(name)
	if !ok {
		return fail(ErrNotFound, name)
	}
	if a.Value.IsEmpty() && !a.Link.Empty() {
		return fail(ErrBadLink, name)
	}
	return a.Value, nil
}

// GetConfigBool narrows a config value to bool.
func GetConfigBool(c *attr.Container, name string) (bool, error) {
	v, err := GetConfig(c, name)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, &Error{Kind: ErrBadType, Attr: name}
	}
	return b, nil
}

// GetConfigString narrows a config value to string.
func GetConfigString(c *attr.Container, name string) (string, error) {
	v, err := GetConfig(c, name)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", &Error{Kind: ErrBadType, Attr: name}
	}
	return s, nil
}

// GetConfigInt narrows a config value to int64.
func GetConfigInt(c *attr.Container, name string) (int64, error) {
	v, err := GetConfig(c, name)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, &Error{Kind: ErrBadType, Attr: name}
	}
	return i, nil
}

// GetConfigIntRange narrows a config value to int64 and checks min<=v<=max.
func GetConfigIntRange(c *attr.Container, name string, min, max int64) (int64, error) {
	i, err := GetConfigInt(c, name)
	if err != nil {
		return 0, err
	}
	if i < min || i > max {
		return 0, &Error{Kind: ErrRange, Attr: name}
	}
	return i, nil
}

// GetConfigFloat narrows a config value to float64.
func GetConfigFloat(c *attr.Container, name string) (float64, error) {
	v, err := GetConfig(c, name)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, &Error{Kind: ErrBadType, Attr: name}
	}
	return f, nil
}

// GetInputBool narrows an input value to bool. Any non-bool value, including
// not_active, fails with bad_type; callers that must accept not_active use
// GetInputAny and branch on Kind(). This helper is for the common "must be a
// concrete bool" case.
func GetInputBool(c *attr.Container, name string) (bool, error) {
	v, err := GetInput(c, name)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, &Error{Kind: ErrBadType, Attr: name}
	}
	return b, nil
}

// GetInputInt narrows an input value to int64. Any non-int value, including
// not_active, fails with bad_type; callers that accept not_active use
// GetInputAny and check v.IsNotActive() instead.
func GetInputInt(c *attr.Container, name string) (int64, error) {
	v, err := GetInput(c, name)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, &Error{Kind: ErrBadType, Attr: name}
	}
	return i, nil
}

// GetInputAny returns the raw input value (including not_active/empty),
// after the shape and bad_link checks, for callers that branch on Kind().
func GetInputAny(c *attr.Container, name string) (value.Value, error) {
	return GetInput(c, name)
}
