// Package config implements persisted-configuration load/save: an ordered
// sequence of block definitions serialized as
// YAML, plus a reconciliation pass that adds to each output's connections
// every block whose input links to it, so that a file that specifies only
// the input-side links still produces the output-side connections.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/value"
)

// attrRecord is the on-disk shape of one attribute. Kind records which
// value.Value variant Raw decodes as, since YAML scalars alone can't
// distinguish, say, not_active from a string "not_active".
type attrRecord struct {
	Name string      `yaml:"name"`
	Kind string      `yaml:"kind"`
	Raw  interface{} `yaml:"value,omitempty"`

	// Inputs only.
	LinkBlock  string `yaml:"link_block,omitempty"`
	LinkOutput string `yaml:"link_output,omitempty"`

	// Outputs only.
	Connections []string `yaml:"connections,omitempty"`
}

// blockRecord is the on-disk shape of one block definition.
type blockRecord struct {
	Name    string       `yaml:"name"`
	Type    string       `yaml:"type"`
	Config  []attrRecord `yaml:"config"`
	Inputs  []attrRecord `yaml:"inputs"`
	Outputs []attrRecord `yaml:"outputs"`
}

// file is the on-disk document: a flat list of block records.
type file struct {
	Blocks []blockRecord `yaml:"blocks"`
}

// Named pairs a block's type name with its persisted definition, since
// Definition itself carries no type tag (it lives in config, but we surface
// it alongside for callers that need to look up the type before building a
// full State).
type Named struct {
	Type       string
	Definition *blockstate.Definition
}

// Load reads a persisted configuration file and reconciles connections.
func Load(path string) ([]Named, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	named := make([]Named, 0, len(f.Blocks))
	for _, br := range f.Blocks {
		def, err := decodeBlock(br)
		if err != nil {
			return nil, fmt.Errorf("config: block %q: %w", br.Name, err)
		}
		named = append(named, Named{Type: br.Type, Definition: def})
	}

	Reconcile(named)
	return named, nil
}

// Save writes a sequence of named definitions as a persisted configuration
// file. Private state is never written because Definition carries none.
func Save(path string, named []Named) error {
	f := file{Blocks: make([]blockRecord, 0, len(named))}
	for _, n := range named {
		f.Blocks = append(f.Blocks, encodeBlock(n.Type, n.Definition))
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Reconcile adds to each output's Connections every block in the set with
// an input whose Link points at that output. It works in that direction
// only: an input's Link is never derived from an output's Connections, and
// existing Connections entries with no matching Link are left in place.
func Reconcile(named []Named) {
	outputByKey := make(map[string]*attr.Attribute) // "block/output" -> output attribute

	for _, n := range named {
		for _, out := range n.Definition.Outputs.Attributes() {
			outputByKey[n.Definition.Name+"/"+out.Name] = out
		}
	}

	for _, n := range named {
		for _, in := range n.Definition.Inputs.Attributes() {
			if in.Link.Empty() {
				continue
			}
			key := in.Link.SourceBlock + "/" + in.Link.SourceOutput
			if out, ok := outputByKey[key]; ok {
				out.AddConnection(n.Definition.Name)
			}
		}
	}
}

func decodeBlock(br blockRecord) (*blockstate.Definition, error) {
	cfg := attr.NewContainer(attr.KindConfig)
	for _, r := range br.Config {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		if err := cfg.Add(&attr.Attribute{Name: r.Name, Value: v}); err != nil {
			return nil, err
		}
	}

	in := attr.NewContainer(attr.KindInput)
	for _, r := range br.Inputs {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		a := &attr.Attribute{Name: r.Name, Value: v}
		if r.LinkBlock != "" || r.LinkOutput != "" {
			a.Link = attr.Link{SourceBlock: r.LinkBlock, SourceOutput: r.LinkOutput}
		}
		if err := in.Add(a); err != nil {
			return nil, err
		}
	}

	out := attr.NewContainer(attr.KindOutput)
	for _, r := range br.Outputs {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		a := &attr.Attribute{Name: r.Name, Value: v, Connections: append([]string(nil), r.Connections...)}
		if err := out.Add(a); err != nil {
			return nil, err
		}
	}

	return &blockstate.Definition{Name: br.Name, Config: cfg, Inputs: in, Outputs: out}, nil
}

func encodeBlock(typeName string, def *blockstate.Definition) blockRecord {
	br := blockRecord{Name: def.Name, Type: typeName}
	for _, a := range def.Config.Attributes() {
		br.Config = append(br.Config, encodeValue(a.Name, a.Value))
	}
	for _, a := range def.Inputs.Attributes() {
		r := encodeValue(a.Name, a.Value)
		if !a.Link.Empty() {
			r.LinkBlock = a.Link.SourceBlock
			r.LinkOutput = a.Link.SourceOutput
		}
		br.Inputs = append(br.Inputs, r)
	}
	for _, a := range def.Outputs.Attributes() {
		r := encodeValue(a.Name, a.Value)
		r.Connections = append([]string(nil), a.Connections...)
		br.Outputs = append(br.Outputs, r)
	}
	return br
}

func encodeValue(name string, v value.Value) attrRecord {
	r := attrRecord{Name: name, Kind: v.Kind().String()}
	switch v.Kind() {
	case value.KindBool:
		r.Raw, _ = v.AsBool()
	case value.KindInt:
		r.Raw, _ = v.AsInt()
	case value.KindFloat:
		r.Raw, _ = v.AsFloat()
	case value.KindString, value.KindSymbol:
		r.Raw, _ = v.AsString()
	case value.KindComposite:
		c, _ := v.AsComposite()
		out := make(map[string]attrRecord, len(c))
		for k, cv := range c {
			out[k] = encodeValue(k, cv)
		}
		r.Raw = out
	}
	return r
}

func decodeValue(r attrRecord) (value.Value, error) {
	switch r.Kind {
	case "", value.KindEmpty.String():
		return value.Empty(), nil
	case value.KindNotActive.String():
		return value.NotActive(), nil
	case value.KindNull.String():
		return value.Null(), nil
	case value.KindBool.String():
		b, ok := r.Raw.(bool)
		if !ok {
			return value.Value{}, fmt.Errorf("attribute %q: expected bool", r.Name)
		}
		return value.Bool(b), nil
	case value.KindInt.String():
		i, err := toInt64(r.Raw)
		if err != nil {
			return value.Value{}, fmt.Errorf("attribute %q: %w", r.Name, err)
		}
		return value.Int(i), nil
	case value.KindFloat.String():
		f, err := toFloat64(r.Raw)
		if err != nil {
			return value.Value{}, fmt.Errorf("attribute %q: %w", r.Name, err)
		}
		return value.Float(f), nil
	case value.KindString.String():
		s, ok := r.Raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("attribute %q: expected string", r.Name)
		}
		return value.String(s), nil
	case value.KindSymbol.String():
		s, ok := r.Raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("attribute %q: expected symbol string", r.Name)
		}
		return value.Symbol(s), nil
	case value.KindComposite.String():
		raw, ok := r.Raw.(map[string]interface{})
		if !ok {
			return value.Composite(map[string]value.Value{}), nil
		}
		out := make(map[string]value.Value, len(raw))
		for k, rv := range raw {
			sub, ok := rv.(map[string]interface{})
			if !ok {
				continue
			}
			var subRec attrRecord
			b, _ := yaml.Marshal(sub)
			_ = yaml.Unmarshal(b, &subRec)
			v, err := decodeValue(subRec)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = v
		}
		return value.Composite(out), nil
	default:
		return value.Value{}, fmt.Errorf("attribute %q: unknown kind %q", r.Name, r.Kind)
	}
}

func toInt64(raw interface{}) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func toFloat64(raw interface{}) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}
