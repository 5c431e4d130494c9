package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktypes/counter"
	"github.com/lacquerai/blockrt/internal/config"
	"github.com/lacquerai/blockrt/internal/value"
)

func twoLinkedCounters(t *testing.T) []config.Named {
	t.Helper()
	ct := counter.New()

	upDef, err := ct.Create("upstream", "", nil, nil, nil)
	require.NoError(t, err)

	downDef, err := ct.Create("downstream", "", nil, nil, nil)
	require.NoError(t, err)
	in, ok := downDef.Inputs.Get("input")
	require.True(t, ok)
	in.Link = attr.Link{SourceBlock: "upstream", SourceOutput: "value"}

	return []config.Named{
		{Type: ct.Name(), Definition: upDef},
		{Type: ct.Name(), Definition: downDef},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	named := twoLinkedCounters(t)
	path := filepath.Join(t.TempDir(), "blocks.yaml")

	require.NoError(t, config.Save(path, named))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	var up, down *blockstate.Definition
	for _, n := range loaded {
		switch n.Definition.Name {
		case "upstream":
			up = n.Definition
		case "downstream":
			down = n.Definition
		}
	}
	require.NotNil(t, up)
	require.NotNil(t, down)

	in, ok := down.Inputs.Get("input")
	require.True(t, ok)
	assert.Equal(t, "upstream", in.Link.SourceBlock)
	assert.Equal(t, "value", in.Link.SourceOutput)
}

func TestReconcileRebuildsOutputConnectionsFromLinks(t *testing.T) {
	named := twoLinkedCounters(t)
	config.Reconcile(named)

	var up *blockstate.Definition
	for _, n := range named {
		if n.Definition.Name == "upstream" {
			up = n.Definition
		}
	}
	require.NotNil(t, up)

	out, ok := up.Outputs.Get("value")
	require.True(t, ok)
	assert.Equal(t, []string{"downstream"}, out.Connections)
}

func TestLoadReconcilesOneDirectionSpec(t *testing.T) {
	named := twoLinkedCounters(t)
	path := filepath.Join(t.TempDir(), "blocks.yaml")
	require.NoError(t, config.Save(path, named))

	loaded, err := config.Load(path)
	require.NoError(t, err)

	var up *blockstate.Definition
	for _, n := range loaded {
		if n.Definition.Name == "upstream" {
			up = n.Definition
		}
	}
	require.NotNil(t, up)
	out, ok := up.Outputs.Get("value")
	require.True(t, ok)
	assert.Equal(t, []string{"downstream"}, out.Connections, "Load must reconcile connections even though Save only wrote the input-side link")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestEncodeDecodeCompositeValue(t *testing.T) {
	ct := counter.New()
	def, err := ct.Create("c1", "", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, def.Config.Add(&attr.Attribute{
		Name: "meta",
		Value: value.Composite(map[string]value.Value{
			"nested": value.Int(7),
		}),
	}))

	named := []config.Named{{Type: ct.Name(), Definition: def}}
	path := filepath.Join(t.TempDir(), "blocks.yaml")
	require.NoError(t, config.Save(path, named))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	meta, ok := loaded[0].Definition.Config.Get("meta")
	require.True(t, ok)
	composite, ok := meta.Value.AsComposite()
	require.True(t, ok)
	nested, ok := composite["nested"].AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(7), nested)
}
