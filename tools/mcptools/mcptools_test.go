package mcptools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/reagent/tools/mcptools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTool struct {
	name string
}

func (t staticTool) Name() string        { return t.name }
func (t staticTool) Description() string { return "" }
func (t staticTool) Parameters() any     { return nil }
func (t staticTool) Call(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakeDialer struct {
	tools map[string][]tools.ITool
	errs  map[string]error
}

func (d *fakeDialer) ListTools(_ context.Context, name string, _ mcptools.ServerConfig) ([]tools.ITool, error) {
	if err := d.errs[name]; err != nil {
		return nil, err
	}
	return d.tools[name], nil
}

func Test_ParseServerConfigs(t *testing.T) {
	cfgs, err := mcptools.ParseServerConfigs("")
	require.NoError(t, err)
	assert.Empty(t, cfgs)

	cfgs, err = mcptools.ParseServerConfigs(`{
		"search": {"url": "http://localhost:9000/mcp", "headers": {"Authorization": "Bearer x"}}
	}`)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "http://localhost:9000/mcp", cfgs["search"].URL)
	assert.Equal(t, "Bearer x", cfgs["search"].Headers["Authorization"])

	_, err = mcptools.ParseServerConfigs(`{broken`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server configs")
}

func Test_LoadTools(t *testing.T) {
	ctx := context.Background()

	list, err := mcptools.LoadTools(ctx, "", nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	dialer := &fakeDialer{
		tools: map[string][]tools.ITool{
			"alpha": {staticTool{name: "lookup"}},
		},
		errs: map[string]error{
			"down": errors.New("connection refused"),
		},
	}

	// an unreachable server is skipped, the rest of the catalog loads
	list, err = mcptools.LoadTools(ctx, `{
		"alpha": {"url": "http://localhost:9000/mcp"},
		"down": {"url": "http://localhost:9001/mcp"}
	}`, dialer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "lookup", list[0].Name())
}

func Test_LoadTools_StableOrder(t *testing.T) {
	ctx := context.Background()

	dialer := &fakeDialer{
		tools: map[string][]tools.ITool{
			"alpha": {staticTool{name: "lookup"}, staticTool{name: "fetch"}},
			"beta":  {staticTool{name: "eval"}},
			"gamma": {staticTool{name: "store"}},
		},
	}
	configJSON := `{
		"gamma": {"url": "http://localhost:9002/mcp"},
		"alpha": {"url": "http://localhost:9000/mcp"},
		"beta": {"url": "http://localhost:9001/mcp"}
	}`

	// servers are dialed in name order, so the catalog order does not
	// depend on map iteration
	for i := 0; i < 16; i++ {
		list, err := mcptools.LoadTools(ctx, configJSON, dialer)
		require.NoError(t, err)
		assert.Equal(t, []string{"lookup", "fetch", "eval", "store"}, tools.Names(list...))
	}
}
