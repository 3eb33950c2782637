package mcpgw_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomind/agentcore/internal/mcpgw"
	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/internal/tools"
	"github.com/geomind/agentcore/pkg/models"
)

func newGateway(t *testing.T) (*mcpgw.Gateway, string) {
	t.Helper()
	root := t.TempDir()
	catalog, err := tools.NewDefaultCatalog(policy.New(root), tools.Config{SandboxRoot: root})
	require.NoError(t, err)
	return mcpgw.NewGateway(catalog, "test"), root
}

func rpc(method string, params any) *models.MCPRequest {
	raw, _ := json.Marshal(params)
	return &models.MCPRequest{Jsonrpc: "2.0", Method: method, Params: raw, ID: 7}
}

func TestInitializeAndPing(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := context.Background()

	resp := gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("initialize", nil))
	require.Nil(t, resp.Error)
	assert.Equal(t, 7, resp.ID)
	info := resp.Result.(map[string]any)
	assert.Equal(t, mcpgw.ProtocolVersion, info["protocolVersion"])

	resp = gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("ping", nil))
	assert.Equal(t, map[string]string{"status": "pong"}, resp.Result)

	assert.Nil(t, gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("notifications/initialized", nil)))

	resp = gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("resources/list", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpgw.CodeMethodNotFound, resp.Error.Code)
}

func TestToolsList_FilteredByTier(t *testing.T) {
	gw, _ := newGateway(t)

	list := func(tier models.TrustLevel) []string {
		resp := gw.HandleJSONRPC(context.Background(), tier, rpc("tools/list", nil))
		require.Nil(t, resp.Error)
		infos := resp.Result.(map[string]any)["tools"].([]models.MCPToolInfo)
		names := make([]string, len(infos))
		for i, in := range infos {
			names[i] = in.Name
		}
		return names
	}

	assert.NotContains(t, list(models.TrustStandard), "execute_command")
	assert.Contains(t, list(models.TrustExpert), "execute_command")
}

func TestToolsCall(t *testing.T) {
	gw, root := newGateway(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "layer.geojson"), []byte(`{"type":"FeatureCollection"}`), 0o644))

	resp := gw.HandleJSONRPC(context.Background(), models.TrustStandard, rpc("tools/call", map[string]any{
		"name":      "read_file",
		"arguments": map[string]string{"path": "layer.geojson"},
	}))
	require.Nil(t, resp.Error)
	res := resp.Result.(models.MCPToolResult)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "FeatureCollection")
}

func TestToolsCall_Errors(t *testing.T) {
	gw, _ := newGateway(t)
	ctx := context.Background()

	resp := gw.HandleJSONRPC(ctx, models.TrustRoot, rpc("tools/call", map[string]any{"name": "format_disk"}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpgw.CodeToolNotFound, resp.Error.Code)

	resp = gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("tools/call", map[string]any{
		"name":      "write_file",
		"arguments": map[string]string{"path": "/etc/passwd", "content": "x"},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpgw.CodeDenied, resp.Error.Code)

	resp = gw.HandleJSONRPC(ctx, models.TrustStandard, &models.MCPRequest{Method: "tools/call", Params: json.RawMessage(`[`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpgw.CodeInvalidParams, resp.Error.Code)

	resp = gw.HandleJSONRPC(ctx, models.TrustStandard, rpc("tools/call", map[string]any{
		"name":      "read_file",
		"arguments": map[string]string{"path": "missing.txt"},
	}))
	require.Nil(t, resp.Error)
	assert.True(t, resp.Result.(models.MCPToolResult).IsError)
}

func TestToolsCall_Confirmation(t *testing.T) {
	gw, root := newGateway(t)
	ctx := context.Background()
	target := filepath.Join(root, "old.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	args := map[string]string{"command": "rm old.txt"}
	resp := gw.HandleJSONRPC(ctx, models.TrustExpert, rpc("tools/call", map[string]any{"name": "execute_command", "arguments": args}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpgw.CodeNeedsConfirm, resp.Error.Code)
	assert.FileExists(t, target)

	resp = gw.HandleJSONRPC(ctx, models.TrustExpert, rpc("tools/call", map[string]any{
		"name": "execute_command", "arguments": args, "confirmed": true,
	}))
	require.Nil(t, resp.Error)
	assert.NoFileExists(t, target)
}
