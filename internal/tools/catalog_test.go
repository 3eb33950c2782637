package tools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/internal/sqlguard"
	"github.com/geomind/agentcore/internal/tools"
	"github.com/geomind/agentcore/pkg/models"
)

type stubExecutor struct{ statements []string }

func (s *stubExecutor) Run(_ context.Context, statement string) (*models.StatementResult, error) {
	s.statements = append(s.statements, statement)
	return &models.StatementResult{
		Rows:     []map[string]any{{"n": int64(3)}},
		RowCount: 1,
		Fields:   []string{"n"},
		Duration: time.Millisecond,
	}, nil
}

func newCatalog(t *testing.T, exec *stubExecutor) (*tools.Catalog, string) {
	t.Helper()
	root := t.TempDir()
	cfg := tools.Config{SandboxRoot: root}
	if exec != nil {
		reg := sqlexec.NewRegistry()
		reg.Register(sqlexec.DefaultConnection, exec)
		cfg.Pipeline = sqlexec.NewPipeline(reg, sqlexec.PipelineOptions{MaxRows: 100})
	}
	c, err := tools.NewDefaultCatalog(policy.New(root), cfg)
	require.NoError(t, err)
	return c, root
}

func call(name string, input any) models.ToolCall {
	raw, _ := json.Marshal(input)
	return models.ToolCall{ID: "c1", Name: name, Input: raw}
}

func names(defs []models.ToolDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

func TestDefinitions_PerTier(t *testing.T) {
	c, _ := newCatalog(t, &stubExecutor{})

	assert.Equal(t,
		[]string{"read_file", "write_file", "list_directory", "sql_query"},
		names(c.Definitions(models.TrustStandard)))
	assert.Equal(t,
		[]string{"read_file", "write_file", "list_directory", "create_directory", "delete_file", "execute_command", "sql_query", "sql_execute"},
		names(c.Definitions(models.TrustExpert)))
	assert.Len(t, c.Definitions(models.TrustRoot), 8)
	assert.Empty(t, c.Definitions(models.TrustLevel("guest")))
}

func TestDefinitions_WithoutPipeline(t *testing.T) {
	c, _ := newCatalog(t, nil)
	assert.NotContains(t, names(c.All()), "sql_query")
}

func TestGenerateSchema(t *testing.T) {
	schema := tools.GenerateSchema[tools.WriteFileInput]()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "content")
	assert.ElementsMatch(t, []any{"path", "content"}, schema["required"])

	list := tools.GenerateSchema[tools.ListDirectoryInput]()
	assert.NotContains(t, list, "required")
}

func TestAuthorize_UnknownTool(t *testing.T) {
	c, _ := newCatalog(t, nil)
	d := c.Authorize(call("format_disk", map[string]string{}), models.TrustRoot)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown tool")

	_, err := c.Execute(context.Background(), "format_disk", nil)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
}

func TestAuthorize_ToolNotInTier(t *testing.T) {
	c, _ := newCatalog(t, nil)
	d := c.Authorize(call("execute_command", tools.ExecuteCommandInput{Command: "ls"}), models.TrustStandard)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not available")
}

func TestAuthorize_InvalidInput(t *testing.T) {
	c, _ := newCatalog(t, nil)

	d := c.Authorize(models.ToolCall{Name: "read_file", Input: json.RawMessage(`"just a string"`)}, models.TrustStandard)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "invalid input")

	d = c.Authorize(call("write_file", map[string]string{"content": "x"}), models.TrustStandard)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "path is required")
}

func TestWriteRead_RelativeToSandbox(t *testing.T) {
	c, root := newCatalog(t, nil)
	ctx := context.Background()

	w := call("write_file", tools.WriteFileInput{Path: "notes/a.txt", Content: "parcel 42"})
	require.True(t, c.Authorize(w, models.TrustStandard).Allowed)
	_, err := c.Execute(ctx, w.Name, w.Input)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "notes", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "parcel 42", string(data))

	r := call("read_file", tools.ReadFileInput{Path: "notes/a.txt"})
	require.True(t, c.Authorize(r, models.TrustStandard).Allowed)
	out, err := c.Execute(ctx, r.Name, r.Input)
	require.NoError(t, err)
	got := out.(*tools.ReadFileOutput)
	assert.Equal(t, "parcel 42", got.Content)
	assert.False(t, got.Truncated)
}

func TestWrite_OutsideSandboxDenied(t *testing.T) {
	c, _ := newCatalog(t, nil)

	for _, p := range []string{"/etc/passwd", "../escape.txt", "notes/../../escape.txt"} {
		d := c.Authorize(call("write_file", tools.WriteFileInput{Path: p, Content: "x"}), models.TrustStandard)
		assert.False(t, d.Allowed, p)
	}
	d := c.Authorize(call("write_file", tools.WriteFileInput{Path: "/tmp/out.txt", Content: "x"}), models.TrustExpert)
	assert.True(t, d.Allowed)
}

func TestWrite_CaseVariantOfSandboxDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("paths are case-insensitive on windows")
	}
	parent := t.TempDir()
	root := filepath.Join(parent, "sandbox")
	require.NoError(t, os.Mkdir(root, 0o755))
	c, err := tools.NewDefaultCatalog(policy.New(root), tools.Config{SandboxRoot: root})
	require.NoError(t, err)

	for _, p := range []string{
		filepath.Join(parent, "SANDBOX", "escaped.txt"),
		filepath.Join(parent, "Sandbox", "escaped.txt"),
		root + `\escaped.txt`,
	} {
		d := c.Authorize(call("write_file", tools.WriteFileInput{Path: p, Content: "x"}), models.TrustStandard)
		assert.False(t, d.Allowed, p)
	}
	assert.NoDirExists(t, filepath.Join(parent, "SANDBOX"))

	d := c.Authorize(call("write_file", tools.WriteFileInput{Path: filepath.Join(root, "kept.txt"), Content: "x"}), models.TrustStandard)
	assert.True(t, d.Allowed, d.Reason)
}

func TestReadFile_Truncated(t *testing.T) {
	c, root := newCatalog(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("é", 60_000)), 0o644))

	out, err := c.Execute(context.Background(), "read_file", json.RawMessage(`{"path":"big.txt"}`))
	require.NoError(t, err)
	got := out.(*tools.ReadFileOutput)
	assert.True(t, got.Truncated)
	assert.Equal(t, 50_000, len([]rune(got.Content)))
}

func TestReadFile_Directory(t *testing.T) {
	c, _ := newCatalog(t, nil)
	_, err := c.Execute(context.Background(), "read_file", json.RawMessage(`{"path":"."}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestListDirectory_Capped(t *testing.T) {
	c, root := newCatalog(t, nil)
	for i := 0; i < 105; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("f%03d.txt", i)), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "a-dir"), 0o755))

	out, err := c.Execute(context.Background(), "list_directory", nil)
	require.NoError(t, err)
	got := out.(*tools.ListDirectoryOutput)
	assert.Equal(t, 106, got.Total)
	assert.Len(t, got.Entries, 100)
	assert.True(t, got.Truncated)
	assert.Equal(t, tools.DirEntry{Name: "a-dir", Type: "directory"}, got.Entries[0])
	assert.Equal(t, int64(1), got.Entries[1].Size)
}

func TestCreateAndDelete(t *testing.T) {
	c, root := newCatalog(t, nil)
	ctx := context.Background()

	mk := call("create_directory", tools.CreateDirectoryInput{Path: "out/tiles"})
	assert.False(t, c.Authorize(mk, models.TrustStandard).Allowed)
	require.True(t, c.Authorize(mk, models.TrustExpert).Allowed)
	_, err := c.Execute(ctx, mk.Name, mk.Input)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "out", "tiles"))

	rm := call("delete_file", tools.DeleteFileInput{Path: "out/tiles"})
	require.True(t, c.Authorize(rm, models.TrustExpert).Allowed)
	_, err = c.Execute(ctx, rm.Name, rm.Input)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "out", "tiles"))

	assert.False(t, c.Authorize(call("delete_file", tools.DeleteFileInput{Path: "config/.env"}), models.TrustExpert).Allowed)
}

func TestExecuteCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	c, _ := newCatalog(t, nil)

	run := call("execute_command", tools.ExecuteCommandInput{Command: "echo hello; echo oops >&2; exit 3"})
	require.True(t, c.Authorize(run, models.TrustExpert).Allowed)
	out, err := c.Execute(context.Background(), run.Name, run.Input)
	require.NoError(t, err)
	got := out.(*tools.ExecuteCommandOutput)
	assert.Equal(t, "hello\n", got.Stdout)
	assert.Equal(t, "oops\n", got.Stderr)
	assert.Equal(t, 3, got.ExitCode)
}

func TestExecuteCommand_NeedsConfirmation(t *testing.T) {
	c, _ := newCatalog(t, nil)
	rm := call("execute_command", tools.ExecuteCommandInput{Command: "rm -rf build"})

	d := c.Authorize(rm, models.TrustExpert)
	assert.False(t, d.Allowed)
	assert.True(t, d.NeedsConfirmation)

	assert.True(t, c.AuthorizeConfirmed(rm, models.TrustExpert).Allowed)

	blocked := c.AuthorizeConfirmed(call("execute_command", tools.ExecuteCommandInput{Command: "rm -rf /"}), models.TrustRoot)
	assert.False(t, blocked.Allowed)
	assert.True(t, blocked.Blocked)
}

func TestSQLTools(t *testing.T) {
	exec := &stubExecutor{}
	c, _ := newCatalog(t, exec)
	ctx := context.Background()

	q := call("sql_query", tools.SQLInput{Query: "SELECT count(*) AS n FROM parcels"})
	require.True(t, c.Authorize(q, models.TrustStandard).Allowed)
	out, err := c.Execute(ctx, q.Name, q.Input)
	require.NoError(t, err)
	res := out.(*sqlexec.QueryResult)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, []string{"SELECT count(*) AS n FROM parcels LIMIT 100"}, exec.statements)

	write := call("sql_query", tools.SQLInput{Query: "DELETE FROM parcels WHERE id = 1"})
	assert.False(t, c.Authorize(write, models.TrustStandard).Allowed)

	drop := call("sql_execute", tools.SQLInput{Query: "DROP TABLE parcels"})
	require.True(t, c.Authorize(drop, models.TrustExpert).Allowed)
	_, err = c.Execute(ctx, drop.Name, drop.Input)
	assert.ErrorIs(t, err, sqlguard.ErrStatementRejected)
	assert.Len(t, exec.statements, 1)
}

func TestRegister_Duplicate(t *testing.T) {
	c, _ := newCatalog(t, nil)
	err := c.Register(tools.Builtins(tools.Config{SandboxRoot: t.TempDir()})[0])
	assert.Error(t, err)
}
