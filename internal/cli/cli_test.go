package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomind/agentcore/pkg/models"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String() + errOut.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	registered := map[string]bool{}
	for _, c := range NewRootCommand().Commands() {
		registered[c.Name()] = true
	}
	for _, name := range []string{"validate-sql", "sanitize-sql", "check", "danger", "route", "version"} {
		assert.True(t, registered[name], "subcommand %q should be registered", name)
	}
}

func TestValidateSQL(t *testing.T) {
	out, err := run(t, "", "validate-sql", "SELECT id FROM parcels")
	require.NoError(t, err)
	assert.Contains(t, out, "Statement accepted")

	out, err = run(t, "", "validate-sql", "DROP TABLE parcels")
	assert.Error(t, err)
	assert.Contains(t, out, "Statement rejected")

	_, err = run(t, "", "validate-sql", "--write", "UPDATE parcels SET area = 1 WHERE id = 2")
	assert.NoError(t, err)
}

func TestValidateSQL_JSONFromStdin(t *testing.T) {
	out, err := run(t, "SELECT * FROM parcels", "--json", "validate-sql")
	require.NoError(t, err)

	var res models.SQLValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.False(t, res.Analysis.HasLimit)
}

func TestSanitizeSQL(t *testing.T) {
	out, err := run(t, "", "sanitize-sql", "--max-rows", "50", "SELECT * FROM parcels ORDER BY id;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM parcels ORDER BY id LIMIT 50\n", out)

	_, err = run(t, "", "sanitize-sql", "DELETE FROM parcels")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	sandbox := t.TempDir()

	out, err := run(t, "", "check", "--tier", "standard", "--kind", "execute_command", "--command", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "DENIED")

	out, err = run(t, "", "check", "--tier", "expert", "--kind", "execute_command", "--command", "rm old.log", "--sandbox", sandbox)
	require.NoError(t, err)
	assert.Contains(t, out, "NEEDS CONFIRMATION")

	out, err = run(t, "", "check", "--tier", "expert", "--kind", "write_file", "--path", filepath.Join(sandbox, "a.txt"), "--sandbox", sandbox)
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOWED")

	_, err = run(t, "", "check", "--tier", "admin", "--kind", "read_file")
	assert.ErrorIs(t, err, models.ErrUnknownTrustLevel)

	_, err = run(t, "", "check", "--tier", "expert")
	assert.Error(t, err)
}

func TestCheck_WithRules(t *testing.T) {
	sandbox := t.TempDir()
	rules := filepath.Join(sandbox, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`rules:
  - name: no-owners
    when: query contains "owner"
    reason: owner data is off limits
`), 0o644))

	out, err := run(t, "", "--json", "check", "--tier", "root", "--kind", "sql_query",
		"--query", "SELECT owner FROM parcels", "--sandbox", sandbox, "--rules", rules)
	require.NoError(t, err)

	var d models.PolicyDecision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, "owner data is off limits", d.Reason)
}

func TestDanger(t *testing.T) {
	out, err := run(t, "", "danger", "rm -rf build")
	require.NoError(t, err)
	assert.Contains(t, out, "CRITICAL")

	out, err = run(t, "", "danger", "mkfs.ext4 /dev/sdb1")
	require.NoError(t, err)
	assert.Contains(t, out, "Never allowed")
}

func TestRoute(t *testing.T) {
	out, err := run(t, "", "--json", "route", "Write a PostGIS query with ST_Buffer")
	require.NoError(t, err)

	var res models.RouteResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res.Profiles, "sql")

	out, err = run(t, "", "route", "hello there")
	require.NoError(t, err)
	assert.Contains(t, out, "Specialists: none")
}
