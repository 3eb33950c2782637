package policy_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/pkg/models"
)

func TestEvaluateDanger(t *testing.T) {
	cases := []struct {
		subject string
		level   models.DangerLevel
		confirm bool
	}{
		{"SELECT id FROM parcels", models.DangerSafe, false},
		{"ls -la", models.DangerSafe, false},
		{"git commit -m wip", models.DangerLow, false},
		{"pip install requests", models.DangerMedium, true},
		{"UPDATE parcels SET a = 1 WHERE id = 2", models.DangerHigh, true},
		{"kill -9 4242", models.DangerHigh, true},
		{"DROP TABLE parcels", models.DangerCritical, true},
		{"DELETE FROM parcels;", models.DangerCritical, true},
		{"mkfs.ext4 /dev/sdb1", models.DangerBlocked, false},
	}
	for _, tc := range cases {
		ev := policy.EvaluateDanger(tc.subject)
		assert.Equal(t, tc.level, ev.Level, tc.subject)
		assert.Equal(t, tc.confirm, ev.NeedsConfirmation, tc.subject)
		assert.Equal(t, tc.level == models.DangerBlocked, ev.Blocked, tc.subject)
		assert.Equal(t, tc.subject, ev.Subject)
		assert.NotEmpty(t, ev.Consequence)
	}
}

func TestIsAlwaysBlocked(t *testing.T) {
	assert.True(t, policy.IsAlwaysBlocked("sudo rm -rf /usr/local"))
	assert.True(t, policy.IsAlwaysBlocked("reg delete HKLM\\Software\\Microsoft\\Windows"))
	assert.True(t, policy.IsAlwaysBlocked("shutdown /s /t 0"))
	assert.False(t, policy.IsAlwaysBlocked("rm -rf ./build"))
	assert.False(t, policy.IsAlwaysBlocked("shutdown /s /t 60"))
}

func TestInSandbox(t *testing.T) {
	assert.True(t, policy.InSandbox("/sandbox", "/sandbox"))
	assert.True(t, policy.InSandbox("/sandbox/", "/sandbox/a/b"))
	assert.False(t, policy.InSandbox("/sandbox", "/sandbox2/a"))
	assert.False(t, policy.InSandbox("/sandbox", "/sandbox/../etc"))
	assert.False(t, policy.InSandbox("", "/sandbox/a"))
}

func TestInSandbox_CaseAndSeparators(t *testing.T) {
	if runtime.GOOS == "windows" {
		assert.True(t, policy.InSandbox(`C:\GeoBrain\sandbox`, "c:/geobrain/sandbox/out.txt"))
		assert.True(t, policy.InSandbox(`C:\sandbox`, `C:\SANDBOX\Sub\a.txt`))
		return
	}
	assert.False(t, policy.InSandbox("/x/sandbox", "/x/SANDBOX/f"))
	assert.False(t, policy.InSandbox("/x/Sandbox", "/x/sandbox/f"))
	// a backslash is part of the name, so this is a sibling of the root
	assert.False(t, policy.InSandbox("/x/sandbox", `/x/sandbox\f`))
	assert.True(t, policy.InSandbox("/x/Sandbox", "/x/Sandbox/f"))
}

func TestToolAllowed(t *testing.T) {
	assert.True(t, policy.ToolAllowed(models.TrustStandard, "sql_query"))
	assert.False(t, policy.ToolAllowed(models.TrustStandard, "sql_execute"))
	assert.True(t, policy.ToolAllowed(models.TrustExpert, "sql_execute"))
	assert.True(t, policy.ToolAllowed(models.TrustRoot, "anything"))
	assert.False(t, policy.ToolAllowed("nobody", "read_file"))

	p, ok := policy.PermissionsFor(models.TrustStandard)
	assert.True(t, ok)
	assert.True(t, p.SandboxOnly)
	p.AllowedTools[0] = "mutated"
	assert.True(t, policy.ToolAllowed(models.TrustStandard, "read_file"))
}
