package sqlguard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geomind/agentcore/internal/sqlguard"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"append limit", "SELECT * FROM t", 500, "SELECT * FROM t LIMIT 500"},
		{"after order by", "SELECT * FROM t ORDER BY x", 500, "SELECT * FROM t ORDER BY x LIMIT 500"},
		{"strip terminators", "SELECT * FROM t;;  ", 10, "SELECT * FROM t LIMIT 10"},
		{"spaced terminators", "SELECT 1 ; ;", 10, "SELECT 1 LIMIT 10"},
		{"existing limit", "SELECT * FROM t LIMIT 5;", 500, "SELECT * FROM t LIMIT 5"},
		{"cte", "WITH a AS (SELECT 1 AS n) SELECT n FROM a", 7, "WITH a AS (SELECT 1 AS n) SELECT n FROM a LIMIT 7"},
		{"before offset", "SELECT * FROM t ORDER BY x DESC OFFSET 20", 50, "SELECT * FROM t ORDER BY x DESC LIMIT 50 OFFSET 20"},
		{"nested order by only", "SELECT * FROM (SELECT * FROM t ORDER BY x) s", 50, "SELECT * FROM (SELECT * FROM t ORDER BY x) s LIMIT 50"},
		{"quoted order by", "SELECT 'ORDER BY x OFFSET 1' AS s FROM t", 50, "SELECT 'ORDER BY x OFFSET 1' AS s FROM t LIMIT 50"},
		{"non read untouched", "UPDATE t SET a = 1 WHERE id = 2;", 50, "UPDATE t SET a = 1 WHERE id = 2"},
		{"default max rows", "SELECT 1", 0, "SELECT 1 LIMIT 10000"},
		{"trailing comment", "SELECT * FROM t -- note", 5, "SELECT * FROM t -- note\nLIMIT 5"},
		{"cte insert untouched", "WITH a AS (SELECT 1) INSERT INTO t SELECT * FROM a", 100, "WITH a AS (SELECT 1) INSERT INTO t SELECT * FROM a"},
		{"cte update untouched", "WITH a AS (SELECT id FROM s) UPDATE t SET x = 1 WHERE id IN (SELECT id FROM a)", 100, "WITH a AS (SELECT id FROM s) UPDATE t SET x = 1 WHERE id IN (SELECT id FROM a)"},
		{"cte delete untouched", "WITH a AS (SELECT id FROM s) DELETE FROM t WHERE id IN (SELECT id FROM a);", 100, "WITH a AS (SELECT id FROM s) DELETE FROM t WHERE id IN (SELECT id FROM a)"},
		{"select into untouched", "SELECT * INTO archive FROM t", 100, "SELECT * INTO archive FROM t"},
		{"nested limit", "SELECT * FROM (SELECT * FROM big LIMIT 1000000) s", 100, "SELECT * FROM (SELECT * FROM big LIMIT 1000000) s LIMIT 100"},
		{"quoted limit", "SELECT * FROM t WHERE note = 'LIMIT 5'", 100, "SELECT * FROM t WHERE note = 'LIMIT 5' LIMIT 100"},
		{"limit all", "SELECT * FROM t LIMIT ALL", 100, "SELECT * FROM t LIMIT 100"},
		{"limit param", "SELECT * FROM t LIMIT $1", 100, "SELECT * FROM t LIMIT 100"},
		{"limit expression", "SELECT * FROM t LIMIT (SELECT 1000000)", 100, "SELECT * FROM t LIMIT 100"},
		{"limit above cap", "SELECT * FROM t ORDER BY x LIMIT 5000 OFFSET 10", 100, "SELECT * FROM t ORDER BY x LIMIT 100 OFFSET 10"},
		{"fetch within cap", "SELECT * FROM t FETCH FIRST 10 ROWS ONLY", 100, "SELECT * FROM t FETCH FIRST 10 ROWS ONLY"},
		{"fetch above cap", "SELECT * FROM t FETCH FIRST 5000 ROWS ONLY", 100, "SELECT * FROM t FETCH FIRST 100 ROWS ONLY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlguard.Sanitize(tt.in, tt.max))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM t",
		"SELECT * FROM t ORDER BY x;",
		"  WITH a AS (SELECT 1) SELECT * FROM a ORDER BY 1 OFFSET 3 ;",
		"DELETE FROM t WHERE id = 1",
		"SELECT * FROM t -- note",
		"SELECT * FROM t LIMIT ALL",
		"SELECT * FROM (SELECT * FROM big LIMIT 1000000) s",
		"SELECT * FROM t FETCH FIRST 5000 ROWS ONLY",
		"SELECT * FROM t LIMIT $1 OFFSET 4",
		"WITH a AS (SELECT 1) INSERT INTO t SELECT * FROM a",
	}
	for _, in := range inputs {
		once := sqlguard.Sanitize(in, 100)
		assert.Equal(t, once, sqlguard.Sanitize(once, 100), in)
	}
}
