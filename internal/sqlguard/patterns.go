package sqlguard

import "regexp"

// Severity tags a danger pattern. Critical and high hits invalidate a
// statement; low hits are warnings unless strict mode is on.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityLow      Severity = "low"
)

// DangerPattern is one precompiled rule flagging an unsafe construct.
type DangerPattern struct {
	Name     string
	Message  string
	Severity Severity
	re       *regexp.Regexp
	match    func(stmt string) bool
}

// Matches reports whether the pattern fires on stmt.
func (p DangerPattern) Matches(stmt string) bool {
	if p.match != nil {
		return p.match(stmt)
	}
	return p.re.MatchString(stmt)
}

func rule(name string, sev Severity, msg, expr string) DangerPattern {
	return DangerPattern{Name: name, Severity: sev, Message: msg, re: regexp.MustCompile(expr)}
}

// ── Danger Patterns ─────────────────────────────────────────
// The list is illustrative, not exhaustive. It is a defense-in-depth layer
// in front of a least-privilege database role.

// sqlName matches a possibly qualified, possibly quoted identifier.
const sqlName = `(?:"(?:[^"]|"")+"|[\w$]+)(?:\s*\.\s*(?:"(?:[^"]|"")+"|[\w$]+))*`

var dangerPatterns = []DangerPattern{
	// Destructive DDL
	rule("drop", SeverityCritical, "DROP is not allowed",
		`(?i)\bDROP\s+(TABLE|DATABASE|SCHEMA|INDEX|VIEW|FUNCTION|TRIGGER)\b`),
	rule("truncate", SeverityCritical, "TRUNCATE is not allowed",
		`(?i)\bTRUNCATE\s+`),

	// Unconditioned DML
	rule("delete_without_where", SeverityHigh, "DELETE without WHERE is not allowed",
		`(?i)\bDELETE\s+FROM\s+(?:ONLY\s+)?`+sqlName+`\s*(?:;|$)`),
	{Name: "update_without_where", Severity: SeverityHigh, Message: "UPDATE without WHERE is not allowed",
		match: updateWithoutWhere},

	// Administration
	rule("alter_system", SeverityCritical, "ALTER SYSTEM/DATABASE/ROLE/USER is not allowed",
		`(?i)\bALTER\s+(SYSTEM|DATABASE|ROLE|USER)\b`),
	rule("create_principal", SeverityCritical, "creating roles, users or databases is not allowed",
		`(?i)\bCREATE\s+(ROLE|USER|DATABASE)\b`),
	rule("grant", SeverityCritical, "GRANT is not allowed", `(?i)\bGRANT\s+`),
	rule("revoke", SeverityCritical, "REVOKE is not allowed", `(?i)\bREVOKE\s+`),

	// Server filesystem and program execution
	rule("pg_read_file", SeverityCritical, "reading server files is not allowed",
		`(?i)\bpg_read(_binary)?_file\s*\(`),
	rule("pg_write_file", SeverityCritical, "writing server files is not allowed",
		`(?i)\bpg_write_file\s*\(`),
	rule("pg_ls_dir", SeverityCritical, "listing server directories is not allowed",
		`(?i)\bpg_ls_dir\s*\(`),
	rule("lo_import", SeverityCritical, "large object import is not allowed", `(?i)\blo_import\s*\(`),
	rule("lo_export", SeverityCritical, "large object export is not allowed", `(?i)\blo_export\s*\(`),
	rule("copy_from_program", SeverityCritical, "COPY FROM PROGRAM is not allowed",
		`(?is)\bCOPY\s+.*\bFROM\s+PROGRAM\b`),
	rule("copy_to_program", SeverityCritical, "COPY TO PROGRAM is not allowed",
		`(?is)\bCOPY\s+.*\bTO\s+PROGRAM\b`),

	// Injection idioms
	rule("comment_after_terminator", SeverityHigh, "injection pattern detected (;--)", `;\s*--`),
	rule("or_one_equals_one", SeverityHigh, "injection pattern detected (OR 1=1)",
		`(?i)'\s*OR\s+['"]?1['"]?\s*=\s*['"]?1`),
	rule("union_null", SeverityHigh, "injection pattern detected (UNION ALL SELECT NULL)",
		`(?i)UNION\s+ALL\s+SELECT\s+NULL`),

	// Extensions
	rule("create_extension", SeverityHigh, "CREATE EXTENSION is not allowed", `(?i)\bCREATE\s+EXTENSION\s+`),
	rule("dblink", SeverityCritical, "dblink is not allowed", `(?i)\bDBLINK\s*\(`),

	// Suspicious but not necessarily harmful
	rule("pg_sleep", SeverityLow, "pg_sleep may hold the connection open", `(?i)\bpg_sleep\s*\(`),
	rule("block_comment", SeverityLow, "block comment may hide statement text", `/\*`),
	rule("stacked_statements", SeverityLow, "multiple statements in one request", `;\s*\S`),
}

// DangerPatterns returns the active danger rules.
func DangerPatterns() []DangerPattern {
	out := make([]DangerPattern, len(dangerPatterns))
	copy(out, dangerPatterns)
	return out
}

var (
	updateSetClause = regexp.MustCompile(`(?is)\bUPDATE\s+(?:ONLY\s+)?` + sqlName + `(?:\s+(?:AS\s+)?\w+)?\s+SET\s+([^;]*)`)
	whereKeyword    = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// updateWithoutWhere flags any UPDATE ... SET whose statement body carries
// no WHERE clause.
func updateWithoutWhere(stmt string) bool {
	for _, m := range updateSetClause.FindAllStringSubmatch(stmt, -1) {
		if !whereKeyword.MatchString(m[1]) {
			return true
		}
	}
	return false
}

// ── Read / Write Classification ─────────────────────────────

var readPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*SELECT\s+`),
	regexp.MustCompile(`(?is)^\s*WITH\s+.*SELECT\s+`),
	regexp.MustCompile(`(?i)^\s*EXPLAIN\s+`),
	regexp.MustCompile(`(?i)^\s*SHOW\s+`),
}

const ddlObjects = `(TABLE|VIEW|INDEX|FUNCTION|PROCEDURE|SCHEMA|TRIGGER|SEQUENCE|TYPE|DOMAIN|RULE|ROLE|USER|DATABASE|EXTENSION|SYSTEM)`

var writePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+`),
	regexp.MustCompile(`(?i)\bUPDATE\s+(?:ONLY\s+)?` + sqlName + `(?:\s+(?:AS\s+)?\w+)?\s+SET\s+`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+`),
	regexp.MustCompile(`(?i)\bMERGE\s+INTO\s+`),
	regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+)?(TEMP\w*\s+|UNLOGGED\s+|UNIQUE\s+|MATERIALIZED\s+)?` + ddlObjects + `\b`),
	regexp.MustCompile(`(?i)\bALTER\s+(MATERIALIZED\s+)?` + ddlObjects + `\b`),
	regexp.MustCompile(`(?i)\bDROP\s+`),
	regexp.MustCompile(`(?i)\bTRUNCATE\s+`),
}

// IsRead reports whether stmt starts like a read-only statement.
func IsRead(stmt string) bool {
	for _, re := range readPatterns {
		if re.MatchString(stmt) {
			return true
		}
	}
	return false
}

// IsWrite reports whether stmt contains a write-class construct anywhere.
func IsWrite(stmt string) bool {
	for _, re := range writePatterns {
		if re.MatchString(stmt) {
			return true
		}
	}
	return false
}

// RequiresWrite reports whether stmt needs modification rights: it either
// matches a write pattern or cannot be shown to be a read.
func RequiresWrite(stmt string) bool {
	return IsWrite(stmt) || !IsRead(stmt)
}

// ── Analysis Patterns ───────────────────────────────────────

// tableListStart opens a comma-separated list of table references.
var tableListStart = regexp.MustCompile(`(?i)\b(?:FROM|USING)\s`)

// tableRefStart precedes exactly one table reference.
var tableRefStart = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bJOIN\s`),
	regexp.MustCompile(`(?i)\bINSERT\s+INTO\s`),
	regexp.MustCompile(`(?i)\bUPDATE\s`),
}

var (
	identPart  = regexp.MustCompile(`(?i)^(?:"((?:[^"]|"")+)"|([a-z_][a-z0-9_$]*))`)
	nameDot    = regexp.MustCompile(`^\s*\.\s*`)
	listPrefix = regexp.MustCompile(`(?i)^\s*(?:(?:ONLY|LATERAL)\s+)?`)
	aliasWord  = regexp.MustCompile(`(?i)^\s*(?:AS\s+)?("(?:[^"]|"")+"|[a-z_][a-z0-9_$]*)`)
)

// clauseWords end a table list or can never be a table or alias name.
var clauseWords = map[string]bool{
	"where": true, "join": true, "inner": true, "left": true, "right": true,
	"full": true, "cross": true, "natural": true, "on": true, "using": true,
	"group": true, "order": true, "having": true, "limit": true, "offset": true,
	"fetch": true, "union": true, "intersect": true, "except": true, "window": true,
	"for": true, "returning": true, "set": true, "values": true, "select": true,
	"of": true, "skip": true, "nowait": true, "default": true, "lateral": true,
	"only": true,
}

var (
	outerVerb     = regexp.MustCompile(`\b(SELECT|INSERT|UPDATE|DELETE)\b`)
	limitKeyword  = regexp.MustCompile(`(?i)\bLIMIT\b`)
	limitAll      = regexp.MustCompile(`(?i)\bLIMIT\s+ALL\b`)
	fetchClause   = regexp.MustCompile(`(?is)\bFETCH\s+(?:FIRST|NEXT)\b(.*?)\bROWS?\b`)
	joinKeyword   = regexp.MustCompile(`(?i)\bJOIN\b`)
	subquery      = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	aggregate     = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MAX|MIN|GROUP\s+BY)\b`)
	spatialCall   = regexp.MustCompile(`(?i)\bST_`)
	distinctWord  = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	orderByClause = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
)
