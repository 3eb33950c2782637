package sqlguard

import (
	"strings"

	"github.com/geomind/agentcore/pkg/models"
)

// Complexity weights.
const (
	weightJoin     = 2
	weightSubquery = 3
	weightSpatial  = 2
	weightDistinct = 2
	weightOrderBy  = 1

	complexityMedium = 5
	complexityHigh   = 10
)

// Analyze computes the analysis block for stmt.
func Analyze(stmt string) models.SQLAnalysis {
	score := Score(stmt)
	return models.SQLAnalysis{
		Type:            DetectType(stmt),
		Tables:          ExtractTables(stmt),
		HasLimit:        HasLimit(stmt),
		Complexity:      bucket(score),
		ComplexityScore: score,
	}
}

// DetectType classifies stmt by its leading keyword. A WITH statement takes
// the type of the verb that follows its CTE list.
func DetectType(stmt string) models.StatementType {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	if strings.HasPrefix(s, "WITH") {
		if m := outerVerb.FindString(topLevel(s)); m != "" {
			s = m
		}
	}
	switch {
	case strings.HasPrefix(s, "SELECT"), strings.HasPrefix(s, "WITH"):
		return models.StatementSelect
	case strings.HasPrefix(s, "INSERT"):
		return models.StatementInsert
	case strings.HasPrefix(s, "UPDATE"):
		return models.StatementUpdate
	case strings.HasPrefix(s, "DELETE"):
		return models.StatementDelete
	case strings.HasPrefix(s, "CREATE"):
		return models.StatementCreate
	case strings.HasPrefix(s, "ALTER"):
		return models.StatementAlter
	case strings.HasPrefix(s, "DROP"):
		return models.StatementDrop
	case strings.HasPrefix(s, "EXPLAIN"):
		return models.StatementExplain
	}
	return models.StatementOther
}

// ExtractTables returns the tables referenced by FROM and USING lists,
// JOIN, INSERT INTO and UPDATE, de-duplicated in order of discovery.
// Unquoted names are lowercased; quoted names keep their case.
func ExtractTables(stmt string) []string {
	seen := make(map[string]bool)
	tables := []string{}
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tables = append(tables, t)
		}
	}
	for _, loc := range tableListStart.FindAllStringIndex(stmt, -1) {
		for _, t := range tableList(stmt[loc[1]:]) {
			add(t)
		}
	}
	for _, re := range tableRefStart {
		for _, loc := range re.FindAllStringIndex(stmt, -1) {
			rest := stmt[loc[1]:]
			rest = rest[len(listPrefix.FindString(rest)):]
			name, _ := tableRef(rest)
			add(name)
		}
	}
	return tables
}

// tableList reads a comma-separated list of table references from the start
// of s. Subqueries and function calls in the list are skipped over.
func tableList(s string) []string {
	var out []string
	for {
		s = s[len(listPrefix.FindString(s)):]
		if strings.HasPrefix(s, "(") {
			s = s[closingParen(s):]
		} else {
			name, n := tableRef(s)
			if name == "" {
				return out
			}
			out = append(out, name)
			s = s[n:]
			if t := strings.TrimLeft(s, " \t\r\n"); strings.HasPrefix(t, "(") {
				s = t[closingParen(t):]
			}
		}
		if m := aliasWord.FindStringSubmatch(s); m != nil && !clauseWords[strings.ToLower(m[1])] {
			s = s[len(m[0]):]
			if t := strings.TrimLeft(s, " \t\r\n"); strings.HasPrefix(t, "(") {
				s = t[closingParen(t):]
			}
		}
		s = strings.TrimLeft(s, " \t\r\n")
		if !strings.HasPrefix(s, ",") {
			return out
		}
		s = s[1:]
	}
}

// tableRef reads one possibly qualified, possibly quoted name from the start
// of s and returns it with the number of bytes consumed. An unquoted clause
// keyword is not a name.
func tableRef(s string) (string, int) {
	var parts []string
	n, quoted := 0, false
	for {
		m := identPart.FindStringSubmatchIndex(s[n:])
		if m == nil {
			break
		}
		if m[2] >= 0 {
			quoted = true
			parts = append(parts, strings.ReplaceAll(s[n+m[2]:n+m[3]], `""`, `"`))
		} else {
			parts = append(parts, strings.ToLower(s[n+m[4]:n+m[5]]))
		}
		n += m[1]
		dot := nameDot.FindString(s[n:])
		if dot == "" || identPart.FindStringIndex(s[n+len(dot):]) == nil {
			break
		}
		n += len(dot)
	}
	if len(parts) == 1 && !quoted && clauseWords[parts[0]] {
		return "", n
	}
	return strings.Join(parts, "."), n
}

// closingParen returns the offset just past the parenthesis that closes the
// one opening s, skipping quoted text, or len(s) when it is unbalanced.
func closingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"':
			j := i + 1
			for j < len(s) {
				if s[j] == c {
					if j+1 < len(s) && s[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			i = j
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

// HasLimit reports whether the outermost statement carries a LIMIT or
// FETCH FIRST clause. Limits inside subqueries, literals and comments do not
// count, and neither does LIMIT ALL.
func HasLimit(stmt string) bool {
	mask := topLevel(stmt)
	if limitAll.MatchString(mask) {
		return false
	}
	return limitKeyword.MatchString(mask) || fetchClause.MatchString(mask)
}

// Score is the weighted complexity count of stmt.
func Score(stmt string) int {
	score := len(joinKeyword.FindAllStringIndex(stmt, -1)) * weightJoin
	score += len(subquery.FindAllStringIndex(stmt, -1)) * weightSubquery
	score += len(aggregate.FindAllStringIndex(stmt, -1))
	score += len(spatialCall.FindAllStringIndex(stmt, -1)) * weightSpatial
	if distinctWord.MatchString(stmt) {
		score += weightDistinct
	}
	if orderByClause.MatchString(stmt) {
		score += weightOrderBy
	}
	return score
}

func bucket(score int) models.Complexity {
	switch {
	case score >= complexityHigh:
		return models.ComplexityHigh
	case score >= complexityMedium:
		return models.ComplexityMedium
	}
	return models.ComplexityLow
}
