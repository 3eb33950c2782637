package sqlguard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	trailingTerminators = regexp.MustCompile(`[\s;]+$`)
	readLeading         = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	tailClause          = regexp.MustCompile(`(?i)\b(OFFSET|FETCH|FOR\s+(UPDATE|SHARE|NO\s+KEY|KEY))\b`)
	intoKeyword         = regexp.MustCompile(`(?i)\bINTO\b`)
)

// Sanitize rewrites a validated statement: trailing terminators are removed
// and a read gets its row count capped at maxRows. A read without a
// top-level LIMIT gets one, placed after a top-level ORDER BY clause when
// present and otherwise at the end. LIMIT ALL, expression limits and counts
// above maxRows are replaced by maxRows. Statements whose outermost verb
// writes (including CTE-fronted INSERT, UPDATE and DELETE, and SELECT INTO)
// are left alone. Sanitize is idempotent.
func Sanitize(stmt string, maxRows int) string {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	s := trailingTerminators.ReplaceAllString(strings.TrimSpace(stmt), "")
	if !readLeading.MatchString(s) {
		return s
	}
	mask := topLevel(s)
	if IsWrite(mask) || intoKeyword.MatchString(mask) {
		return s
	}
	if bounded, ok := boundRowLimit(s, mask, maxRows); ok {
		return bounded
	}

	limit := fmt.Sprintf("LIMIT %d", maxRows)
	at := orderByEnd(s)
	if at < 0 || at >= len(s) {
		if endsInLineComment(s) {
			return s + "\n" + limit
		}
		return s + " " + limit
	}
	return strings.TrimRight(s[:at], " \t\r\n") + " " + limit + " " + s[at:]
}

// boundRowLimit caps an existing top-level LIMIT or FETCH FIRST clause at
// maxRows. It reports false when the statement has neither.
func boundRowLimit(s, mask string, maxRows int) (string, bool) {
	if locs := limitKeyword.FindAllStringIndex(mask, -1); len(locs) > 0 {
		loc := locs[len(locs)-1]
		argStart, argEnd := loc[1], len(mask)
		if tail := tailClause.FindStringIndex(mask[argStart:]); tail != nil {
			argEnd = argStart + tail[0]
		}
		if withinCap(mask[argStart:argEnd], maxRows) {
			return s, true
		}
		end := argStart + len(strings.TrimRight(mask[argStart:argEnd], " \t\r\n"))
		return s[:loc[0]] + fmt.Sprintf("LIMIT %d", maxRows) + s[end:], true
	}
	if m := fetchClause.FindStringSubmatchIndex(mask); m != nil {
		count := strings.TrimSpace(mask[m[2]:m[3]])
		if count == "" || withinCap(count, maxRows) {
			return s, true
		}
		return s[:m[2]] + fmt.Sprintf(" %d ", maxRows) + s[m[3]:], true
	}
	return s, false
}

// withinCap reports whether arg is a plain row count no larger than maxRows.
func withinCap(arg string, maxRows int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	return err == nil && n >= 0 && n <= maxRows
}

// endsInLineComment reports whether the last line of s is closed by a
// top-level "--" comment, in which case appended text would be swallowed.
func endsInLineComment(s string) bool {
	start := strings.LastIndexByte(s, '\n') + 1
	line := s[start:]
	return strings.Contains(line, "--") && !strings.Contains(topLevel(s)[start:], "--")
}

// orderByEnd returns the byte offset where the last top-level ORDER BY
// clause ends, or -1 when there is none.
func orderByEnd(s string) int {
	mask := topLevel(s)
	locs := orderByClause.FindAllStringIndex(mask, -1)
	if len(locs) == 0 {
		return -1
	}
	end := locs[len(locs)-1][1]
	if tail := tailClause.FindStringIndex(mask[end:]); tail != nil {
		return end + tail[0]
	}
	return len(s)
}

// topLevel blanks everything nested in parentheses, quoted or commented so
// keyword searches only see the outermost statement. Offsets are preserved.
func topLevel(s string) string {
	out := []byte(s)
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
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
			blank(out, i, j)
			i = j
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				j = len(s) - i
			}
			blank(out, i, i+j-1)
			i += j
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			j := strings.Index(s[i+2:], "*/")
			end := len(s) - 1
			if j >= 0 {
				end = i + 2 + j + 1
			}
			blank(out, i, end)
			i = end
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth > 0 {
				out[i] = ' '
			}
		}
	}
	return string(out)
}

// blank replaces out[from..to] (inclusive, clamped) with spaces.
func blank(out []byte, from, to int) {
	if to >= len(out) {
		to = len(out) - 1
	}
	for k := from; k <= to; k++ {
		out[k] = ' '
	}
}
