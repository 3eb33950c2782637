package executor

import "strings"

// fingerprintRunes is the length of the response prefix compared between
// consecutive iterations.
const fingerprintRunes = 100

func fingerprint(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > fingerprintRunes {
		r = r[:fingerprintRunes]
	}
	return string(r)
}

// repetitionGuard detects a backend that keeps producing the same answer.
// It is request-scoped and never shared.
type repetitionGuard struct {
	last    string
	seen    bool
	repeats int
}

// observe records text and reports whether it repeats the previous
// response. The count resets whenever the fingerprint changes.
func (g *repetitionGuard) observe(text string) bool {
	fp := fingerprint(text)
	if g.seen && fp == g.last {
		g.repeats++
	} else {
		g.repeats = 0
	}
	g.last, g.seen = fp, true
	return g.repeats > 0
}
