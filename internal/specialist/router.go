// Package specialist selects specialist profiles for a request and builds
// the enriched system prompt that advertises them to the agent.
//
// A profile activates when any one of its triggers matches. Profiles are
// independent: there is no priority and no mutual exclusion. The router is
// read-only after construction and safe for concurrent use.
package specialist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/geomind/agentcore/pkg/models"
)

type compiled struct {
	profile  models.SpecialistProfile
	triggers []*regexp.Regexp
}

// Router matches request text against specialist triggers.
type Router struct {
	base     string
	profiles []compiled
}

// New compiles the triggers of every profile. Triggers are matched
// case-insensitively. An empty base falls back to DefaultBasePrompt.
func New(base string, profiles []models.SpecialistProfile) (*Router, error) {
	if base == "" {
		base = DefaultBasePrompt
	}
	r := &Router{base: base}
	seen := map[string]bool{}
	for _, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("specialist %q: missing id", p.Name)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("specialist %q: duplicate id", p.ID)
		}
		seen[p.ID] = true

		c := compiled{profile: p}
		for _, t := range p.Triggers {
			re, err := regexp.Compile("(?i)" + t)
			if err != nil {
				return nil, fmt.Errorf("specialist %q trigger %q: %w", p.ID, t, err)
			}
			c.triggers = append(c.triggers, re)
		}
		r.profiles = append(r.profiles, c)
	}
	return r, nil
}

// Profiles lists the configured profiles in declaration order.
func (r *Router) Profiles() []models.SpecialistProfile {
	out := make([]models.SpecialistProfile, len(r.profiles))
	for i, c := range r.profiles {
		out[i] = c.profile
	}
	return out
}

// Match returns the ids of the profiles whose triggers fire on text.
func (r *Router) Match(text string) []string {
	active := []string{}
	for _, c := range r.profiles {
		for _, re := range c.triggers {
			if re.MatchString(text) {
				active = append(active, c.profile.ID)
				break
			}
		}
	}
	return active
}

// Route selects the specialists for text and renders the enriched prompt.
func (r *Router) Route(text string) models.RouteResult {
	active := r.Match(text)
	mode := models.RouteMain
	switch {
	case len(active) == 1:
		mode = models.RouteSingle
	case len(active) > 1:
		mode = models.RouteParallel
	}
	return models.RouteResult{
		Profiles:     active,
		Mode:         mode,
		SystemPrompt: r.EnrichedPrompt(active),
	}
}

// EnrichedPrompt lists every profile, marking the active ones and inlining
// their directives. Inactive profiles stay listed so the agent knows the
// capabilities exist.
func (r *Router) EnrichedPrompt(active []string) string {
	on := make(map[string]bool, len(active))
	for _, id := range active {
		on[id] = true
	}

	var b strings.Builder
	b.WriteString(r.base)
	b.WriteString("\n\n## Capabilities\nYou have specialized modules you can draw on as needed:\n")
	for _, c := range r.profiles {
		p := c.profile
		if on[p.ID] {
			fmt.Fprintf(&b, "\n### %s (ACTIVE)\n%s\nDirectives: %s\n", p.Name, p.Description, p.Directive)
		} else {
			fmt.Fprintf(&b, "\n### %s\n%s\n", p.Name, p.Description)
		}
	}
	b.WriteString(`
## Behavior
- Identify which modules the request needs.
- Apply the specialized guidance when relevant.
- Give precise, actionable answers.
- Put code in fenced blocks tagged with the language.`)
	return b.String()
}
