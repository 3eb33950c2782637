package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/geomind/agentcore/pkg/contracts"
)

// patternHeuristic flags a response that promises an action in words but
// carries no tool call.
type patternHeuristic struct {
	re         *regexp.Regexp
	corrective string
}

func (h patternHeuristic) AnnouncesAction(text string) bool { return h.re.MatchString(text) }

func (h patternHeuristic) CorrectiveTurn() string { return h.corrective }

// EnglishHeuristic catches "I will run...", "Let me query..." and similar.
func EnglishHeuristic() contracts.ActionHeuristic {
	return patternHeuristic{
		re: regexp.MustCompile(`(?i)\b(i will|i'll|let me|i am going to|i'm going to) (now )?(run|execute|launch|query|fetch|retrieve|call|check|look up)\b`),
		corrective: "STOP. Write the <tool_call> now. Do not describe it, just write:\n" +
			"<tool_call>\n{\"name\": \"sql_query\", \"input\": {\"query\": \"...\"}}\n</tool_call>",
	}
}

// FrenchHeuristic catches "je vais exécuter..." and its variants.
func FrenchHeuristic() contracts.ActionHeuristic {
	return patternHeuristic{
		re: regexp.MustCompile(`(?i)je vais (exécuter|lancer|faire|procéder|récupérer)`),
		corrective: "STOP. Tu dois écrire le <tool_call> maintenant. Ne parle plus, écris juste:\n" +
			"<tool_call>\n{\"name\": \"sql_query\", \"input\": {\"query\": \"...\"}}\n</tool_call>",
	}
}

// HeuristicFor selects the built-in heuristic for a language code. "off"
// and "none" disable the nudge and return nil.
func HeuristicFor(lang string) (contracts.ActionHeuristic, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "en", "english":
		return EnglishHeuristic(), nil
	case "fr", "french":
		return FrenchHeuristic(), nil
	case "off", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("no action heuristic for language %q", lang)
}
