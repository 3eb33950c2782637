package policy

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/geomind/agentcore/pkg/models"
)

// Rule is an operator-supplied deny rule. When is an expr-lang boolean
// expression over kind, path, command, query, tool and tier, e.g.
//
//	kind == "sql_query" && query contains "cadastre.owner"
//
// Rules only ever deny; they cannot grant what the tier table refuses.
type Rule struct {
	Name   string `yaml:"name" json:"name"`
	When   string `yaml:"when" json:"when"`
	Reason string `yaml:"reason" json:"reason"`

	program *vm.Program
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

func ruleEnv(req models.OperationRequest, tier models.TrustLevel) map[string]any {
	tool := req.ToolName
	if tool == "" {
		tool = string(req.Kind)
	}
	return map[string]any{
		"kind":    string(req.Kind),
		"path":    req.Path,
		"command": req.Command,
		"query":   req.Query,
		"tool":    tool,
		"tier":    string(tier),
	}
}

// NewRule compiles one rule.
func NewRule(name, when, reason string) (*Rule, error) {
	r := &Rule{Name: name, When: when, Reason: reason}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rule) compile() error {
	if r.When == "" {
		return fmt.Errorf("rule %q: empty condition", r.Name)
	}
	program, err := expr.Compile(r.When,
		expr.Env(ruleEnv(models.OperationRequest{}, "")),
		expr.AsBool(),
	)
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	r.program = program
	if r.Reason == "" {
		r.Reason = fmt.Sprintf("denied by operator rule %q", r.Name)
	}
	return nil
}

// Matches evaluates the rule. A runtime failure counts as a match so a
// broken rule denies instead of silently allowing.
func (r *Rule) Matches(req models.OperationRequest, tier models.TrustLevel) bool {
	out, err := expr.Run(r.program, ruleEnv(req, tier))
	if err != nil {
		return true
	}
	matched, ok := out.(bool)
	return !ok || matched
}

// LoadRules reads and compiles a YAML rules file:
//
//	rules:
//	  - name: no-owner-table
//	    when: query contains "owner"
//	    reason: owner data is off limits
func LoadRules(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	rules := make([]*Rule, 0, len(f.Rules))
	for i := range f.Rules {
		r := f.Rules[i]
		if err := r.compile(); err != nil {
			return nil, err
		}
		rules = append(rules, &r)
	}
	return rules, nil
}
