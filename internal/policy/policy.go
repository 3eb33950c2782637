// Package policy decides whether a host operation may run at a trust tier.
//
// ValidateOperation is pure: it reads only the request, the tier and tables
// fixed at construction, performs no I/O and never panics. Every decision
// carries a human-readable reason that is fed back to the model so it can
// correct itself.
package policy

import (
	"fmt"

	"github.com/geomind/agentcore/internal/sqlguard"
	"github.com/geomind/agentcore/pkg/models"
)

// Engine is the OSS implementation of contracts.PolicyEngine.
type Engine struct {
	sandboxRoot string
	rules       []*Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules adds operator deny rules, evaluated after the built-in checks.
func WithRules(rules ...*Rule) Option {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

// New creates an engine whose sandboxed tiers may only write under sandboxRoot.
func New(sandboxRoot string, opts ...Option) *Engine {
	e := &Engine{sandboxRoot: sandboxRoot}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SandboxRoot returns the configured sandbox root.
func (e *Engine) SandboxRoot() string { return e.sandboxRoot }

func allow(reason string) models.PolicyDecision {
	return models.PolicyDecision{Allowed: true, Reason: reason}
}

func deny(format string, args ...any) models.PolicyDecision {
	return models.PolicyDecision{Reason: fmt.Sprintf(format, args...)}
}

func confirm(level models.DangerLevel, reason string) models.PolicyDecision {
	return models.PolicyDecision{NeedsConfirmation: true, DangerLevel: level, Reason: reason}
}

// ValidateOperation decides allow/deny for req at tier.
func (e *Engine) ValidateOperation(req models.OperationRequest, tier models.TrustLevel) models.PolicyDecision {
	perms, ok := tierPermissions[tier]
	if !ok {
		return deny("unknown trust level %q", tier)
	}

	d := e.builtin(req, tier, perms)
	if !d.Allowed && !d.NeedsConfirmation {
		return d
	}
	for _, r := range e.rules {
		if r.Matches(req, tier) {
			return models.PolicyDecision{Reason: r.Reason}
		}
	}
	return d
}

func (e *Engine) builtin(req models.OperationRequest, tier models.TrustLevel, perms Permissions) models.PolicyDecision {
	switch req.Kind {
	case models.OpReadFile:
		if !perms.CanRead {
			return deny("reading files is not allowed at tier %q", tier)
		}
		if IsProtectedPath(req.Path) && !perms.CanAccessSecrets {
			return deny("access denied: %s is a protected file; root tier is required for secrets", req.Path)
		}
		return allow("read allowed")

	case models.OpWriteFile:
		if !perms.CanWrite {
			return deny("writing files is not allowed at tier %q", tier)
		}
		if perms.SandboxOnly && !InSandbox(e.sandboxRoot, req.Path) {
			return deny("write denied: tier %q may only write inside the sandbox (%s)", tier, e.sandboxRoot)
		}
		if IsProtectedPath(req.Path) && !perms.CanAccessSecrets {
			return deny("write denied: %s is a protected file", req.Path)
		}
		return allow("write allowed")

	case models.OpExecute:
		return e.execute(req, tier, perms)

	case models.OpQueryReadOnly, models.OpQueryWrite:
		return e.query(req, tier, perms)

	case models.OpDeleteFile:
		if !perms.CanDeleteFiles {
			return deny("deleting files is not allowed at tier %q", tier)
		}
		if IsProtectedPath(req.Path) && !perms.CanAccessSecrets {
			return deny("delete denied: %s is a protected file", req.Path)
		}
		return allow("delete allowed")
	}

	name := req.ToolName
	if name == "" {
		name = string(req.Kind)
	}
	if !ToolAllowed(tier, name) {
		return deny("tool %q is not allowed at tier %q", name, tier)
	}
	return allow(fmt.Sprintf("tool %q allowed", name))
}

func (e *Engine) execute(req models.OperationRequest, tier models.TrustLevel, perms Permissions) models.PolicyDecision {
	if !perms.CanExecute {
		return deny("command execution is not allowed at tier %q; expert tier is required", tier)
	}
	if IsAlwaysBlocked(req.Command) {
		d := deny("command blocked: could damage the host irreversibly")
		d.Blocked = true
		d.DangerLevel = models.DangerBlocked
		return d
	}

	if tier == models.TrustRoot {
		ev := EvaluateDanger(req.Command)
		if ev.NeedsConfirmation && !req.Confirmed {
			return confirm(ev.Level, fmt.Sprintf("confirmation required (risk %s: %s)", ev.Level, ev.Consequence))
		}
		d := allow("command allowed")
		d.DangerLevel = ev.Level
		return d
	}

	if IsDangerousCommand(req.Command) && !req.Confirmed {
		return confirm("", "potentially dangerous command; root tier or explicit confirmation is required")
	}
	return allow("command allowed")
}

func (e *Engine) query(req models.OperationRequest, tier models.TrustLevel, perms Permissions) models.PolicyDecision {
	if !perms.CanQueryDB {
		return deny("database queries are not allowed at tier %q", tier)
	}

	if tier == models.TrustRoot {
		ev := EvaluateDanger(req.Query)
		if ev.Blocked {
			d := deny("statement blocked: %s", ev.Consequence)
			d.Blocked = true
			d.DangerLevel = models.DangerBlocked
			return d
		}
		if ev.NeedsConfirmation && !req.Confirmed {
			return confirm(ev.Level, fmt.Sprintf("confirmation required (SQL risk %s: %s)", ev.Level, ev.Consequence))
		}
		d := allow("query allowed")
		d.DangerLevel = ev.Level
		return d
	}

	if (req.Kind == models.OpQueryWrite || sqlguard.RequiresWrite(req.Query)) && !perms.CanModifyDB {
		return deny("data modification is not allowed at tier %q; only read statements are permitted", tier)
	}
	return allow("query allowed")
}
