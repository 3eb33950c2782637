package tools

import (
	"time"

	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/pkg/contracts"
)

// Config selects the built-in tools of a host.
type Config struct {
	SandboxRoot    string
	CommandTimeout time.Duration

	// Pipeline backs sql_query and sql_execute. Nil leaves them out.
	Pipeline *sqlexec.Pipeline
}

// Builtins returns the built-in tools in their presentation order.
func Builtins(cfg Config) []Tool {
	tools := fileTools(cfg.SandboxRoot)
	tools = append(tools, commandTool(cfg.SandboxRoot, cfg.CommandTimeout))
	if cfg.Pipeline != nil {
		tools = append(tools, sqlTools(cfg.Pipeline)...)
	}
	return tools
}

// NewDefaultCatalog creates a catalog holding the built-in tools.
func NewDefaultCatalog(engine contracts.PolicyEngine, cfg Config) (*Catalog, error) {
	c := NewCatalog(engine)
	if err := c.Register(Builtins(cfg)...); err != nil {
		return nil, err
	}
	return c, nil
}
