package policy

import "github.com/geomind/agentcore/pkg/models"

// Permissions is the capability table of one trust tier.
type Permissions struct {
	CanRead          bool     `json:"canRead"`
	CanWrite         bool     `json:"canWrite"`
	SandboxOnly      bool     `json:"sandboxOnly"`
	CanExecute       bool     `json:"canExecute"`
	CanAccessSecrets bool     `json:"canAccessSecrets"`
	CanQueryDB       bool     `json:"canQueryDB"`
	CanModifyDB      bool     `json:"canModifyDB"`
	CanDeleteFiles   bool     `json:"canDeleteFiles"`
	AllowedTools     []string `json:"allowedTools"`
}

// AllTools is the allowlist wildcard.
const AllTools = "*"

var standardTools = []string{
	"read_file", "list_directory", "write_file", "web_search", "web_fetch", "sql_query",
}

var tierPermissions = map[models.TrustLevel]Permissions{
	models.TrustStandard: {
		CanRead:      true,
		CanWrite:     true,
		SandboxOnly:  true,
		CanQueryDB:   true,
		AllowedTools: standardTools,
	},
	models.TrustExpert: {
		CanRead:        true,
		CanWrite:       true,
		CanExecute:     true,
		CanQueryDB:     true,
		CanModifyDB:    true,
		CanDeleteFiles: true,
		AllowedTools: append(append([]string{}, standardTools...),
			"create_directory", "execute_command", "sql_execute", "delete_file"),
	},
	models.TrustRoot: {
		CanRead:          true,
		CanWrite:         true,
		CanExecute:       true,
		CanAccessSecrets: true,
		CanQueryDB:       true,
		CanModifyDB:      true,
		CanDeleteFiles:   true,
		AllowedTools:     []string{AllTools},
	},
}

// PermissionsFor returns a copy of the tier's table. ok is false for an
// unknown tier.
func PermissionsFor(tier models.TrustLevel) (Permissions, bool) {
	p, ok := tierPermissions[tier]
	if !ok {
		return Permissions{}, false
	}
	p.AllowedTools = append([]string(nil), p.AllowedTools...)
	return p, true
}

// ToolAllowed reports whether name is in the tier's declared tool set.
func ToolAllowed(tier models.TrustLevel, name string) bool {
	p, ok := tierPermissions[tier]
	if !ok {
		return false
	}
	for _, t := range p.AllowedTools {
		if t == AllTools || t == name {
			return true
		}
	}
	return false
}
