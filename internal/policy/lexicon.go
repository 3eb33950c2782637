package policy

import (
	"path"
	"runtime"
	"strings"
)

// protectedPaths are substrings marking files that may hold secrets.
var protectedPaths = []string{
	".env", "credentials", "secrets", "password", ".key",
	".pem", "config/db", "apikey", ".ssh", "private",
}

// dangerousCommands gate the expert tier behind a confirmation.
var dangerousCommands = []string{
	"rm ", "del ", "rmdir", "format", "fdisk", "sudo",
	"chmod", "chown", "kill", "> /dev/", "mkfs", "dd if=",
}

// windowsPaths folds case and treats backslashes as separators. Elsewhere
// both are significant: /x/SANDBOX is not /x/sandbox, and a\b is one name.
var windowsPaths = runtime.GOOS == "windows"

// normalizePath cleans p for a lexical comparison, folding it the way the
// host filesystem does.
func normalizePath(p string) string {
	if windowsPaths {
		p = strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	}
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// IsProtectedPath reports whether p names a secret-bearing file.
func IsProtectedPath(p string) bool {
	n := strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	for _, s := range protectedPaths {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// InSandbox reports whether p lies inside root. The check is lexical: both
// sides are normalized and cleaned, so ".." segments cannot escape, but
// symlinks are not resolved. Case only folds on Windows. An empty root
// contains nothing.
func InSandbox(root, p string) bool {
	r, n := normalizePath(root), normalizePath(p)
	if r == "" || n == "" {
		return false
	}
	if r == "/" {
		return strings.HasPrefix(n, "/")
	}
	return n == r || strings.HasPrefix(n, r+"/")
}

// IsDangerousCommand reports whether cmd contains a dangerous-command token.
func IsDangerousCommand(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, c := range dangerousCommands {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
