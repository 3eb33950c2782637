package policy

import (
	"regexp"
	"strings"

	"github.com/geomind/agentcore/pkg/models"
)

// ── Always Blocked ──────────────────────────────────────────
// Denied for every tier, root included: these can damage the host beyond
// recovery.

var alwaysBlockedCommands = []string{
	// disk formatting
	"format c:", "format d:", "format e:",
	"diskpart", "fdisk", "mkfs",
	"dd if=/dev/zero", "dd if=/dev/random",
	// windows system trees
	`del /s /q c:\windows`, `rd /s /q c:\windows`,
	`del /s /q c:\users`, `rd /s /q c:\users`,
	`del /s /q c:\program`, `rd /s /q c:\program`,
	// unix system trees
	"rm -rf /", "rm -rf /*", "rm -rf /home", "rm -rf /usr", "rm -rf /etc",
	// registry
	"reg delete hklm", "reg delete hkcr", `reg delete hkcu\software\microsoft\windows`,
	// boot
	"bcdedit /delete", "bootrec", "bcdboot",
	"shutdown /r /t 0", "shutdown /s /t 0",
	// fork bombs
	":(){ :|:& };:", "%0|%0", "for /l %",
	// boot records
	"fixmbr", "fixboot", "bootsect",
}

var alwaysBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)format\s+[a-z]:`),
	regexp.MustCompile(`(?i)del\s+/[sfq]+.*[a-z]:\\(windows|users|program)`),
	regexp.MustCompile(`(?i)rd\s+/[sfq]+.*[a-z]:\\(windows|users|program)`),
	regexp.MustCompile(`(?i)rm\s+-rf?\s+/(bin|boot|dev|etc|home|lib|opt|root|sbin|srv|sys|usr|var)`),
	regexp.MustCompile(`(?i)reg\s+delete\s+hk(lm|cr|cu)\\software\\microsoft\\windows`),
	regexp.MustCompile(`(?i)>\s*/dev/(sda|hda|nvme)`),
}

// IsAlwaysBlocked reports whether cmd is denied regardless of tier.
func IsAlwaysBlocked(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, b := range alwaysBlockedCommands {
		if strings.Contains(lower, b) {
			return true
		}
	}
	for _, re := range alwaysBlockedPatterns {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// ── Risk Grading ────────────────────────────────────────────

type riskPattern struct {
	re          *regexp.Regexp
	level       models.DangerLevel
	consequence string
}

func risk(level models.DangerLevel, expr, consequence string) riskPattern {
	return riskPattern{re: regexp.MustCompile(expr), level: level, consequence: consequence}
}

// riskPatterns are tried in order; the first match wins.
var riskPatterns = []riskPattern{
	risk(models.DangerCritical, `(?i)drop\s+(database|table|schema)`, "permanently deletes database objects"),
	risk(models.DangerCritical, `(?i)truncate\s+table`, "deletes every row of the table"),
	risk(models.DangerCritical, `(?i)delete\s+from\s+\w+\s*(;|$)`, "deletes every row of the table (no WHERE clause)"),
	risk(models.DangerCritical, `(?i)rm\s+-rf?\s+\S+`, "irreversible recursive file deletion"),
	risk(models.DangerCritical, `(?i)del\s+/[sfq]`, "forced file deletion"),

	risk(models.DangerHigh, `(?i)update\s+\w+\s+set\s+.*where`, "modifies existing rows"),
	risk(models.DangerHigh, `(?i)alter\s+table`, "changes the table structure"),
	risk(models.DangerHigh, `(?i)grant|revoke`, "changes database permissions"),
	risk(models.DangerHigh, `(?i)chmod\s+-R`, "recursive permission change"),
	risk(models.DangerHigh, `(?i)chown\s+-R`, "recursive ownership change"),
	risk(models.DangerHigh, `(?i)kill\s+-9`, "forcefully stops a process"),
	risk(models.DangerHigh, `(?i)taskkill\s+/f`, "forcefully stops a process"),
	risk(models.DangerHigh, `(?i)net\s+stop`, "stops a system service"),

	risk(models.DangerMedium, `(?i)insert\s+into`, "inserts new rows"),
	risk(models.DangerMedium, `(?i)create\s+(table|database|index)`, "creates database objects"),
	risk(models.DangerMedium, `(?i)npm\s+(install|uninstall)`, "changes project dependencies"),
	risk(models.DangerMedium, `(?i)pip\s+install`, "installs Python packages"),
	risk(models.DangerMedium, `(?i)git\s+(push|force|reset\s+--hard)`, "rewrites or publishes git history"),

	risk(models.DangerLow, `(?i)git\s+commit`, "records changes"),
	risk(models.DangerSafe, `(?i)select.*from`, "reads data"),
}

var dangerRank = map[models.DangerLevel]int{
	models.DangerSafe:     0,
	models.DangerLow:      1,
	models.DangerMedium:   2,
	models.DangerHigh:     3,
	models.DangerCritical: 4,
	models.DangerBlocked:  5,
}

// EvaluateDanger grades a command or statement. Levels from MEDIUM up need
// confirmation; BLOCKED is never allowed.
func EvaluateDanger(subject string) models.DangerEvaluation {
	if IsAlwaysBlocked(subject) {
		return models.DangerEvaluation{
			Level:       models.DangerBlocked,
			Rank:        dangerRank[models.DangerBlocked],
			Subject:     subject,
			Consequence: "could damage the host irreversibly",
			Blocked:     true,
		}
	}
	for _, r := range riskPatterns {
		if r.re.MatchString(subject) {
			return evaluation(r.level, subject, r.consequence)
		}
	}
	return evaluation(models.DangerSafe, subject, "no known risk")
}

func evaluation(level models.DangerLevel, subject, consequence string) models.DangerEvaluation {
	rank := dangerRank[level]
	return models.DangerEvaluation{
		Level:             level,
		Rank:              rank,
		Subject:           subject,
		Consequence:       consequence,
		NeedsConfirmation: rank >= dangerRank[models.DangerMedium],
	}
}
