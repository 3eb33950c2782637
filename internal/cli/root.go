// Package cli implements agentctl, the operator command line for one-off
// policy and SQL checks without a running server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is injected via ldflags at build time.
var Version = "dev"

// NewRootCommand builds the agentctl command tree.
func NewRootCommand() *cobra.Command {
	var (
		logLevel string
		asJSON   bool
	)
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Operator tools for the agentcore policy engine",
		Long: `agentctl runs the agentcore safety checks locally:

- validate-sql and sanitize-sql run the statement guard
- check asks the policy engine about one operation
- danger grades a command or statement
- route shows which specialists a request engages`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	out := func(cmd *cobra.Command) printer {
		return printer{w: cmd.OutOrStdout(), json: asJSON}
	}
	root.AddCommand(
		newValidateSQLCommand(out),
		newSanitizeSQLCommand(out),
		newCheckCommand(out),
		newDangerCommand(out),
		newRouteCommand(out),
		newVersionCommand(),
	)
	return root
}

// Execute runs agentctl with os.Args.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agentctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentctl %s\n", Version)
		},
	}
}

// ── Output ──────────────────────────────────────────────────

type printer struct {
	w    io.Writer
	json bool
}

// emit prints v as JSON in --json mode and calls text otherwise.
func (p printer) emit(v any, text func(w io.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

// argText joins positional args, reading stdin for "-" or no args.
func argText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok {
			if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
				return "", fmt.Errorf("no input: pass it as an argument or on stdin")
			}
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		args = []string{string(data)}
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("empty input")
	}
	return text, nil
}
