package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/internal/specialist"
	"github.com/geomind/agentcore/pkg/models"
)

func newCheckCommand(out func(*cobra.Command) printer) *cobra.Command {
	var (
		tier      string
		sandbox   string
		rulesFile string
		req       models.OperationRequest
		kind      string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ask the policy engine whether a tier may perform an operation",
		Example: `  agentctl check --tier expert --kind execute_command --command "rm old.log"
  agentctl check --tier standard --kind write_file --path /etc/hosts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := models.ParseTrustLevel(tier)
			if err != nil {
				return err
			}
			if kind == "" {
				return errors.New("--kind is required")
			}
			req.Kind = models.OperationKind(kind)

			if sandbox == "" {
				if sandbox, err = os.Getwd(); err != nil {
					return err
				}
			}
			var opts []policy.Option
			if rulesFile != "" {
				rules, err := policy.LoadRules(rulesFile)
				if err != nil {
					return err
				}
				opts = append(opts, policy.WithRules(rules...))
			}

			d := policy.New(sandbox, opts...).ValidateOperation(req, level)
			return out(cmd).emit(d, func(w io.Writer) {
				verdict := "DENIED"
				switch {
				case d.Allowed:
					verdict = "ALLOWED"
				case d.NeedsConfirmation:
					verdict = "NEEDS CONFIRMATION"
				}
				fmt.Fprintf(w, "%s: %s\n", verdict, d.Reason)
				if d.DangerLevel != "" {
					fmt.Fprintf(w, "Danger level: %s\n", d.DangerLevel)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&tier, "tier", "standard", "trust level: standard, expert or root")
	f.StringVar(&kind, "kind", "", "operation kind (read_file, write_file, execute_command, sql_query, sql_execute, delete_file, or a tool name)")
	f.StringVar(&req.Path, "path", "", "file path")
	f.StringVar(&req.Command, "command", "", "shell command")
	f.StringVar(&req.Query, "query", "", "SQL statement")
	f.StringVar(&req.ToolName, "tool", "", "tool name for allowlist checks")
	f.BoolVar(&req.Confirmed, "confirmed", false, "treat the operation as confirmed by the user")
	f.StringVar(&sandbox, "sandbox", "", "sandbox root (default: working directory)")
	f.StringVar(&rulesFile, "rules", "", "operator rules YAML file")
	return cmd
}

func newDangerCommand(out func(*cobra.Command) printer) *cobra.Command {
	return &cobra.Command{
		Use:   "danger [command or statement]",
		Short: "Grade the risk of a command or SQL statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := argText(cmd, args)
			if err != nil {
				return err
			}
			ev := policy.EvaluateDanger(subject)
			return out(cmd).emit(ev, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", ev.Level, ev.Consequence)
				switch {
				case ev.Blocked:
					fmt.Fprintln(w, "Never allowed, at any tier.")
				case ev.NeedsConfirmation:
					fmt.Fprintln(w, "Requires confirmation at the root tier.")
				}
			})
		},
	}
}

func newRouteCommand(out func(*cobra.Command) printer) *cobra.Command {
	var (
		profilesFile string
		showPrompt   bool
	)
	cmd := &cobra.Command{
		Use:   "route [message]",
		Short: "Show which specialists a request engages",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := argText(cmd, args)
			if err != nil {
				return err
			}
			base, profiles := specialist.DefaultBasePrompt, specialist.DefaultProfiles()
			if profilesFile != "" {
				loaded, override, err := specialist.LoadProfiles(profilesFile)
				if err != nil {
					return err
				}
				profiles = loaded
				if override != "" {
					base = override
				}
			}
			router, err := specialist.New(base, profiles)
			if err != nil {
				return err
			}

			res := router.Route(msg)
			return out(cmd).emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "Mode: %s\n", res.Mode)
				if len(res.Profiles) == 0 {
					fmt.Fprintln(w, "Specialists: none")
				} else {
					fmt.Fprintf(w, "Specialists: %v\n", res.Profiles)
				}
				if showPrompt {
					fmt.Fprintf(w, "\n%s\n", res.SystemPrompt)
				}
			})
		},
	}
	cmd.Flags().StringVar(&profilesFile, "profiles", "", "specialist profiles YAML file")
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the enriched system prompt")
	return cmd
}
