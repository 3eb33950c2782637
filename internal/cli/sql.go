package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/geomind/agentcore/internal/sqlguard"
)

type sqlFlags struct {
	write   bool
	strict  bool
	tables  []string
	maxRows int
}

func (f *sqlFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.write, "write", false, "allow write statements (readOnly=false)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "promote low-severity findings to errors")
	cmd.Flags().StringSliceVar(&f.tables, "tables", nil, "allowed tables (schema.table), empty allows all")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", sqlguard.DefaultMaxRows, "row cap for the appended LIMIT")
}

func (f *sqlFlags) options() sqlguard.Options {
	return sqlguard.Options{
		ReadOnly:      !f.write,
		Strict:        f.strict,
		AllowedTables: f.tables,
		MaxRows:       f.maxRows,
	}
}

func newValidateSQLCommand(out func(*cobra.Command) printer) *cobra.Command {
	var flags sqlFlags
	cmd := &cobra.Command{
		Use:   "validate-sql [statement]",
		Short: "Validate a SQL statement and print its analysis",
		Long:  "Reports every violation at once. Exits non-zero when the statement is invalid. Reads stdin when no statement is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, err := argText(cmd, args)
			if err != nil {
				return err
			}
			result := sqlguard.Validate(stmt, flags.options())
			if err := out(cmd).emit(result, func(w io.Writer) {
				fmt.Fprintln(w, sqlguard.Summary(result))
			}); err != nil {
				return err
			}
			if !result.Valid {
				return errors.New("statement is invalid")
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSanitizeSQLCommand(out func(*cobra.Command) printer) *cobra.Command {
	var flags sqlFlags
	cmd := &cobra.Command{
		Use:   "sanitize-sql [statement]",
		Short: "Validate then rewrite a SQL statement with a row cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, err := argText(cmd, args)
			if err != nil {
				return err
			}
			opts := flags.options()
			result := sqlguard.Validate(stmt, opts)
			if !result.Valid {
				fmt.Fprintln(cmd.ErrOrStderr(), sqlguard.Summary(result))
				return errors.New("statement rejected; not sanitized")
			}
			sanitized := sqlguard.Sanitize(stmt, opts.MaxRows)
			return out(cmd).emit(map[string]any{"sanitized": sanitized, "warnings": result.Warnings}, func(w io.Writer) {
				fmt.Fprintln(w, sanitized)
			})
		},
	}
	flags.register(cmd)
	return cmd
}
