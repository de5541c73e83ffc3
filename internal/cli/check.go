package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"db-schema-sync/internal/models"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the precedence list against entity references",
		Long: `Report every reference whose target entity is missing from the
precedence list or listed after the entity that references it.

Exits with status 1 when problems are found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts)
		},
	}
}

func runCheck(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)

	application, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	violations, err := application.SyncService.CheckPrecedence(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog", err)
	}
	if violations == nil {
		violations = []models.PrecedenceViolation{}
	}

	if f.JSON() {
		status := "ok"
		if len(violations) > 0 {
			status = "error"
		}
		if err := f.Encode(status, violations, ""); err != nil {
			return err
		}
	} else if len(violations) == 0 {
		f.Println("Precedence list is consistent with entity references")
	} else {
		rows := make([]table.Row, 0, len(violations))
		for _, v := range violations {
			rows = append(rows, table.Row{v.Entity, v.Field, v.Target, v.Message})
		}
		f.Table(table.Row{"Entity", "Field", "Target", "Problem"}, rows)
	}

	if len(violations) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d precedence problem(s) found", len(violations)))
	}
	return nil
}
