package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"db-schema-sync/internal/models"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	All      bool
	Force    bool
	Alter    bool
	SafeMode bool
	Yes      bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [entity[:field,field...]...]",
		Short: "Synchronize entity tables",
		Long: `Create or alter the tables of the named entities in precedence order.

An entity may be narrowed to some of its fields with entity:field,field.
Safe mode is on by default and only creates missing tables; pass
--safe-mode=false --alter to alter existing ones. --force drops the
selected tables in reverse order first and requires --yes.

Examples:
  schemasync sync user Course
  schemasync sync --all
  schemasync sync user:user_id,email --safe-mode=false
  schemasync sync Course --force --yes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "synchronize every catalog entity")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "drop the selected tables before creating them")
	cmd.Flags().BoolVar(&opts.Alter, "alter", false, "alter existing tables to match their definitions")
	cmd.Flags().BoolVar(&opts.SafeMode, "safe-mode", true, "only create missing tables")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm destructive options")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions, args []string) error {
	f := opts.formatter(cmd)

	if opts.All && len(args) > 0 {
		return NewExitError(ExitCommandError, "--all cannot be combined with entity names")
	}
	if !opts.All && len(args) == 0 {
		return NewExitError(ExitCommandError, "name at least one entity or pass --all")
	}
	if opts.Force && !opts.Yes {
		return NewExitError(ExitCommandError, "--force drops tables; pass --yes to confirm")
	}

	application, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	refs := ParseEntityRefs(args)
	if opts.All {
		defs, err := application.SyncService.ListEntities(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read catalog", err)
		}
		for _, def := range defs {
			refs = append(refs, models.EntityRef{Name: def.Name})
		}
	}

	syncOpts := models.SyncOptions{Force: opts.Force, Alter: opts.Alter, SafeMode: opts.SafeMode}
	f.VerboseLog("Synchronizing %d entities (%s)", len(refs), syncOpts)

	outcome := application.SyncService.Synchronize(cmd.Context(), refs, syncOpts)

	if f.JSON() {
		status := "ok"
		if !outcome.Success {
			status = "error"
		}
		if err := f.Encode(status, outcome, outcome.Error); err != nil {
			return err
		}
	} else {
		renderOutcome(f, outcome)
	}

	if !outcome.Success {
		return NewExitError(ExitFailure, outcome.Message)
	}
	return nil
}

func renderOutcome(f *OutputFormatter, outcome *models.SyncOutcome) {
	for _, line := range outcome.Logs {
		f.Println(line)
	}

	if len(outcome.Results) > 0 {
		rows := make([]table.Row, 0, len(outcome.Results))
		for _, r := range outcome.Results {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			rows = append(rows, table.Row{r.Entity, r.Table, r.Phase, r.Action, status, r.Error})
		}
		f.Table(table.Row{"Entity", "Table", "Phase", "Action", "Status", "Error"}, rows)
	}

	f.Println(outcome.Message)
}

// ParseEntityRefs turns "name" and "name:field,field" arguments into refs.
func ParseEntityRefs(args []string) []models.EntityRef {
	refs := make([]models.EntityRef, 0, len(args))
	for _, arg := range args {
		name, fieldList, _ := strings.Cut(arg, ":")
		ref := models.EntityRef{Name: strings.TrimSpace(name)}
		for _, field := range strings.Split(fieldList, ",") {
			if field = strings.TrimSpace(field); field != "" {
				ref.Fields = append(ref.Fields, field)
			}
		}
		refs = append(refs, ref)
	}
	return refs
}
