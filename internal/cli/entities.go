package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"db-schema-sync/internal/models"
)

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "entities",
		Short:         "List the entities of the catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntities(cmd, rootOpts)
		},
	}
}

func runEntities(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)

	application, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	defs, err := application.SyncService.ListEntities(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog", err)
	}

	if f.JSON() {
		return f.Encode("ok", defs, "")
	}

	rows := make([]table.Row, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, table.Row{def.Name, def.StorageName, describeFields(def)})
	}
	f.Table(table.Row{"Entity", "Table", "Fields"}, rows)
	f.Println(fmt.Sprintf("(%d entities)", len(defs)))
	return nil
}

func describeFields(def models.EntityDefinition) string {
	parts := make([]string, 0, len(def.Fields))
	for _, field := range def.Fields {
		s := field.Name
		switch {
		case field.PrimaryKey:
			s += "*"
		case field.Reference != nil:
			s += "->" + field.Reference.TargetEntity
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
