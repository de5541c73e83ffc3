package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"db-schema-sync/internal/services"
)

type OrderResult struct {
	Order    []string `json:"order"`
	Drop     []string `json:"drop"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order [entity...]",
		Short: "Show the creation and drop order of entities",
		Long: `Show the order in which entities would be created, and dropped on a
forced sync. With no arguments the whole catalog is ordered.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(cmd, rootOpts, args)
		},
	}
}

func runOrder(cmd *cobra.Command, opts *RootOptions, names []string) error {
	f := opts.formatter(cmd)

	application, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	order, warnings, err := application.SyncService.PreviewOrder(cmd.Context(), names)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog", err)
	}

	result := OrderResult{Order: []string{}, Drop: []string{}, Warnings: warnings}
	for _, def := range order {
		result.Order = append(result.Order, def.Name)
	}
	for _, def := range services.Reverse(order) {
		result.Drop = append(result.Drop, def.Name)
	}

	if f.JSON() {
		return f.Encode("ok", result, "")
	}

	for _, w := range warnings {
		f.Warn("%s", w)
	}
	rows := make([]table.Row, 0, len(order))
	for i, def := range order {
		_, listed := application.Resolver.Precedence().Position(def.Name)
		rows = append(rows, table.Row{i + 1, def.Name, def.StorageName, listed})
	}
	f.Table(table.Row{"#", "Entity", "Table", "Listed"}, rows)
	return nil
}
