package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"db-schema-sync/internal/app"
)

// Opener builds the application a command works against.
type Opener func(ctx context.Context, opts *RootOptions) (*app.Application, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string
	Catalog string

	// Open defaults to loading the environment configuration.
	Open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the schemasync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemasync",
		Short: "Create and alter database tables from an entity catalog",
		Long: `schemasync creates, alters and drops the tables of a set of entities
in a fixed precedence order, one entity at a time.

It reads the same configuration as the server (.env and environment).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "environment file to load")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "entity catalog file (overrides CATALOG_FILE)")

	cmd.AddCommand(NewEntitiesCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}

func (o *RootOptions) open(ctx context.Context) (*app.Application, error) {
	if o.Open != nil {
		return o.Open(ctx, o)
	}
	return openFromEnvironment(ctx, o)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
