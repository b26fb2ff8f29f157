// Package cli implements oralvisctl, the operator command line for a scan store.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/oralvis/internal/core"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "oralvisctl",
		Short: "Operate an OralVis scan store",
		Long: `Inspect the scans stored by the OralVis server and export their reports.

Reads the same configuration file as the server ($CONFIG_PATH or ./config.yaml).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

// openCoreService loads the configuration and opens its scan store. The caller closes
// the service.
func openCoreService(ctx context.Context, opts *RootOptions) (*core.CoreService, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = core.ConfigPath(); err != nil {
			return nil, err
		}
	}
	config, err := core.LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}
	return core.NewCoreService(ctx, config)
}
