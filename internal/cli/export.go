package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:          "export <scan-id>",
		Short:        "Write the PDF report of a scan",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			service, err := openCoreService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := service.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			doc, err := service.ExportScanByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(outputDir, doc.FileName())
			if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write the report to")
	return cmd
}
