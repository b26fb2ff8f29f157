package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/oralvis/internal/backend"
	"github.com/jo-hoe/oralvis/internal/report"
)

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List stored scans in upload order",
		Args:         cobra.NoArgs,
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

			records, err := service.ListScans(cmd.Context())
			if err != nil {
				return err
			}
			scans := make([]backend.Scan, 0, len(records))
			for _, r := range records {
				scans = append(scans, backend.ToScan(r))
			}
			return writeScans(cmd.OutOrStdout(), rootOpts.Format, scans)
		},
	}
}

func writeScans(w io.Writer, format string, scans []backend.Scan) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(scans)
	}
	if len(scans) == 0 {
		_, err := fmt.Fprintln(w, "no scans stored")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATIENT\tPATIENT ID\tSCAN TYPE\tREGION\tUPLOADED")
	for _, s := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.PatientName, s.PatientID, s.ScanType, s.Region, s.UploadDate.Format(report.DateLayout))
	}
	return tw.Flush()
}
