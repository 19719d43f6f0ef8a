package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turtacn/EquityLens/pkg/client"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	var (
		title     string
		analystID string
		file      string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a report for assessment",
		Long:  "Submit reads the report body from --file (or stdin with --file -) and prints the stored report. In inline deployments the assessment result is available immediately; in queued deployments poll with 'assessment'.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readBody(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			c, err := opts.newClient()
			if err != nil {
				return err
			}
			dto, err := c.SubmitReport(cmd.Context(), client.SubmitReportRequest{
				Title:     title,
				AnalystID: analystID,
				Text:      text,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&analystID, "analyst", "", "submitting analyst ID")
	cmd.Flags().StringVar(&file, "file", "-", "report body file, - for stdin")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("analyst")
	return cmd
}

func readBody(stdin io.Reader, file string) (string, error) {
	var raw []byte
	var err error
	if file == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read report body: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("report body is empty")
	}
	return text, nil
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored reports",
	}
	cmd.AddCommand(newReportShowCommand(opts), newReportListCommand(opts))
	return cmd
}

func newReportShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			dto, err := c.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}
}

func newReportListCommand(opts *rootOptions) *cobra.Command {
	var req client.ListReportsRequest

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			resp, err := c.ListReports(cmd.Context(), req)
			if err != nil {
				return err
			}
			printReportTable(cmd.OutOrStdout(), resp.Reports)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d report(s)\n",
				len(resp.Reports), resp.Pagination.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AnalystID, "analyst", "", "filter by analyst ID")
	cmd.Flags().StringVar(&req.Status, "status", "", "filter by lifecycle status")
	cmd.Flags().StringVar(&req.Ticker, "ticker", "", "filter by covered ticker")
	cmd.Flags().IntVar(&req.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&req.PageSize, "page-size", 20, "page size")
	return cmd
}

func printReportTable(w io.Writer, reports []rtypes.ReportDTO) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tANALYST\tSTATUS\tTICKERS\tWORDS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.Title, r.AnalystID, r.Status,
			strings.Join(r.Tickers, ","), r.WordCount)
	}
	_ = tw.Flush()
}
