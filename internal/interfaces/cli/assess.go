package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssessmentCommand(opts *rootOptions) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "assessment <report-id>",
		Short: "Show an assessment run",
		Long:  "Assessment prints one assessment run of a report. Without --version the latest run is shown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			dto, err := c.GetAssessment(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "assessment version, 0 for latest")

	cmd.AddCommand(&cobra.Command{
		Use:   "history <report-id>",
		Short: "Show every assessment version of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			resp, err := c.GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	})
	return cmd
}

func newCompareCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <report-id> <report-id> [report-id...]",
		Short: "Compare the latest assessments of 2 to 10 reports",
		Args:  cobra.RangeArgs(2, 10),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			dto, err := c.Compare(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}
}

func newReassessCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reassess <report-id>",
		Short: "Run a fresh assessment version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			dto, err := c.Reassess(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}
}

func newRetractCommand(opts *rootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "retract <report-id>",
		Short: "Withdraw a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Retract(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report %s retracted\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "retraction reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newArchiveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <report-id>",
		Short: "Archive an assessed report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Archive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report %s archived\n", args[0])
			return nil
		},
	}
}
