// Package cli implements the equitylens command-line interface.  Every
// command talks to a running API server through the SDK in pkg/client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/EquityLens/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// rootOptions carries the global flags shared by every command.
type rootOptions struct {
	serverAddr string
	apiKey     string
	timeout    time.Duration
}

func (o *rootOptions) newClient() (*client.Client, error) {
	return client.NewClient(o.serverAddr, o.apiKey,
		client.WithTimeout(o.timeout),
		client.WithUserAgent("equitylens-cli/"+Version),
	)
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "equitylens",
		Short:         "Assess investment-research reports",
		Long:          "equitylens submits research reports for assessment and inspects the results: quality scores, plagiarism candidates, authorship verdicts and compliance findings.",
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.serverAddr, "server", "http://localhost:8080", "API server address")
	flags.StringVar(&opts.apiKey, "api-key", "", "API key for authenticated deployments")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newSubmitCommand(opts),
		newReportCommand(opts),
		newAssessmentCommand(opts),
		newCompareCommand(opts),
		newReassessCommand(opts),
		newRetractCommand(opts),
		newArchiveCommand(opts),
	)
	return root
}

// printJSON renders any API payload as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
