package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"askcode/internal/bootstrap"
	"askcode/internal/domain"
)

var (
	suggestText string
	suggestJSON bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose an implementation for a feature that does not exist yet",
	Long: `Draft a proposal for new functionality, using the session's related code as
reference for style and integration points.

Examples:
  askcode suggest -s demo -q "add an export endpoint for invoices"`,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	addSessionFlag(suggestCmd)
	suggestCmd.Flags().StringVarP(&suggestText, "question", "q", "", "feature request (required)")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output as JSON")
	_ = suggestCmd.MarkFlagRequired("question")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	return withContainer(func(c *bootstrap.Container) error {
		p, err := c.Engine.Suggest(cmd.Context(), domain.SuggestRequest{
			SessionID: sessionID,
			Question:  suggestText,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if suggestJSON {
			return printJSON(out, p)
		}
		if p.Status == domain.ProposalFailed {
			return fmt.Errorf("proposal failed: %s", p.Summary)
		}
		if p.Summary != "" {
			fmt.Fprintf(out, "Summary: %s\n\n", p.Summary)
		}
		fmt.Fprintln(out, p.Proposal)
		printSources(out, p.Sources)
		printWarning(out, p.Warning)
		return nil
	})
}
