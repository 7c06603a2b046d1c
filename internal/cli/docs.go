package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"askcode/internal/bootstrap"
	"askcode/internal/domain"
)

var (
	docsType     string
	docsAudience string
	docsContext  string
	docsK        int
	docsOutput   string
	docsJSON     bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate documentation from the indexed code",
	Long: `Generate overview, architecture, api or onboarding documentation for an
audience of engineers, product managers or stakeholders.

Examples:
  askcode docs -s demo --type overview
  askcode docs -s demo --type api --audience engineer -o API.md
  askcode docs -s demo --type architecture --audience pm --context "billing platform"`,
	RunE: runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	addSessionFlag(docsCmd)
	docsCmd.Flags().StringVarP(&docsType, "type", "t", string(domain.DocOverview), "overview, architecture, api or onboarding")
	docsCmd.Flags().StringVarP(&docsAudience, "audience", "a", string(domain.AudienceEngineer), "engineer, pm or stakeholder")
	docsCmd.Flags().StringVar(&docsContext, "context", "", "business context to frame the documentation")
	docsCmd.Flags().IntVarP(&docsK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	docsCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "write the markdown to this file")
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
}

func runDocs(cmd *cobra.Command, args []string) error {
	return withContainer(func(c *bootstrap.Container) error {
		res, err := c.Engine.GenerateDocs(cmd.Context(), domain.DocsRequest{
			SessionID:       sessionID,
			DocType:         domain.DocType(docsType),
			Audience:        domain.Audience(docsAudience),
			BusinessContext: docsContext,
			K:               docsK,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if docsJSON {
			return printJSON(out, res)
		}
		if docsOutput != "" {
			if err := os.WriteFile(docsOutput, []byte(res.Content+"\n"), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", docsOutput, err)
			}
			fmt.Fprintf(out, "Wrote %s documentation to %s\n", res.DocType, docsOutput)
		} else {
			fmt.Fprintln(out, res.Content)
		}
		printSources(out, res.Sources)
		printWarning(out, res.Warning)
		return nil
	})
}
