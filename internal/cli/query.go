package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"askcode/internal/bootstrap"
	"askcode/internal/domain"
)

var (
	queryText    string
	queryJSON    bool
	queryFilters domain.Filters
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question about an ingested codebase",
	Long: `Answer a question from the session's indexed code. Every answer line cites
the chunk it came from; if nothing relevant is indexed the answer says so.

Examples:
  askcode query -s demo -q "how are requests authenticated?"
  askcode query -s demo -q "where is retry logic" --lang go --path "internal/**" --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addSessionFlag(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "question", "q", "", "question to ask (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().StringVar(&queryFilters.Language, "lang", "", "only use chunks in this language")
	queryCmd.Flags().StringVar(&queryFilters.PathGlob, "path", "", "only use chunks whose file path matches this glob")
	queryCmd.Flags().StringVar(&queryFilters.Repo, "repo", "", "only use chunks from this repo")
	queryCmd.Flags().StringVar(&queryFilters.SymbolType, "symbol-type", "", "only use chunks of this symbol type")
	queryCmd.Flags().StringVar(&queryFilters.DocType, "doc-type", "", "only use chunks of this document type")
	_ = queryCmd.MarkFlagRequired("question")
}

func runQuery(cmd *cobra.Command, args []string) error {
	return withContainer(func(c *bootstrap.Container) error {
		ans, err := c.Engine.Query(cmd.Context(), domain.QueryRequest{
			SessionID: sessionID,
			Question:  queryText,
			Filters:   queryFilters,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if queryJSON {
			return printJSON(out, ans)
		}
		fmt.Fprintln(out, ans.Answer)
		printSources(out, ans.Sources)
		if ans.ModelUsed != "" {
			fmt.Fprintf(out, "\nmodel: %s  retrieval_conf: %.4f  rerank_conf: %.4f\n",
				ans.ModelUsed, ans.RetrievalConf, ans.RerankConf)
		}
		return nil
	})
}
