package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"askcode/internal/bootstrap"
	"askcode/internal/domain"
	"askcode/internal/usecase"
)

var (
	evalFile string
	evalJSON bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run a file of questions against a session and report routing stats",
	Long: `Run every question in a YAML file through the query pipeline and summarize
model tiers, latency, cache hits and how many answers were grounded.

File format:
  session_id: demo
  questions:
    - question: where is the config loaded?
    - question: how are routes registered?
      filters:
        language: go

Examples:
  askcode eval -f questions.yaml
  askcode eval -f questions.yaml -s other-session --json`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVarP(&evalFile, "file", "f", "", "YAML question file (required)")
	evalCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (overrides the file's session_id)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output the report as JSON")
	_ = evalCmd.MarkFlagRequired("file")
}

type evalCase struct {
	Question string         `yaml:"question"`
	Filters  domain.Filters `yaml:"filters,omitempty"`
}

type evalSuite struct {
	SessionID string     `yaml:"session_id"`
	Questions []evalCase `yaml:"questions"`
}

type evalResult struct {
	Question string  `json:"question"`
	Model    string  `json:"model_used,omitempty"`
	Sources  int     `json:"sources"`
	LatencyS float64 `json:"latency_s"`
	Error    string  `json:"error,omitempty"`
}

type evalReport struct {
	SessionID   string         `json:"session_id"`
	Total       int            `json:"total"`
	Grounded    int            `json:"grounded"`
	NotPresent  int            `json:"not_present"`
	Failed      int            `json:"failed"`
	Tiers       map[string]int `json:"tiers"`
	AvgLatencyS float64        `json:"avg_latency_s"`
	CacheHits   int64          `json:"cache_hits"`
	Results     []evalResult   `json:"results"`
}

type querier interface {
	Query(ctx context.Context, req domain.QueryRequest) (domain.Answer, error)
	Metrics() domain.MetricsSnapshot
}

func loadEvalSuite(path string) (*evalSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite evalSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(suite.Questions) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	for i, q := range suite.Questions {
		if q.Question == "" {
			return nil, fmt.Errorf("question %d in %s is empty", i+1, path)
		}
	}
	return &suite, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	suite, err := loadEvalSuite(evalFile)
	if err != nil {
		return err
	}
	if sessionID != "" {
		suite.SessionID = sessionID
	}
	if suite.SessionID == "" {
		return fmt.Errorf("no session: set session_id in %s or pass --session", evalFile)
	}

	return withContainer(func(c *bootstrap.Container) error {
		bar := progressbar.NewOptions(len(suite.Questions),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Evaluating[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)

		report, err := runSuite(cmd.Context(), c.Engine, suite, func() { _ = bar.Add(1) })
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if evalJSON {
			return printJSON(out, report)
		}
		printReport(out, report)
		return nil
	})
}

// runSuite asks every question in order. Request errors other than a
// missing index are recorded per question; a missing index aborts the run.
func runSuite(ctx context.Context, q querier, suite *evalSuite, tick func()) (*evalReport, error) {
	before := q.Metrics()
	report := &evalReport{
		SessionID: suite.SessionID,
		Total:     len(suite.Questions),
		Tiers:     map[string]int{},
	}

	var total time.Duration
	for _, c := range suite.Questions {
		start := time.Now()
		ans, err := q.Query(ctx, domain.QueryRequest{
			SessionID: suite.SessionID,
			Question:  c.Question,
			Filters:   c.Filters,
		})
		elapsed := time.Since(start)
		total += elapsed
		if tick != nil {
			tick()
		}

		res := evalResult{Question: c.Question, LatencyS: elapsed.Seconds()}
		switch {
		case err != nil:
			if ctx.Err() != nil || errors.Is(err, domain.ErrNotIngested) {
				return nil, err
			}
			res.Error = err.Error()
			report.Failed++
		case ans.Answer == usecase.ErrorAnswer || ans.Answer == usecase.MissingCredentialsAnswer:
			res.Error = ans.Answer
			report.Failed++
		case ans.Answer == usecase.NotPresentAnswer:
			report.NotPresent++
		case len(ans.Sources) > 0:
			report.Grounded++
		}
		if ans.ModelUsed != "" {
			res.Model = ans.ModelUsed
			report.Tiers[ans.ModelUsed]++
		}
		res.Sources = len(ans.Sources)
		report.Results = append(report.Results, res)
	}

	report.AvgLatencyS = total.Seconds() / float64(report.Total)
	report.CacheHits = q.Metrics().CacheHits - before.CacheHits
	return report, nil
}

func printReport(w io.Writer, r *evalReport) {
	fmt.Fprintf(w, "Session:      %s\n", r.SessionID)
	fmt.Fprintf(w, "Questions:    %d\n", r.Total)
	fmt.Fprintf(w, "Grounded:     %d\n", r.Grounded)
	fmt.Fprintf(w, "Not present:  %d\n", r.NotPresent)
	fmt.Fprintf(w, "Failed:       %d\n", r.Failed)
	fmt.Fprintf(w, "Cache hits:   %d\n", r.CacheHits)
	fmt.Fprintf(w, "Avg latency:  %s\n", formatDuration(time.Duration(r.AvgLatencyS*float64(time.Second))))

	tiers := make([]string, 0, len(r.Tiers))
	for t := range r.Tiers {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		fmt.Fprintf(w, "  %-6s %d\n", t, r.Tiers[t])
	}

	for _, res := range r.Results {
		if res.Error != "" {
			fmt.Fprintf(w, "\nFAILED %q: %s", res.Question, res.Error)
		}
	}
	fmt.Fprintln(w)
}
