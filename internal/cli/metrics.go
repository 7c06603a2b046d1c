package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"askcode/internal/domain"
)

var (
	metricsServer string
	metricsJSON   bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show query metrics from a running server",
	Long: `Fetch the query counters of a running askcode server.

Examples:
  askcode metrics
  askcode metrics --server http://localhost:9000 --json`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().StringVar(&metricsServer, "server", "", "server base URL (default derived from server.address)")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "output as JSON")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	base := metricsServer
	if base == "" {
		base = serverURL(GetConfig().Server.Address)
	}

	snap, err := fetchMetrics(&http.Client{Timeout: 5 * time.Second}, base)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if metricsJSON {
		return printJSON(out, snap)
	}
	fmt.Fprintf(out, "Queries:      %d\n", snap.Queries)
	fmt.Fprintf(out, "Cache hits:   %d\n", snap.CacheHits)
	fmt.Fprintf(out, "Avg latency:  %.3fs\n", snap.AvgLatencyS)
	return nil
}

// serverURL turns a listen address such as ":8080" into a local base URL.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func fetchMetrics(client *http.Client, base string) (domain.MetricsSnapshot, error) {
	var snap domain.MetricsSnapshot

	resp, err := client.Get(strings.TrimRight(base, "/") + "/api/metrics")
	if err != nil {
		return snap, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return snap, nil
}
