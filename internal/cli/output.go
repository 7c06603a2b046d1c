package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSources(w io.Writer, sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

func printWarning(w io.Writer, warning string) {
	if warning == "" {
		return
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(warning))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
