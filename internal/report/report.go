package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Write renders a run summary to <dir>/<subsystem>_<timestamp>.txt and
// returns its path. Counters are printed sorted so reports diff cleanly.
func Write(dir, subsystem string, started time.Time, counters map[string]int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory %s: %w", dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "run:      %s\n", subsystem)
	fmt.Fprintf(&b, "started:  %s\n", started.Format(time.RFC3339))
	fmt.Fprintf(&b, "finished: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "duration: %s\n\n", time.Since(started).Round(time.Second))

	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%-24s %d\n", k, counters[k])
	}

	name := fmt.Sprintf("%s_%s.txt", subsystem, started.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
