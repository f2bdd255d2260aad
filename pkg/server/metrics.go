package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/export"
)

// sample is one line of Prometheus text output
type sample struct {
	labels map[string]string
	value  float64
}

// family is one metric name with its samples
type family struct {
	name    string
	help    string
	typ     string
	samples []sample
}

// handleMetrics exports refresh health and the live estimates in
// Prometheus text format so Grafana and friends can scrape them.
//
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
func handleMetrics(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
		defer cancel()

		stats, err := app.Store.Stats(ctx)
		if err != nil {
			http.Error(w, fmt.Sprintf("Stats failed: %v", err), http.StatusInternalServerError)
			return
		}
		status := app.RefreshMonitor.Status()

		healthy := 0.0
		if status.Healthy {
			healthy = 1
		}

		families := []family{
			{"crowdwait_refresh_runs_total", "Refresh runs attempted", "counter", []sample{{value: float64(status.Runs)}}},
			{"crowdwait_refresh_consecutive_errors", "Refresh failures since the last success", "gauge", []sample{{value: float64(status.ConsecutiveErrors)}}},
			{"crowdwait_refresh_healthy", "1 if refreshes are succeeding on schedule", "gauge", []sample{{value: healthy}}},
			{"crowdwait_store_events", "Normalized events stored", "gauge", []sample{{value: float64(stats.TotalEvents)}}},
			{"crowdwait_store_buckets", "Buckets in the live aggregate set", "gauge", []sample{{value: float64(stats.TotalBuckets)}}},
			{"crowdwait_websocket_subscribers", "Connected websocket subscribers", "gauge", []sample{{value: float64(app.Hub.Clients())}}},
		}
		families = append(families, estimateFamilies(app.Snapshot.Load())...)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeFamilies(w, families)
	}
}

// estimateFamilies turns the live collection into per-block gauges
func estimateFamilies(c *export.Collection) []family {
	if c == nil {
		return nil
	}

	low := family{name: "crowdwait_wait_time_low_minutes", help: "Lower wait-time estimate", typ: "gauge"}
	high := family{name: "crowdwait_wait_time_high_minutes", help: "Upper wait-time estimate", typ: "gauge"}
	density := family{name: "crowdwait_swipe_density", help: "Block swipes relative to the busiest block", typ: "gauge"}

	names := make([]string, 0, len(c.Estimates))
	for name := range c.Estimates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, e := range c.Estimates[name] {
			labels := map[string]string{"location": name, "start": e.StartTime, "session": e.SessionType}
			low.samples = append(low.samples, sample{labels, float64(e.WaitTimeLow)})
			high.samples = append(high.samples, sample{labels, float64(e.WaitTimeHigh)})
			density.samples = append(density.samples, sample{labels, e.SwipeDensity})
		}
	}
	return []family{low, high, density}
}

func writeFamilies(w io.Writer, families []family) {
	for _, f := range families {
		if len(f.samples) == 0 {
			continue
		}
		fmt.Fprintf(w, "# HELP %s %s\n", f.name, f.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", f.name, f.typ)
		for _, s := range f.samples {
			fmt.Fprintf(w, "%s%s %v\n", f.name, formatLabels(s.labels), s.value)
		}
		fmt.Fprintln(w)
	}
}

// formatLabels formats labels as {key="value",key2="value2"} in key order
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, k, escapeLabelValue(labels[k])))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// escapeLabelValue escapes backslash, double quote and line feed
func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
