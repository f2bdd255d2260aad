package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/nicktill/crowdwait/pkg/aggregate"
	"github.com/nicktill/crowdwait/pkg/export"
	"github.com/nicktill/crowdwait/pkg/server"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

// RefreshCommand runs one refresh cycle and prints its summary.
type RefreshCommand struct {
	globals *GlobalFlags
	out     io.Writer
}

// Execute implements goflags.Commander
func (c *RefreshCommand) Execute(args []string) error {
	app, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer closeApp(app)

	summary, err := app.Refresher.RunOnce(context.Background())
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return writeJSON(c.out, summary)
	}
	fmt.Fprintf(c.out, "Refresh %s\n", summary.RunID)
	fmt.Fprintf(c.out, "  Lines read:     %d (%d skipped)\n", summary.Ingest.LinesRead, summary.Ingest.LinesSkipped)
	fmt.Fprintf(c.out, "  New events:     %d\n", summary.Ingest.NewEvents)
	fmt.Fprintf(c.out, "  Buckets:        %d from %d events\n", summary.Aggregate.Buckets, summary.Aggregate.Events)
	fmt.Fprintf(c.out, "  Locations:      %d\n", summary.Locations)
	fmt.Fprintf(c.out, "  Duration:       %v\n", summary.Duration.Round(time.Millisecond))
	return nil
}

// ExportCommand prints a day's estimates, daily averages or a backup.
type ExportCommand struct {
	Day    string `long:"day" description:"Day to estimate for (YYYY-MM-DD, default today)"`
	Daily  bool   `long:"daily" description:"Print per-day average swipes instead of estimates"`
	Backup bool   `long:"backup" description:"Dump the store instead of estimates"`
	Format string `long:"format" description:"Backup format" choice:"json" choice:"csv" default:"json"`
	Table  string `long:"table" description:"CSV table to dump" choice:"buckets" choice:"events" choice:"daily" default:"buckets"`
	Output string `long:"output" short:"o" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	out     io.Writer
}

// Execute implements goflags.Commander
func (c *ExportCommand) Execute(args []string) error {
	app, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer closeApp(app)

	out := c.out
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Output, err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	switch {
	case c.Backup && c.Format == "csv":
		_, err = export.NewExporter(app.Store).ExportToCSV(ctx, out, c.Table)
		return err
	case c.Backup:
		_, err = export.NewExporter(app.Store).ExportToJSON(ctx, out)
		return err
	case c.Daily:
		daily, err := aggregate.New(app.Store, nil).Daily(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, daily)
	}

	return c.estimates(ctx, app, out)
}

func (c *ExportCommand) estimates(ctx context.Context, app *server.App, out io.Writer) error {
	loc, err := app.Config.Location()
	if err != nil {
		return err
	}
	day := time.Now().In(loc)
	if c.Day != "" {
		day, err = time.ParseInLocation(swipes.DateLayout, c.Day, loc)
		if err != nil {
			return fmt.Errorf("invalid --day %q: %w", c.Day, err)
		}
	}

	calendar, err := app.Config.Calendar()
	if err != nil {
		return err
	}
	table, err := app.Config.Table()
	if err != nil {
		return err
	}

	buckets, err := app.Store.Buckets(ctx)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return fmt.Errorf("no buckets stored, run refresh first")
	}

	return writeJSON(out, export.Export(buckets, day, export.Options{
		Calendar:  calendar,
		Table:     table,
		Precision: export.Decimals(app.Config.Export.DensityPrecision),
	}))
}

// StatusCommand prints store statistics.
type StatusCommand struct {
	globals *GlobalFlags
	out     io.Writer
}

// statusJSON is the JSON output of the status command
type statusJSON struct {
	Backend   string         `json:"backend"`
	DataDir   string         `json:"data_dir"`
	LogPath   string         `json:"log_path"`
	Stats     *storage.Stats `json:"stats"`
	Locations []string       `json:"locations"`
}

// Execute implements goflags.Commander
func (c *StatusCommand) Execute(args []string) error {
	app, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer closeApp(app)

	ctx := context.Background()
	stats, err := app.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	status := statusJSON{
		Backend: app.Config.Storage.Backend,
		DataDir: app.Config.Storage.DataDir,
		LogPath: app.Config.Log.Path,
		Stats:   stats,
	}
	buckets, err := app.Store.Buckets(ctx)
	if err != nil {
		return err
	}
	status.Locations = bucketLocations(buckets)

	if c.globals.JSON {
		return writeJSON(c.out, status)
	}

	fmt.Fprintln(c.out, "crowdwait status")
	fmt.Fprintln(c.out, "================")
	fmt.Fprintf(c.out, "Backend:     %s (%s)\n", status.Backend, status.DataDir)
	fmt.Fprintf(c.out, "Log:         %s\n", status.LogPath)
	fmt.Fprintf(c.out, "Events:      %d across %d locations\n", stats.TotalEvents, stats.Locations)
	fmt.Fprintf(c.out, "Buckets:     %d\n", stats.TotalBuckets)
	if !stats.Cursor.IsZero() {
		fmt.Fprintf(c.out, "Cursor:      %s\n", stats.Cursor.Format(time.RFC3339))
	} else {
		fmt.Fprintln(c.out, "Cursor:      (never ingested)")
	}
	if !stats.OldestEvent.IsZero() {
		fmt.Fprintf(c.out, "Range:       %s .. %s\n", stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	return nil
}

// bucketLocations lists the locations present in buckets
func bucketLocations(buckets []swipes.Bucket) []string {
	seen := make(map[string]bool)
	for _, b := range buckets {
		seen[b.Location] = true
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
