package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/crowdwait/pkg/export"
	"github.com/nicktill/crowdwait/pkg/server"
	"github.com/nicktill/crowdwait/pkg/swipes"
)

const rpme = "Robert Purcell Marketplace Eatery"

func logLine(ts, unit string, count int) string {
	return fmt.Sprintf(`{"TIMESTAMP":%q,"UNITS":[{"UNIT_NAME":%q,"CROWD_COUNT":%d}]}`, ts, unit, count)
}

// writeFixture creates a sqlite-backed config and a two-sample log
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	logPath := filepath.Join(dir, "data.log")
	lines := []string{
		logLine("2024-03-04 12:15:00 PM", "RPME", 40),
		logLine("2024-03-04 12:45:00 PM", "RPME", 20),
	}
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	cfgPath := filepath.Join(dir, "crowdwait.yaml")
	doc := fmt.Sprintf("storage:\n  backend: sqlite\n  data_dir: %s\nlog:\n  path: %s\ntime_zone: UTC\n",
		filepath.Join(dir, "store"), logPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0644))
	return cfgPath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, runWithArgs(args, &out))
	return out.String()
}

func TestCLI_RefreshExportStatus(t *testing.T) {
	cfg := writeFixture(t)

	var summary server.RunSummary
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfg, "--json", "refresh")), &summary))
	assert.Equal(t, 2, summary.Ingest.NewEvents)
	assert.Equal(t, 2, summary.Aggregate.Buckets)

	// The cursor survives the process boundary.
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfg, "--json", "refresh")), &summary))
	assert.Equal(t, 0, summary.Ingest.NewEvents)
	assert.True(t, summary.Ingest.ReachedMark)

	var estimates export.Estimates
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfg, "export", "--day", "2024-03-11")), &estimates))
	want := export.Estimates{rpme: {
		{StartTime: "12:00 PM", EndTime: "12:30 PM", SessionType: "regular", SwipeDensity: 1, WaitTimeLow: 2, WaitTimeHigh: 4},
		{StartTime: "12:30 PM", EndTime: "01:00 PM", SessionType: "regular", SwipeDensity: 0.5, WaitTimeLow: 1, WaitTimeHigh: 3},
	}}
	if diff := cmp.Diff(want, estimates); diff != "" {
		t.Errorf("estimates mismatch (-want +got):\n%s", diff)
	}

	var daily []swipes.DailyAverage
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfg, "export", "--daily")), &daily))
	require.Len(t, daily, 1)
	assert.Equal(t, swipes.DailyAverage{
		Weekday: "monday", Location: "RPME", SessionType: "regular",
		TotalSwipes: 60, DayCount: 1, Average: 60,
	}, daily[0])

	csv := run(t, "--config", cfg, "export", "--backup", "--format", "csv", "--table", "buckets")
	assert.Equal(t, 3, strings.Count(csv, "\n"), csv)
	assert.Contains(t, csv, "RPME")

	var status statusJSON
	require.NoError(t, json.Unmarshal([]byte(run(t, "--config", cfg, "--json", "status")), &status))
	assert.Equal(t, "sqlite", status.Backend)
	assert.Equal(t, uint64(2), status.Stats.TotalEvents)
	assert.Equal(t, uint64(2), status.Stats.TotalBuckets)
	assert.Equal(t, []string{"RPME"}, status.Locations)

	human := run(t, "--config", cfg, "status")
	assert.Contains(t, human, "Events:      2 across 1 locations")
}

func TestCLI_ExportBeforeRefresh(t *testing.T) {
	cfg := writeFixture(t)
	var out bytes.Buffer
	err := runWithArgs([]string{"--config", cfg, "export"}, &out)
	assert.ErrorContains(t, err, "run refresh first")
}

func TestCLI_BadDay(t *testing.T) {
	cfg := writeFixture(t)
	run(t, "--config", cfg, "refresh")

	var out bytes.Buffer
	err := runWithArgs([]string{"--config", cfg, "export", "--day", "03/11/2024"}, &out)
	assert.ErrorContains(t, err, "invalid --day")
}

func TestCLI_ExportToFile(t *testing.T) {
	cfg := writeFixture(t)
	run(t, "--config", cfg, "refresh")

	path := filepath.Join(t.TempDir(), "backup.json")
	run(t, "--config", cfg, "export", "--backup", "-o", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var backup export.Backup
	require.NoError(t, json.Unmarshal(data, &backup))
	assert.Len(t, backup.Events, 2)
	assert.Len(t, backup.Buckets, 2)
}

func TestBuildParser_RegistersCommands(t *testing.T) {
	parser, _, cmds := buildParser(&bytes.Buffer{})
	for _, name := range []string{"serve", "refresh", "export", "status"} {
		assert.NotNil(t, parser.Find(name), name)
	}
	assert.NotNil(t, cmds.Export)
}
