package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/crowdwait/pkg/storage/memory"
)

func readAll(t *testing.T, src LogSource) []string {
	t.Helper()
	r, err := src.Open(context.Background())
	require.NoError(t, err)
	defer r.Close()

	var out []string
	for {
		l, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, l)
	}
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReverseFileSource_ReadsNewestFirst(t *testing.T) {
	long := strings.Repeat("x", 50)
	path := writeLog(t, "first\nsecond\n"+long+"\r\nlast\n")

	for _, chunk := range []int{1, 3, 7, 16, DefaultChunkSize} {
		got := readAll(t, ReverseFileSource{Path: path, ChunkSize: chunk})
		assert.Equal(t, []string{"", "last", long, "second", "first"}, got, "chunk size %d", chunk)
	}
}

func TestReverseFileSource_NoTrailingNewline(t *testing.T) {
	path := writeLog(t, "a\nb")
	got := readAll(t, ReverseFileSource{Path: path, ChunkSize: 2})
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestReverseFileSource_EmptyFile(t *testing.T) {
	path := writeLog(t, "")
	assert.Empty(t, readAll(t, ReverseFileSource{Path: path}))
}

func TestReverseFileSource_Missing(t *testing.T) {
	_, err := ReverseFileSource{Path: filepath.Join(t.TempDir(), "nope")}.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReverseFileSource_FeedsPipeline(t *testing.T) {
	content := strings.Join([]string{
		line("2024-03-04 12:15:00 PM", "RPME", "40"),
		`{"msg":"Unauthorized"}`,
		line("2024-03-04 12:45:00 PM", "RPME", "30"),
	}, "\n") + "\n"
	path := writeLog(t, content)

	store := memory.New()
	p := NewPipeline(store, testCalendar(t), testTable(t), time.UTC)
	res, err := p.Ingest(context.Background(), ReverseFileSource{Path: path, ChunkSize: 32})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewEvents)
	assert.Equal(t, 2, res.LinesSkipped) // trailing blank + Unauthorized
}

func TestLines_Order(t *testing.T) {
	got := readAll(t, Lines{"old", "mid", "new"})
	assert.Equal(t, []string{"new", "mid", "old"}, got)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr error
	}{
		{"zero seconds", "2024-03-04 12:15:00 PM", time.Date(2024, 3, 4, 12, 15, 0, 0, time.UTC), nil},
		{"rounding second", "2024-03-04 12:15:01 PM", time.Date(2024, 3, 4, 12, 15, 0, 0, time.UTC), nil},
		{"single digit hour", "2024-03-04 9:05:00 AM", time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC), nil},
		{"midnight", "2024-03-05 12:00:00 AM", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), nil},
		{"other seconds", "2024-03-04 12:15:30 PM", time.Time{}, ErrBadSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, time.UTC)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}

	_, err := ParseTimestamp("2024-03-04T12:15:00Z", time.UTC)
	assert.Error(t, err)
}

func TestCursor_NeverRegresses(t *testing.T) {
	ctx := context.Background()
	c := NewCursor(memory.New())

	_, ok, err := c.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	noon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	got, err := c.Commit(ctx, noon)
	require.NoError(t, err)
	assert.True(t, got.Equal(noon))

	got, err = c.Commit(ctx, noon.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, got.Equal(noon), "older commit must be a no-op")

	got, err = c.Commit(ctx, noon)
	require.NoError(t, err)
	assert.True(t, got.Equal(noon))

	later := noon.Add(30 * time.Minute)
	got, err = c.Commit(ctx, later)
	require.NoError(t, err)
	assert.True(t, got.Equal(later))

	read, ok, err := c.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, read.Equal(later))
}
