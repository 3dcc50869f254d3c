package cmd

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/ttr/internal/model"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

func TestCsvEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"simple", "simple"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", "\"with\nnewline\""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, csvEscape(tt.in), "csvEscape(%q)", tt.in)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{90, "1m 30s"},
		{3600, "1h 0m 0s"},
		{3661, "1h 1m 1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.seconds), "formatElapsed(%d)", tt.seconds)
	}
}

func TestParseWhen(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	ref := time.Date(2026, 3, 4, 12, 0, 0, 0, berlin)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"09:15", time.Date(2026, 3, 4, 9, 15, 0, 0, berlin)},
		{"2026-03-02 17:45", time.Date(2026, 3, 2, 17, 45, 0, 0, berlin)},
		{"2026-03-02T17:45", time.Date(2026, 3, 2, 17, 45, 0, 0, berlin)},
		{"2026-03-02 17:45:30", time.Date(2026, 3, 2, 17, 45, 30, 0, berlin)},
		{"2026-03-02T16:45:00Z", time.Date(2026, 3, 2, 16, 45, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in, ref)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}

	_, err := parseWhen("yesterday", ref)
	assert.Error(t, err)
}

func TestWaitForUndo(t *testing.T) {
	assert.Equal(t, undoRequested, waitForUndo(strings.NewReader("u\n"), time.Second))
	assert.Equal(t, undoRequested, waitForUndo(strings.NewReader(" U "), time.Second))
	assert.Equal(t, undoDeclined, waitForUndo(strings.NewReader("n\n"), time.Second))
	assert.Equal(t, undoDeclined, waitForUndo(strings.NewReader(""), time.Second))
	assert.Equal(t, undoTimedOut, waitForUndo(strings.NewReader("u\n"), 0))

	pr, pw := io.Pipe()
	defer pw.Close()
	assert.Equal(t, undoTimedOut, waitForUndo(pr, 20*time.Millisecond))
}

func TestAggregate(t *testing.T) {
	prev := now
	now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	rec := func(day, hour, minutes int, note string) model.TimeRecord {
		start := time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
		end := start.Add(time.Duration(minutes) * time.Minute)
		return model.TimeRecord{StartTime: start, EndTime: &end, Note: note}.WithComputedDuration()
	}
	running := model.TimeRecord{StartTime: time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC), Note: "open"}

	// newest first, as the coordinator keeps them
	records := []model.TimeRecord{
		running,
		rec(4, 10, 30, "  review "),
		rec(4, 8, 60, "review"),
		rec(2, 9, 45, ""),
	}

	rows := aggregate(records, timecalc.DayKey)
	require.Len(t, rows, 2)
	assert.Equal(t, reportRow{Period: "2026-03-02", Minutes: 45, Notes: []string{}}, rows[0])
	assert.Equal(t, "2026-03-04", rows[1].Period)
	assert.Equal(t, int64(90), rows[1].Minutes)
	assert.Equal(t, []string{"review", "open"}, rows[1].Notes)

	weekly := aggregate(records, timecalc.ISOWeekLabel)
	require.Len(t, weekly, 1)
	assert.Equal(t, int64(135), weekly[0].Minutes)
}

func TestPrintReportCSV(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, printReport(&sb, []reportRow{
		{Period: "2026-03-04", Minutes: 90, Notes: []string{"a", "b, c"}},
	}, "csv"))
	assert.Equal(t, "period,minutes,hours,notes\n2026-03-04,90,01:30,\"a | b, c\"\n", sb.String())
}

func TestPrintReportMarkdownEmpty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, printReport(&sb, nil, "md"))
	assert.Equal(t, "No records found.\n", sb.String())
}
