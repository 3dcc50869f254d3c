package timecalc_test

import (
	"testing"
	"time"

	"github.com/Tiliavir/ttr/internal/timecalc"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{90, "1m"},
		{3600, "1h 0m"},
		{3661, "1h 1m"},
		{5400, "1h 30m"},
	}
	for _, tt := range tests {
		got := timecalc.FormatDuration(tt.seconds)
		if got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDurationHHMMSS(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
	}
	for _, tt := range tests {
		got := timecalc.FormatDurationHHMMSS(tt.seconds)
		if got != tt.want {
			t.Errorf("FormatDurationHHMMSS(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWeekRange(t *testing.T) {
	// 2026-02-27 is a Friday (week 9).
	fri := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	monday, sunday := timecalc.WeekRange(fri)

	wantMonday := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	wantSunday := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)

	if !monday.Equal(wantMonday) {
		t.Errorf("WeekRange monday = %v, want %v", monday, wantMonday)
	}
	if !sunday.Equal(wantSunday) {
		t.Errorf("WeekRange sunday = %v, want %v", sunday, wantSunday)
	}
}

func TestISOWeekLabel(t *testing.T) {
	fri := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	got := timecalc.ISOWeekLabel(fri)
	if got != "2026-W09" {
		t.Errorf("ISOWeekLabel = %q, want %q", got, "2026-W09")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 2, 27, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	if !timecalc.SameDay(a, b) {
		t.Error("SameDay: expected same day for a and b")
	}
	if timecalc.SameDay(a, c) {
		t.Error("SameDay: expected different day for a and c")
	}
}

func TestMinToHHMM(t *testing.T) {
	tests := []struct {
		minutes int64
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{90, "01:30"},
		{24*60 + 89, "25:29"},
		{100*60 + 1, "100:01"},
		{-75, "-01:15"},
	}
	for _, tt := range tests {
		got := timecalc.MinToHHMM(tt.minutes)
		if got != tt.want {
			t.Errorf("MinToHHMM(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := timecalc.FormatMinutes(0); got != "0m" {
		t.Errorf("FormatMinutes(0) = %q", got)
	}
	if got := timecalc.FormatMinutes(95); got != "1h 35m" {
		t.Errorf("FormatMinutes(95) = %q", got)
	}
}

func TestMonthRange(t *testing.T) {
	first, last := timecalc.MonthRange(time.Date(2028, 2, 14, 9, 0, 0, 0, time.UTC))
	if want := time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC); !first.Equal(want) {
		t.Errorf("MonthRange first = %v, want %v", first, want)
	}
	if want := time.Date(2028, 2, 29, 23, 59, 59, 0, time.UTC); !last.Equal(want) {
		t.Errorf("MonthRange last = %v, want %v", last, want)
	}
}

func TestDayRange(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	from, to := timecalc.DayRange(time.Date(2026, 3, 2, 13, 5, 0, 0, loc))
	if timecalc.DayKey(from) != "2026-03-02" || from.Hour() != 0 {
		t.Errorf("DayRange from = %v", from)
	}
	if to.Sub(from) != 24*time.Hour-time.Second {
		t.Errorf("DayRange span = %v", to.Sub(from))
	}
	if from.Location() != loc {
		t.Errorf("DayRange changed location")
	}
}

func TestParseDay(t *testing.T) {
	got, err := timecalc.ParseDay("2026-03-02", time.UTC)
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDay = %v", got)
	}
	if _, err := timecalc.ParseDay("03/02/2026", time.UTC); err == nil {
		t.Error("ParseDay: expected error for wrong layout")
	}
}
