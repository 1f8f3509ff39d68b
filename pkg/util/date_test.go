package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-10-10", time.Date(2024, 10, 10, 0, 0, 0, 0, ny)},
		{"2024-10-10 15:30:00", time.Date(2024, 10, 10, 15, 30, 0, 0, ny)},
		{"2024-10-10T10:10:10Z", time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in, ny)
		if !ok || !got.Equal(tc.want) {
			t.Fatalf("%q: got %v ok=%v, want %v", tc.in, got, ok, tc.want)
		}
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10), nil)
	if !ok || got.Unix() != ts {
		t.Fatalf("unexpected %v ok=%v", got, ok)
	}
	if _, ok := ParseTime("yesterday", nil); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-02", nil)
	if err != nil || !d.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v %v", d, err)
	}
	if _, err := ParseDate("01/02/2025", nil); err == nil {
		t.Fatalf("expected layout error")
	}
}

func TestFormatBarTime(t *testing.T) {
	ts := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	if got := FormatBarTime(ts, false); got != "2025-03-04" {
		t.Fatalf("daily %q", got)
	}
	if got := FormatBarTime(ts, true); got != "2025-03-04 09:30:00" {
		t.Fatalf("intraday %q", got)
	}
	if got := StartOfDay(ts); got.Hour() != 0 || got.Day() != 4 {
		t.Fatalf("start of day %v", got)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b,c ")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected %v", got)
	}
	if n := ParseIntDefault("x", 7); n != 7 {
		t.Fatalf("default %d", n)
	}
}
