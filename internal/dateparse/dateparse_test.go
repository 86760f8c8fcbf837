package dateparse

import (
	"testing"
	"time"
)

// Fixed reference time: Wednesday, 2026-02-18 12:00:00 UTC
var testNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func TestParseSince(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2026-01-05", "2026-01-05"},
		{"today", "2026-02-18"},
		{"TODAY", "2026-02-18"},
		{"  yesterday ", "2026-02-17"},
		{"this-week", "2026-02-16"},
		{"this-month", "2026-02-01"},
		{"wednesday", "2026-02-18"},
		{"monday", "2026-02-16"},
		{"thursday", "2026-02-12"},
		{"0d", "2026-02-18"},
		{"3d", "2026-02-15"},
		{"-3d", "2026-02-15"},
		{"2w", "2026-02-04"},
		{"1m", "2026-01-18"},
	}
	for _, tt := range tests {
		got, err := ParseSince(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseSince(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseSince(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
		}
		if got.Hour() != 0 || got.Minute() != 0 {
			t.Errorf("ParseSince(%q) = %s, want midnight", tt.input, got)
		}
	}
}

func TestParseSince_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "soon", "3y", "d", "2026-13-01", "+x"} {
		if got, err := ParseSince(input, testNow); err == nil {
			t.Errorf("ParseSince(%q) = %s, want error", input, got)
		}
	}
}

func TestParseSince_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2026, 2, 18, 1, 0, 0, 0, loc)
	got, err := ParseSince("today", now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != loc || got.Day() != 18 {
		t.Errorf("ParseSince(today) = %s, want 2026-02-18 in UTC+9", got)
	}
}
