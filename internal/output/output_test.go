package output

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/worklog/internal/models"
)

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago      time.Duration
		expected string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{1 * time.Minute, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{1 * time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}

	for _, tc := range tests {
		got := FormatTimeAgo(time.Now().Add(-tc.ago))
		if got != tc.expected {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.ago, got, tc.expected)
		}
	}
}

func TestFormatTimeAgoDate(t *testing.T) {
	old := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2024-03-15" {
		t.Errorf("FormatTimeAgo(old) = %q, want 2024-03-15", got)
	}
}

func TestHumanTime(t *testing.T) {
	got := HumanTime(time.Now().Add(-3 * time.Hour))
	if !strings.Contains(got, "hours ago") {
		t.Errorf("HumanTime = %q, want hours ago", got)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"12345678", "12345678"},
		{"123456789abc", "12345678"},
	}
	for _, tc := range tests {
		if got := ShortID(tc.in); got != tc.want {
			t.Errorf("ShortID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatRecordShort(t *testing.T) {
	rec := models.LogRecord{ID: "a1b2c3d4e5f6", Name: "code review", Time: "1h"}
	got := FormatRecordShort(rec)
	for _, want := range []string{"code review", "1h", "a1b2c3d4"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRecordShort = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "e5f6") {
		t.Errorf("FormatRecordShort = %q, want shortened id", got)
	}
}

func TestFormatRecordLong(t *testing.T) {
	created := time.Now().Add(-2 * time.Hour)
	rec := models.LogRecord{
		ID:        "rec-1",
		Name:      "planning",
		Time:      "30m",
		CreatedBy: "user-1",
		CreatedAt: created,
		UpdatedAt: created,
	}

	got := FormatRecordLong(rec)
	for _, want := range []string{"planning", "30m", "rec-1", "user-1", "Added:"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRecordLong missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Updated:") {
		t.Errorf("unmodified record shows Updated:\n%s", got)
	}

	rec.UpdatedAt = created.Add(time.Hour)
	if got := FormatRecordLong(rec); !strings.Contains(got, "Updated:") {
		t.Errorf("modified record missing Updated:\n%s", got)
	}
}

func TestFormatChange(t *testing.T) {
	rec := models.LogRecord{ID: "rec-9", Name: "deploy", Time: "15m"}

	added := FormatChange(models.ChangeEvent{Kind: models.ChangeAdded, Record: rec})
	if !strings.Contains(added, "added") || !strings.Contains(added, "deploy") {
		t.Errorf("FormatChange(added) = %q", added)
	}

	removed := FormatChange(models.ChangeEvent{Kind: models.ChangeRemoved, Record: models.LogRecord{ID: "rec-9"}})
	if !strings.Contains(removed, "removed") || !strings.Contains(removed, "rec-9") {
		t.Errorf("FormatChange(removed) = %q", removed)
	}
}

func TestSectionHeader(t *testing.T) {
	if got := SectionHeader("entries"); got != "\nENTRIES:\n" {
		t.Errorf("SectionHeader = %q", got)
	}
}

func TestRenderMarkdownWithStyle(t *testing.T) {
	got, err := RenderMarkdownWithStyle("   ", 40, "notty")
	if err != nil || got != "" {
		t.Fatalf("blank input: got %q, %v", got, err)
	}

	got, err = RenderMarkdownWithStyle("# Keys\n\nPress `q` to quit.", 40, "notty")
	if err != nil {
		t.Fatalf("RenderMarkdownWithStyle: %v", err)
	}
	if !strings.Contains(got, "Keys") || !strings.Contains(got, "quit") {
		t.Errorf("rendered output missing text:\n%s", got)
	}
}
