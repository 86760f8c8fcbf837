// Package output provides styled terminal output helpers (success, error,
// warning, record and change formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/marcus/worklog/internal/models"
	"golang.org/x/term"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	kindStyles   = map[models.ChangeKind]lipgloss.Style{
		models.ChangeAdded:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.ChangeModified: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.ChangeRemoved:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotSignedIn   = "not_signed_in"
	ErrCodeServerError   = "server_error"
	ErrCodeNetworkFailed = "network_failed"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	JSONErrorWithDetails(code, message, nil)
}

// JSONErrorWithDetails outputs an error as JSON with additional context
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	result := map[string]interface{}{
		"error": errObj,
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// FormatRecordShort formats a record on one line: time, name, short id.
func FormatRecordShort(rec models.LogRecord) string {
	return fmt.Sprintf("%s  %s  %s",
		timeStyle.Render(fmt.Sprintf("%-8s", rec.Time)),
		rec.Name,
		subtleStyle.Render(ShortID(rec.ID)))
}

// FormatRecordLong formats a record with its metadata.
func FormatRecordLong(rec models.LogRecord) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(rec.Name))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Time:    %s\n", rec.Time))
	sb.WriteString(fmt.Sprintf("  ID:      %s\n", rec.ID))
	if rec.CreatedBy != "" {
		sb.WriteString(fmt.Sprintf("  By:      %s\n", rec.CreatedBy))
	}
	if !rec.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("  Added:   %s\n", HumanTime(rec.CreatedAt)))
	}
	if !rec.UpdatedAt.IsZero() && !rec.UpdatedAt.Equal(rec.CreatedAt) {
		sb.WriteString(fmt.Sprintf("  Updated: %s\n", HumanTime(rec.UpdatedAt)))
	}
	return sb.String()
}

// FormatChange formats one change feed event for a streaming listing.
func FormatChange(ev models.ChangeEvent) string {
	kind := string(ev.Kind)
	if style, ok := kindStyles[ev.Kind]; ok {
		kind = style.Render(fmt.Sprintf("%-8s", ev.Kind))
	}
	if ev.Kind == models.ChangeRemoved {
		return fmt.Sprintf("%s %s", kind, subtleStyle.Render(ev.Record.ID))
	}
	return fmt.Sprintf("%s %s", kind, FormatRecordShort(ev.Record))
}

// HumanTime formats t relative to now, e.g. "3 hours ago".
func HumanTime(t time.Time) string {
	return humanize.Time(t)
}

// FormatTimeAgo formats a time as a compact "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// ShortID returns the first eight characters of an id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nENTRIES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
