// Package input reads bulk entries from flag values, stdin (-) and files
// (@file syntax).
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/output"
)

// Stdin is read when a value is "-".
var Stdin io.Reader = os.Stdin

// ExpandFlagValues expands flag values that use - (stdin) or @file syntax.
// Returns the expanded values and whether stdin was consumed.
func ExpandFlagValues(values []string, stdinUsed bool) ([]string, bool) {
	var result []string
	for _, v := range values {
		switch {
		case v == "-":
			if stdinUsed {
				output.Warning("stdin already used, ignoring additional - value")
				continue
			}
			stdinUsed = true
			result = append(result, ReadLinesFromReader(Stdin)...)
		case strings.HasPrefix(v, "@"):
			path := strings.TrimPrefix(v, "@")
			file, err := os.Open(path)
			if err != nil {
				output.Warning("failed to read %s: %v", path, err)
				continue
			}
			result = append(result, ReadLinesFromReader(file)...)
			file.Close()
		default:
			result = append(result, v)
		}
	}
	return result, stdinUsed
}

// ReadLinesFromReader reads non-empty lines from a reader, skipping
// lines that start with #.
func ReadLinesFromReader(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseRecordLine parses "NAME | TIME" or "NAME<tab>TIME" into a normalized,
// validated record. The last separator wins, so names may contain "|".
func ParseRecordLine(line string) (models.LogRecord, error) {
	i := strings.LastIndexAny(line, "|\t")
	if i < 0 {
		return models.LogRecord{}, fmt.Errorf("%q: want NAME | TIME", line)
	}
	rec := models.LogRecord{Name: line[:i], Time: line[i+1:]}.Normalize()
	if err := rec.Validate(); err != nil {
		return models.LogRecord{}, fmt.Errorf("%q: %w", line, err)
	}
	return rec, nil
}
