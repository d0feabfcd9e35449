// Package report renders matched records and hands the result to the file
// writer and any configured sinks.
package report

import (
	"log/slog"
	"strings"
	"time"

	"github.com/user/whoisscan/internal/model"
)

const (
	// DefaultLayout renders DD/MM/YYYY HH:MM:SS.
	DefaultLayout = "02/01/2006 15:04:05"
	// MonthLayout renders MM/YYYY.
	MonthLayout = "01/2006"

	// InvalidDate replaces timestamps that could not be parsed.
	InvalidDate = "invalid date"
)

// Archive exports use local ISO dates without a zone; live messages carry RFC 3339.
var inputLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
}

type Formatter struct {
	layout string
	logger *slog.Logger
}

func NewFormatter(layout string, logger *slog.Logger) *Formatter {
	if layout == "" {
		layout = DefaultLayout
	}
	return &Formatter{layout: layout, logger: logger}
}

// Line renders one record as "<name> - <time>" with " - <link>" appended
// when the record has a profile link.
func (f *Formatter) Line(rec model.OutputRecord) string {
	line := rec.DisplayName + " - " + f.timestamp(rec)
	if rec.ProfileLink != "" {
		line += " - " + rec.ProfileLink
	}
	return line
}

// Format renders all records, newline separated, in the given order.
func (f *Formatter) Format(records []model.OutputRecord) string {
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = f.Line(rec)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) timestamp(rec model.OutputRecord) string {
	t, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		f.logger.Warn("unparsable message date", "msg_id", rec.MessageID, "timestamp", rec.Timestamp, "error", err)
		return InvalidDate
	}
	return t.Format(f.layout)
}

// ParseTimestamp accepts the archive and live timestamp shapes.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range inputLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
