package report

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/user/whoisscan/internal/model"
)

func newTestFormatter(layout string) (*Formatter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewFormatter(layout, slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestLine(t *testing.T) {
	f, _ := newTestFormatter("")

	tests := []struct {
		name string
		rec  model.OutputRecord
		want string
	}{
		{
			name: "archive",
			rec:  model.OutputRecord{DisplayName: "Anna Petrova", Timestamp: "2023-05-14T10:03:00"},
			want: "Anna Petrova - 14/05/2023 10:03:00",
		},
		{
			name: "live with link",
			rec:  model.OutputRecord{DisplayName: "Olga", Timestamp: "2024-01-02T03:04:05Z", ProfileLink: "https://t.me/olga_k"},
			want: "Olga - 02/01/2024 03:04:05 - https://t.me/olga_k",
		},
		{
			name: "deep link",
			rec:  model.OutputRecord{DisplayName: "Ivan", Timestamp: "2024-01-02T03:04:05Z", ProfileLink: "tg://user?id=42"},
			want: "Ivan - 02/01/2024 03:04:05 - tg://user?id=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Line(tt.rec); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLine_InvalidDate(t *testing.T) {
	f, logs := newTestFormatter("")

	got := f.Line(model.OutputRecord{MessageID: 9, DisplayName: "Anna", Timestamp: "yesterday"})
	if got != "Anna - invalid date" {
		t.Errorf("unexpected line %q", got)
	}
	if !strings.Contains(logs.String(), "msg_id=9") {
		t.Errorf("expected the parse failure to be logged, got %q", logs.String())
	}
}

func TestFormat(t *testing.T) {
	f, _ := newTestFormatter(MonthLayout)

	got := f.Format([]model.OutputRecord{
		{DisplayName: "A", Timestamp: "2023-05-14T10:03:00"},
		{DisplayName: "B", Timestamp: "2023-06-01T00:00:00"},
	})
	if got != "A - 05/2023\nB - 06/2023" {
		t.Errorf("unexpected report %q", got)
	}
	if f.Format(nil) != "" {
		t.Error("no records should render an empty report")
	}
}
