package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/whoisscan/internal/model"
)

// Report is one finished run, as handed to sinks.
type Report struct {
	RunID       model.RunID
	Records     []model.OutputRecord
	Text        string
	GeneratedAt time.Time
}

// Sink receives every completed report after the file is written.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r *Report) error
}

// Publisher writes the report file and fans it out to sinks. Sink failures
// are logged and never undo the file write.
type Publisher struct {
	path      string
	formatter *Formatter
	sinks     []Sink
	logger    *slog.Logger
}

func NewPublisher(path string, formatter *Formatter, logger *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{path: path, formatter: formatter, sinks: sinks, logger: logger}
}

// Publish renders records, writes the report file once and notifies sinks.
func (p *Publisher) Publish(ctx context.Context, runID model.RunID, records []model.OutputRecord) (*Report, error) {
	r := &Report{
		RunID:       runID,
		Records:     records,
		Text:        p.formatter.Format(records),
		GeneratedAt: time.Now().UTC(),
	}

	if err := WriteFile(p.path, r.Text); err != nil {
		return nil, err
	}
	p.logger.Info("report written", "run_id", string(runID), "path", p.path, "records", len(records))

	for _, s := range p.sinks {
		if err := s.Publish(ctx, r); err != nil {
			p.logger.Error("report sink failed", "sink", s.Name(), "run_id", string(runID), "error", err)
			continue
		}
		p.logger.Debug("report sink done", "sink", s.Name(), "run_id", string(runID))
	}
	return r, nil
}
