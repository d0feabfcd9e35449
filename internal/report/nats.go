package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DefaultSubject = "whoisscan.match"
	flushTimeout   = 5 * time.Second
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// MatchEvent is published once per matched record.
type MatchEvent struct {
	RunID       string `json:"run_id"`
	MessageID   int64  `json:"message_id"`
	DisplayName string `json:"display_name"`
	Timestamp   string `json:"timestamp"`
	ProfileLink string `json:"profile_link,omitempty"`
	Line        string `json:"line"`
}

// NATSSink emits match events on a subject.
type NATSSink struct {
	conn      publisher
	nc        *nats.Conn
	subject   string
	formatter *Formatter
}

// DialNATS connects to url. Reconnects are handled by the client.
func DialNATS(url, subject string, formatter *Formatter, logger *slog.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("whoisscan"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	s := newNATSSink(nc, subject, formatter)
	s.nc = nc
	return s, nil
}

func newNATSSink(conn publisher, subject string, formatter *Formatter) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject, formatter: formatter}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(ctx context.Context, r *Report) error {
	for _, rec := range r.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(MatchEvent{
			RunID:       string(r.RunID),
			MessageID:   rec.MessageID,
			DisplayName: rec.DisplayName,
			Timestamp:   rec.Timestamp,
			ProfileLink: rec.ProfileLink,
			Line:        s.formatter.Line(rec),
		})
		if err != nil {
			return fmt.Errorf("marshal match event: %w", err)
		}
		if err := s.conn.Publish(s.subject, payload); err != nil {
			return fmt.Errorf("publish %s: %w", s.subject, err)
		}
	}
	if s.nc != nil {
		if err := s.nc.FlushTimeout(flushTimeout); err != nil {
			return fmt.Errorf("flush nats: %w", err)
		}
	}
	return nil
}

func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
