// Package scheduler fires periodic scans from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Handler runs one scheduled job. The context is cancelled when the
// scheduler stops.
type Handler func(ctx context.Context)

type Scheduler struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether schedule parses.
func Validate(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

func New(schedule string, handler Handler, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		handler:  handler,
		logger:   logger,
	}
}

// Start registers the job and starts the cron ticker. A tick that arrives
// while the previous one is still running is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.logger.Info("scheduled scan firing", "schedule", s.schedule)
		s.handler(s.ctx)
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the ticker, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
