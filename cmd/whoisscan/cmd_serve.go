package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/whoisscan/internal/config"
	"github.com/user/whoisscan/internal/report"
	"github.com/user/whoisscan/internal/scheduler"
	"github.com/user/whoisscan/internal/session"
	"github.com/user/whoisscan/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled live scans and the HTTP endpoints",
	Long: "Keeps the live session open, scans on the configured cron schedule and\n" +
		"serves POST /scan, GET /report and GET /healthz. The session must already\n" +
		"be logged in (run `whoisscan scan live` once).",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(config.ModeLive); err != nil {
		return err
	}
	if err := scheduler.Validate(cfg.Serve.Schedule); err != nil {
		return &config.Error{Key: "serve.schedule", Err: err}
	}
	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newTelegramClient(cfg, logger)
	if err != nil {
		return err
	}
	// No phone: an unauthorized session fails at once instead of sending a
	// code nobody can type in.
	mgr := session.NewManager(client, noPrompter{}, "", logger)
	defer mgr.Close()

	if err := mgr.Authorize(ctx); err != nil {
		if errors.Is(err, session.ErrNoPhone) {
			return errInteractiveLogin
		}
		return err
	}

	out := newOutputs(ctx, cfg, logger)
	defer out.Close()

	ls, err := newLiveScanner(ctx, cfg, client, mgr, out.publisher, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(cfg.Serve.Schedule, func(ctx context.Context) {
		rep, err := ls.Scan(ctx)
		if errors.Is(err, session.ErrSessionBusy) {
			logger.Warn("scheduled scan skipped, previous scan still running")
			return
		}
		if err != nil {
			logger.Error("scheduled scan failed", "error", err)
			return
		}
		logger.Info("scheduled scan done", "run_id", string(rep.RunID), "matches", len(rep.Records))
	}, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	if out.bot != nil {
		go out.bot.Listen(ctx)
		logger.Info("telegram bot listening")
	}

	srv := webhook.NewServer(func(ctx context.Context) (*report.Report, error) {
		return ls.Scan(ctx)
	}, out.latest, logger)
	httpServer := &http.Server{
		Addr:              cfg.Serve.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", "listen", cfg.Serve.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "whoisscan serving on %s, schedule %q\n", cfg.Serve.Listen, cfg.Serve.Schedule)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server error", "error", err)
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
