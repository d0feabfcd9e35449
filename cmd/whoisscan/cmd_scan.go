package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/whoisscan/internal/config"
	"github.com/user/whoisscan/internal/pipeline"
	"github.com/user/whoisscan/internal/report"
	"github.com/user/whoisscan/internal/session"
	"github.com/user/whoisscan/internal/source"
	"github.com/user/whoisscan/internal/telegram"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.AddCommand(scanArchiveCmd, scanLiveCmd)
	scanCmd.PersistentFlags().String("output", "", "report path (overrides output_path)")
	scanCmd.PersistentFlags().String("date-layout", "", "Go time layout for report dates (overrides date_layout)")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a chat for #whois messages that mention children",
}

var scanArchiveCmd = &cobra.Command{
	Use:   "archive <export.json>",
	Short: "Scan a Telegram Desktop JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanArchive,
}

var scanLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Log in and scan the configured chat's history",
	Args:  cobra.NoArgs,
	RunE:  runScanLive,
}

func scanConfig(cmd *cobra.Command, mode config.Mode) (*config.Config, error) {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.OutputPath = v
	}
	if v, _ := cmd.Flags().GetString("date-layout"); v != "" {
		cfg.DateLayout = v
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScanArchive(cmd *cobra.Command, args []string) error {
	cfg, err := scanConfig(cmd, config.ModeArchive)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.OpenArchive(args[0])
	if err != nil {
		logger.Error("archive unreadable", "path", args[0], "error", err)
		return err
	}
	defer src.Close()
	logger.Info("archive loaded", "path", args[0], "chat", src.Name, "messages", src.Len())

	p, err := newPipeline(ctx, cfg, source.ArchiveResolver{}, logger)
	if err != nil {
		return err
	}
	out := newOutputs(ctx, cfg, logger)
	defer out.Close()

	rep, err := runOnce(ctx, p, src, out.publisher)
	if err != nil {
		return err
	}
	printSummary(cmd, cfg, rep)
	return nil
}

func runScanLive(cmd *cobra.Command, args []string) error {
	cfg, err := scanConfig(cmd, config.ModeLive)
	if err != nil {
		return err
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
	mgr := session.NewManager(client, newTerminalPrompter(os.Stdin, cmd.OutOrStdout()), cfg.Telegram.PhoneNumber, logger)
	defer mgr.Close()

	if err := mgr.Authorize(ctx); err != nil {
		return err
	}

	out := newOutputs(ctx, cfg, logger)
	defer out.Close()

	ls, err := newLiveScanner(ctx, cfg, client, mgr, out.publisher, logger)
	if err != nil {
		return err
	}
	rep, err := ls.Scan(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd, cfg, rep)
	return nil
}

// runOnce drains src through p and publishes the result. Nothing is written
// when the run fails.
func runOnce(ctx context.Context, p *pipeline.Pipeline, src source.Source, pub *report.Publisher) (*report.Report, error) {
	res, err := p.Run(ctx, src)
	if err != nil {
		return nil, err
	}
	return pub.Publish(ctx, res.RunID, res.Records)
}

func printSummary(cmd *cobra.Command, cfg *config.Config, rep *report.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "%d matches written to %s\n", len(rep.Records), cfg.OutputPath)
}

// liveScanner runs scans over one authorized session, one at a time.
type liveScanner struct {
	cfg       *config.Config
	client    *telegram.Client
	mgr       *session.Manager
	lock      *session.Lock
	pipeline  *pipeline.Pipeline
	publisher *report.Publisher
	logger    *slog.Logger
}

func newLiveScanner(ctx context.Context, cfg *config.Config, client *telegram.Client, mgr *session.Manager, pub *report.Publisher, logger *slog.Logger) (*liveScanner, error) {
	p, err := newPipeline(ctx, cfg, client.Resolver(cfg.Telegram.ChatID), logger)
	if err != nil {
		return nil, err
	}
	return &liveScanner{
		cfg:       cfg,
		client:    client,
		mgr:       mgr,
		lock:      session.NewLock(),
		pipeline:  p,
		publisher: pub,
		logger:    logger,
	}, nil
}

// Scan fails fast with session.ErrSessionBusy while another scan runs.
func (s *liveScanner) Scan(ctx context.Context) (*report.Report, error) {
	release, err := s.lock.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer release()

	src := source.NewLiveSource(s.client, s.mgr.State, source.LiveOptions{
		ChatID: s.cfg.Telegram.ChatID,
		Limit:  s.cfg.Telegram.HistoryLimit,
	}, s.logger)
	defer src.Close()

	return runOnce(ctx, s.pipeline, src, s.publisher)
}
