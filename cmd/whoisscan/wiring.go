package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/whoisscan/internal/classifier"
	"github.com/user/whoisscan/internal/config"
	"github.com/user/whoisscan/internal/notify"
	"github.com/user/whoisscan/internal/pipeline"
	"github.com/user/whoisscan/internal/report"
	"github.com/user/whoisscan/internal/telegram"
	"github.com/user/whoisscan/pkg/llm"
	"github.com/user/whoisscan/pkg/llm/anthropic"
	"github.com/user/whoisscan/pkg/llm/gemini"
	"github.com/user/whoisscan/pkg/llm/openai"
)

// providerConfig builds the transport config for the configured provider.
// The OpenAI endpoint and model that config.Default fills in are dropped for
// the other providers so they fall back to their own defaults.
func providerConfig(cfg *config.Config) *llm.Config {
	lc := &llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	if cfg.LLM.Provider != "openai" {
		if lc.BaseURL == openai.DefaultBaseURL {
			lc.BaseURL = ""
		}
		if lc.Model == openai.DefaultModel {
			lc.Model = ""
		}
	}
	return lc
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	lc := providerConfig(cfg)
	switch cfg.LLM.Provider {
	case "anthropic":
		return anthropic.New(lc), nil
	case "gemini":
		return gemini.New(ctx, lc)
	default:
		return openai.New(lc), nil
	}
}

func newClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*classifier.Classifier, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.LLM.Provider, err)
	}

	opts := classifier.Options{
		Language:    cfg.Language,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: llm.Float32(cfg.LLM.Temperature),
		OnError:     classifier.OnError(cfg.Classifier.OnError),
	}
	if cfg.LLM.MaxInputTokens > 0 {
		budget, err := classifier.NewBudget(cfg.LLM.Model, cfg.LLM.MaxInputTokens)
		if err != nil {
			logger.Warn("token budget disabled", "error", err)
		} else {
			opts.Budget = budget
		}
	}
	return classifier.New(provider, opts, logger), nil
}

func newPipeline(ctx context.Context, cfg *config.Config, resolver pipeline.Resolver, logger *slog.Logger) (*pipeline.Pipeline, error) {
	clf, err := newClassifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.NewFilter(cfg.Marker), clf, resolver, logger), nil
}

// outputs is the report file plus whichever sinks are configured.
type outputs struct {
	publisher *report.Publisher
	latest    *report.Latest
	bot       *notify.Bot
	closers   []func()
}

func (o *outputs) Close() {
	for _, c := range o.closers {
		c()
	}
}

// newOutputs wires the report sinks. A sink that cannot be opened is logged
// and left out; it never stops the scan.
func newOutputs(ctx context.Context, cfg *config.Config, logger *slog.Logger) *outputs {
	o := &outputs{latest: &report.Latest{}}
	formatter := report.NewFormatter(cfg.DateLayout, logger)
	sinks := []report.Sink{o.latest}

	if cfg.Store.DatabaseURL != "" {
		pg, err := report.OpenPG(ctx, cfg.Store.DatabaseURL, cfg.Store.Table)
		if err != nil {
			logger.Error("postgres sink disabled", "error", err)
		} else {
			sinks = append(sinks, pg)
			o.closers = append(o.closers, pg.Close)
		}
	}
	if cfg.Events.NATSURL != "" {
		ns, err := report.DialNATS(cfg.Events.NATSURL, cfg.Events.Subject, formatter, logger)
		if err != nil {
			logger.Error("nats sink disabled", "error", err)
		} else {
			sinks = append(sinks, ns)
			o.closers = append(o.closers, ns.Close)
		}
	}
	if cfg.Notify.BotToken != "" && cfg.Notify.ChatID != 0 {
		bot, err := notify.New(cfg.Notify.BotToken, cfg.Notify.ChatID, o.latest, logger)
		if err != nil {
			logger.Error("telegram bot sink disabled", "error", err)
		} else {
			sinks = append(sinks, bot)
			o.bot = bot
		}
	}

	o.publisher = report.NewPublisher(cfg.OutputPath, formatter, logger, sinks...)
	return o
}

func newTelegramClient(cfg *config.Config, logger *slog.Logger) (*telegram.Client, error) {
	zl, err := telegram.NewZapLogger(cfg.LogFile, cfg.Telegram.MTProtoLogLevel)
	if err != nil {
		return nil, err
	}
	return telegram.New(telegram.Options{
		AppID:       cfg.Telegram.APIID,
		AppHash:     cfg.Telegram.APIHash,
		SessionPath: cfg.SessionPath(cfgPath),
		Zap:         zl,
	}, logger), nil
}
