// Package notify delivers scan reports through a Telegram bot and answers a
// few status commands.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/whoisscan/internal/report"
)

const maxTelegramMessage = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot posts reports to one chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	send   sender
	chatID int64
	latest *report.Latest
	logger *slog.Logger
}

// New creates a bot that delivers to chatID. latest may be nil when the bot
// only sends and never answers commands.
func New(token string, chatID int64, latest *report.Latest, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Bot{api: api, send: api, chatID: chatID, latest: latest, logger: logger}, nil
}

func (b *Bot) Name() string { return "telegram-bot" }

// Publish sends the report text, split to fit the message size limit.
func (b *Bot) Publish(ctx context.Context, r *report.Report) error {
	return b.sendText(ctx, b.chatID, summary(r))
}

// Listen long-polls for commands until ctx is done.
func (b *Bot) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if chatID != b.chatID {
		b.logger.Warn("command from unknown chat ignored", "chat_id", chatID, "command", msg.Command())
		return
	}

	var reply string
	switch msg.Command() {
	case "start":
		reply = "whoisscan bot. Commands: /report, /status"
	case "report":
		if r := b.latestReport(); r != nil {
			reply = summary(r)
		} else {
			reply = "No scan has finished yet."
		}
	case "status":
		if r := b.latestReport(); r != nil {
			reply = fmt.Sprintf("Last run: %s\nFinished: %s\nMatches: %d",
				r.RunID, r.GeneratedAt.Format("02/01/2006 15:04:05"), len(r.Records))
		} else {
			reply = "No scan has finished yet."
		}
	default:
		reply = "Unknown command. Available: /report, /status"
	}

	if err := b.sendText(ctx, chatID, reply); err != nil {
		b.logger.Error("send reply failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) latestReport() *report.Report {
	if b.latest == nil {
		return nil
	}
	return b.latest.Get()
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.send.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func summary(r *report.Report) string {
	if len(r.Records) == 0 {
		return fmt.Sprintf("Scan %s: no matches.", r.RunID)
	}
	return fmt.Sprintf("Scan %s: %d matches\n\n%s", r.RunID, len(r.Records), r.Text)
}

// splitMessage cuts text into parts of at most maxTelegramMessage bytes,
// preferring line breaks and never splitting a UTF-8 sequence.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		end := strings.LastIndexByte(text[:maxTelegramMessage], '\n')
		if end <= 0 {
			end = maxTelegramMessage
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = strings.TrimPrefix(text[end:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
