// Package classifier asks a language model whether a message mentions minors.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/whoisscan/pkg/llm"
)

const (
	systemPrompt = "Identify if the following message mentions kids (under 18)."
	userPrompt   = "The following message is in %s: '%s'. If it mentions kids under 18, respond 'yes', otherwise respond 'no'."

	DefaultLanguage    = "Russian"
	DefaultMaxTokens   = 5
	DefaultTemperature = 0.2
)

// OnError selects what a failed classification call means for the run.
type OnError string

const (
	// OnErrorSkip treats a failed call as a "no" and keeps going.
	OnErrorSkip OnError = "skip"
	// OnErrorAbort turns a failed call into a fatal run error.
	OnErrorAbort OnError = "abort"
)

// Error is a failed classification call.
type Error struct {
	MessageID int64
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classify message %d: %v", e.MessageID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	Language    string
	MaxTokens   int
	// Temperature nil means DefaultTemperature; zero is a valid setting.
	Temperature *float32
	OnError     OnError
	// Budget truncates long bodies before they are sent. Nil sends bodies as is.
	Budget *Budget
}

// Classifier wraps a single completion call with a fixed prompt contract.
type Classifier struct {
	provider    llm.Provider
	opts        Options
	temperature float32
	logger      *slog.Logger
}

func New(provider llm.Provider, opts Options, logger *slog.Logger) *Classifier {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OnError == "" {
		opts.OnError = OnErrorSkip
	}
	c := &Classifier{provider: provider, opts: opts, temperature: DefaultTemperature, logger: logger}
	if opts.Temperature != nil {
		c.temperature = *opts.Temperature
	}
	return c
}

// Classify reports whether body mentions children under 18. Only a reply
// that normalizes to "yes" counts as positive. A failed call is logged and
// reads as false; with OnErrorAbort it is also returned as *Error.
func (c *Classifier) Classify(ctx context.Context, msgID int64, body string) (bool, error) {
	if c.opts.Budget != nil {
		if cut, truncated := c.opts.Budget.Truncate(body); truncated {
			c.logger.Debug("message truncated for classification", "msg_id", msgID, "max_tokens", c.opts.Budget.Max())
			body = cut
		}
	}

	resp, err := c.provider.Complete(ctx, &llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(c.opts.Language, body)}},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: llm.Float32(c.temperature),
	})
	if err != nil {
		c.logger.Error("classification failed", "msg_id", msgID, "error", err)
		if c.opts.OnError == OnErrorAbort {
			return false, &Error{MessageID: msgID, Err: err}
		}
		return false, nil
	}

	verdict := IsYes(resp.Content)
	c.logger.Debug("message classified", "msg_id", msgID, "reply", resp.Content, "positive", verdict)
	return verdict, nil
}

// BuildPrompt renders the user half of the prompt.
func BuildPrompt(language, body string) string {
	return fmt.Sprintf(userPrompt, language, body)
}

// IsYes normalizes a model reply and compares it with "yes".
func IsYes(reply string) bool {
	return strings.ToLower(strings.TrimSpace(reply)) == "yes"
}
