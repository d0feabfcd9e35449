package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/whoisscan/internal/model"
	"github.com/user/whoisscan/internal/session"
)

// DefaultPageSize is how many messages LiveSource requests per history call.
const DefaultPageSize = 100

// ErrNotAuthorized is returned when a live source is used before the session
// reached the Authorized state.
var ErrNotAuthorized = errors.New("session is not authorized")

// HistoryPager fetches one page of a chat's history, newest first. offsetID
// of zero means "from the latest message"; otherwise only messages older than
// offsetID are returned.
type HistoryPager interface {
	History(ctx context.Context, chatID int64, offsetID int64, limit int) ([]model.Message, error)
}

// StateFunc reports the current session state.
type StateFunc func() session.State

// LiveOptions configures a LiveSource.
type LiveOptions struct {
	ChatID   int64
	PageSize int
	// Limit caps the total number of messages read. Zero reads the whole
	// history the platform serves.
	Limit int
}

// LiveSource walks the history of one chat in an authorized session. The
// history is fetched completely on the first call to Next so that a failed
// fetch never exposes a partial sequence.
type LiveSource struct {
	pager  HistoryPager
	state  StateFunc
	opts   LiveOptions
	logger *slog.Logger

	loaded bool
	items  sliceSource
}

// NewLiveSource creates a live source. state is consulted on the first Next.
func NewLiveSource(pager HistoryPager, state StateFunc, opts LiveOptions, logger *slog.Logger) *LiveSource {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &LiveSource{pager: pager, state: state, opts: opts, logger: logger}
}

func (l *LiveSource) Next(ctx context.Context) (model.Message, bool, error) {
	if !l.loaded {
		messages, err := l.fetch(ctx)
		if err != nil {
			return model.Message{}, false, err
		}
		l.items = sliceSource{messages: messages}
		l.loaded = true
	}
	return l.items.Next(ctx)
}

func (l *LiveSource) Close() error {
	return l.items.Close()
}

func (l *LiveSource) fetch(ctx context.Context) ([]model.Message, error) {
	if st := l.state(); st != session.Authorized {
		return nil, &FetchError{Op: "history", Err: fmt.Errorf("%w (state %s)", ErrNotAuthorized, st)}
	}

	var (
		all    []model.Message
		offset int64
	)
	for {
		limit := l.opts.PageSize
		if l.opts.Limit > 0 {
			remaining := l.opts.Limit - len(all)
			if remaining <= 0 {
				break
			}
			limit = min(limit, remaining)
		}

		page, err := l.pager.History(ctx, l.opts.ChatID, offset, limit)
		if err != nil {
			return nil, &FetchError{Op: "history", Err: err}
		}
		for i := range page {
			page[i].Origin = model.OriginLive
		}
		all = append(all, page...)
		l.logger.Debug("fetched history page", "chat_id", l.opts.ChatID, "offset_id", offset, "count", len(page))

		if len(page) < limit {
			break
		}
		offset = page[len(page)-1].ID
	}

	l.logger.Info("history loaded", "chat_id", l.opts.ChatID, "messages", len(all))
	return all, nil
}
