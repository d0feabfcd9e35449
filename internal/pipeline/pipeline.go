// Package pipeline turns a message source into report records: filter by
// marker, drop repeated bodies, classify, resolve senders.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/whoisscan/internal/model"
	"github.com/user/whoisscan/internal/source"
)

// Classifier returns the verdict for one message body.
type Classifier interface {
	Classify(ctx context.Context, msgID int64, body string) (bool, error)
}

// Resolver turns a message's sender reference into a report identity.
type Resolver interface {
	Resolve(ctx context.Context, msg model.Message) (model.Identity, error)
}

// ResolveError is a sender lookup that failed; the record is dropped.
type ResolveError struct {
	MessageID int64
	Err       error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve sender of message %d: %v", e.MessageID, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Stats counts what happened to the messages of one run.
type Stats struct {
	Scanned    int `json:"scanned"`
	Candidates int `json:"candidates"`
	Duplicates int `json:"duplicates"`
	Classified int `json:"classified"`
	Matched    int `json:"matched"`
	Dropped    int `json:"dropped"`
}

// LogValue lets Stats be logged as a group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("scanned", s.Scanned),
		slog.Int("candidates", s.Candidates),
		slog.Int("duplicates", s.Duplicates),
		slog.Int("classified", s.Classified),
		slog.Int("matched", s.Matched),
		slog.Int("dropped", s.Dropped),
	)
}

// Result is the complete outcome of a run, in source order.
type Result struct {
	RunID   model.RunID
	Records []model.OutputRecord
	Stats   Stats
}

type Pipeline struct {
	filter     *Filter
	classifier Classifier
	resolver   Resolver
	logger     *slog.Logger
}

func New(filter *Filter, classifier Classifier, resolver Resolver, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		filter:     filter,
		classifier: classifier,
		resolver:   resolver,
		logger:     logger,
	}
}

// Run drains src and returns the matched records. A source failure, a
// cancelled context or an aborting classifier error ends the run with no
// result. Dedup state lives only for this call.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*Result, error) {
	res := &Result{RunID: model.NewRunID()}
	logger := p.logger.With("run_id", string(res.RunID))
	dedup := NewDedup()

	logger.Info("run started")
	for {
		msg, ok, err := src.Next(ctx)
		if err != nil {
			logger.Error("run aborted", "error", err, "stats", res.Stats)
			return nil, err
		}
		if !ok {
			break
		}
		res.Stats.Scanned++

		if !p.filter.Match(msg) {
			continue
		}
		res.Stats.Candidates++

		if dedup.Seen(msg.Body) {
			res.Stats.Duplicates++
			logger.Debug("duplicate body skipped", "msg_id", msg.ID)
			continue
		}

		positive, err := p.classifier.Classify(ctx, msg.ID, msg.Body)
		if err != nil {
			logger.Error("run aborted", "msg_id", msg.ID, "error", err, "stats", res.Stats)
			return nil, err
		}
		res.Stats.Classified++
		if !positive {
			continue
		}

		who, err := p.resolver.Resolve(ctx, msg)
		if err != nil {
			res.Stats.Dropped++
			logger.Warn("record dropped", "error", &ResolveError{MessageID: msg.ID, Err: err})
			continue
		}

		res.Stats.Matched++
		res.Records = append(res.Records, model.OutputRecord{
			MessageID:   msg.ID,
			DisplayName: who.DisplayName,
			Timestamp:   msg.Timestamp,
			ProfileLink: who.ProfileLink,
		})
	}

	logger.Info("run finished", "stats", res.Stats)
	return res, nil
}
