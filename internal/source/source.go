// Package source produces the ordered message sequences the pipeline scans.
package source

import (
	"context"
	"fmt"

	"github.com/user/whoisscan/internal/model"
)

// Source yields messages in their natural order. Next returns ok=false once
// the sequence is exhausted. Close releases whatever backs the sequence.
type Source interface {
	Next(ctx context.Context) (msg model.Message, ok bool, err error)
	Close() error
}

// FetchError reports that the underlying corpus could not be read at all.
// A source that returns it has yielded no messages.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// sliceSource yields a materialized slice.
type sliceSource struct {
	messages []model.Message
	pos      int
}

func (s *sliceSource) Next(ctx context.Context) (model.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, false, err
	}
	if s.pos >= len(s.messages) {
		return model.Message{}, false, nil
	}
	msg := s.messages[s.pos]
	s.pos++
	return msg, true, nil
}

func (s *sliceSource) Close() error {
	s.messages = nil
	s.pos = 0
	return nil
}

// FromSlice wraps already materialized messages, mostly for tests and replays.
func FromSlice(messages []model.Message) Source {
	return &sliceSource{messages: messages}
}
