package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/user/whoisscan/internal/model"
)

// export mirrors the parts of a Telegram Desktop JSON export we read.
type export struct {
	Name     string          `json:"name"`
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Date         string          `json:"date"`
	From         *string         `json:"from"`
	FromID       string          `json:"from_id"`
	Text         json.RawMessage `json:"text"` // string or array of string | {type, text}
	TextEntities []textEntity    `json:"text_entities"`
}

type textEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ArchiveSource replays a previously exported chat. The whole export is read
// up front, so the sequence is finite and restartable by opening the file again.
type ArchiveSource struct {
	sliceSource
	Name string
}

// OpenArchive reads and decodes an export file.
func OpenArchive(path string) (*ArchiveSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Op: "open archive", Err: err}
	}
	defer f.Close()
	return ReadArchive(f)
}

// ReadArchive decodes an export from r.
func ReadArchive(r io.Reader) (*ArchiveSource, error) {
	var exp export
	if err := json.NewDecoder(r).Decode(&exp); err != nil {
		return nil, &FetchError{Op: "decode archive", Err: err}
	}

	messages := make([]model.Message, 0, len(exp.Messages))
	for _, em := range exp.Messages {
		if em.Type != "" && em.Type != "message" {
			continue
		}
		msg, err := em.toMessage()
		if err != nil {
			return nil, &FetchError{Op: "decode archive", Err: fmt.Errorf("message %d: %w", em.ID, err)}
		}
		messages = append(messages, msg)
	}

	return &ArchiveSource{sliceSource: sliceSource{messages: messages}, Name: exp.Name}, nil
}

// Len returns the number of messages in the export.
func (a *ArchiveSource) Len() int { return len(a.messages) }

func (em exportMessage) toMessage() (model.Message, error) {
	segments, err := decodeText(em.Text)
	if err != nil {
		return model.Message{}, err
	}

	msg := model.NewMessage(em.ID, segments)
	msg.Timestamp = em.Date
	msg.Origin = model.OriginArchive
	if em.From != nil {
		msg.Sender.Name = *em.From
	}
	for _, ent := range em.TextEntities {
		if ent.Type == "hashtag" {
			msg.Hashtags = append(msg.Hashtags, ent.Text)
		}
	}
	return msg, nil
}

// decodeText handles the two shapes of the export's "text" field: a plain
// string, or an ordered array mixing strings and annotated objects.
func decodeText(raw json.RawMessage) ([]model.Segment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("text string: %w", err)
		}
		return []model.Segment{model.PlainText(s)}, nil

	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, fmt.Errorf("text array: %w", err)
		}
		segments := make([]model.Segment, 0, len(parts))
		for i, part := range parts {
			seg, err := decodeSegment(part)
			if err != nil {
				return nil, fmt.Errorf("text segment %d: %w", i, err)
			}
			segments = append(segments, seg)
		}
		return segments, nil
	}

	return nil, fmt.Errorf("unexpected text shape %q", raw[:1])
}

func decodeSegment(raw json.RawMessage) (model.Segment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Segment{}, err
		}
		return model.PlainText(s), nil
	}

	var ent textEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return model.Segment{}, err
	}
	kind := ent.Type
	if kind == "" || kind == "plain" {
		return model.PlainText(ent.Text), nil
	}
	return model.AnnotatedText(ent.Text, kind), nil
}
