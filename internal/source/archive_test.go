package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/whoisscan/internal/model"
)

const sampleExport = `{
  "name": "Parents chat",
  "messages": [
    {
      "id": 1,
      "type": "message",
      "date": "2023-05-14T10:03:00",
      "from": "Anna Petrova",
      "from_id": "user111",
      "text": "Looking for a nanny #whois",
      "text_entities": [
        {"type": "plain", "text": "Looking for a nanny "},
        {"type": "hashtag", "text": "#whois"}
      ]
    },
    {
      "id": 2,
      "type": "service",
      "date": "2023-05-14T10:04:00",
      "actor": "Anna Petrova",
      "action": "pin_message",
      "text": ""
    },
    {
      "id": 3,
      "type": "message",
      "date": "2023-05-14T10:05:00",
      "from": "Ivan",
      "from_id": "user222",
      "text": ["Our son ", {"type": "bold", "text": "Misha"}, " is 7 ", {"type": "hashtag", "text": "#WHOIS"}],
      "text_entities": [
        {"type": "plain", "text": "Our son "},
        {"type": "bold", "text": "Misha"},
        {"type": "plain", "text": " is 7 "},
        {"type": "hashtag", "text": "#WHOIS"}
      ]
    },
    {
      "id": 4,
      "type": "message",
      "date": "2023-05-14T10:06:00",
      "from": null,
      "text": ""
    }
  ]
}`

func drain(t *testing.T, src Source) []model.Message {
	t.Helper()
	var out []model.Message
	for {
		msg, ok, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestReadArchive(t *testing.T) {
	src, err := ReadArchive(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if src.Name != "Parents chat" {
		t.Errorf("expected chat name, got %q", src.Name)
	}
	if src.Len() != 3 {
		t.Fatalf("expected 3 messages (service skipped), got %d", src.Len())
	}

	msgs := drain(t, src)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	first := msgs[0]
	if first.ID != 1 || first.Body != "Looking for a nanny #whois" {
		t.Errorf("unexpected first message: %+v", first)
	}
	if first.Sender.Name != "Anna Petrova" {
		t.Errorf("expected sender name from export, got %q", first.Sender.Name)
	}
	if first.Timestamp != "2023-05-14T10:03:00" {
		t.Errorf("expected raw date, got %q", first.Timestamp)
	}
	if first.Origin != model.OriginArchive {
		t.Errorf("expected archive origin")
	}
	if len(first.Hashtags) != 1 || first.Hashtags[0] != "#whois" {
		t.Errorf("expected one hashtag, got %v", first.Hashtags)
	}

	mixed := msgs[1]
	if mixed.Body != "Our son Misha is 7 #WHOIS" {
		t.Errorf("body should concatenate all segments, got %q", mixed.Body)
	}
	if len(mixed.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(mixed.Segments))
	}
	if mixed.Segments[0].Annotated() || !mixed.Segments[1].Annotated() {
		t.Errorf("unexpected annotation flags: %+v", mixed.Segments)
	}
	if mixed.Segments[1].Kind != "bold" {
		t.Errorf("expected bold kind, got %q", mixed.Segments[1].Kind)
	}

	empty := msgs[2]
	if empty.Body != "" || empty.Sender.Name != "" {
		t.Errorf("expected empty body and sender, got %+v", empty)
	}
}

func TestReadArchive_Malformed(t *testing.T) {
	_, err := ReadArchive(strings.NewReader(`{"messages": [`))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestReadArchive_BadTextShape(t *testing.T) {
	_, err := ReadArchive(strings.NewReader(`{"messages":[{"id":9,"type":"message","text":42}]}`))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestOpenArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	second, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive again: %v", err)
	}

	a, b := drain(t, first), drain(t, second)
	if len(a) != len(b) {
		t.Fatalf("reopening should replay the same sequence")
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Body != b[i].Body {
			t.Errorf("message %d differs between reads", i)
		}
	}
}

func TestOpenArchive_Missing(t *testing.T) {
	_, err := OpenArchive(filepath.Join(t.TempDir(), "nope.json"))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}

func TestFromSlice_CancelledContext(t *testing.T) {
	src := FromSlice([]model.Message{{ID: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestArchiveResolver(t *testing.T) {
	var r ArchiveResolver

	id, err := r.Resolve(context.Background(), model.Message{Sender: model.SenderRef{Name: "Anna Petrova"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.DisplayName != "Anna Petrova" || id.ProfileLink != "" {
		t.Errorf("unexpected identity %+v", id)
	}

	if _, err := r.Resolve(context.Background(), model.Message{}); !errors.Is(err, ErrNoSender) {
		t.Errorf("expected ErrNoSender, got %v", err)
	}
}
