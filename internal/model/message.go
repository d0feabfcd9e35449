package model

import "strings"

// Segment is one piece of a message's text. Kind is empty for plain text and
// carries the entity type ("hashtag", "link", "bold", ...) for annotated text.
type Segment struct {
	Text string
	Kind string
}

// PlainText returns an unannotated segment.
func PlainText(s string) Segment { return Segment{Text: s} }

// AnnotatedText returns a segment tagged with an entity kind.
func AnnotatedText(s, kind string) Segment { return Segment{Text: s, Kind: kind} }

// Annotated reports whether the segment carries an entity kind.
func (s Segment) Annotated() bool { return s.Kind != "" }

// SenderRef points at the author of a message. Archive exports only carry a
// display string (Name); live messages carry a peer kind and numeric ID.
type SenderRef struct {
	Kind string
	ID   int64
	Name string
}

// Sender kinds for SenderRef.Kind.
const (
	SenderUser    = "user"
	SenderChannel = "channel"
	SenderChat    = "chat"
)

// Message is a chat message as seen by the pipeline.
type Message struct {
	ID        int64
	Body      string
	Segments  []Segment
	Hashtags  []string
	Timestamp string
	Sender    SenderRef
	Origin    Origin
}

// Origin distinguishes archive messages from live ones; it selects the
// hashtag matching rule.
type Origin int

const (
	OriginArchive Origin = iota
	OriginLive
)

func (o Origin) String() string {
	if o == OriginLive {
		return "live"
	}
	return "archive"
}

// JoinSegments reconstructs a body from its segments, ignoring annotations.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// NewMessage builds a message whose Body is derived from segments.
func NewMessage(id int64, segments []Segment) Message {
	return Message{ID: id, Segments: segments, Body: JoinSegments(segments)}
}
