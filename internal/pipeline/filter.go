package pipeline

import (
	"strings"

	"github.com/user/whoisscan/internal/model"
)

// DefaultMarker is the hashtag that makes a message a candidate.
const DefaultMarker = "#whois"

// Filter decides whether a message carries the marker hashtag.
type Filter struct {
	marker string
}

func NewFilter(marker string) *Filter {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Filter{marker: strings.ToLower(marker)}
}

// Match applies the rule for the message's origin. Archive messages need a
// hashtag entity equal to the marker; live messages need the marker anywhere
// in the body. Both comparisons ignore case. Empty bodies never match.
func (f *Filter) Match(msg model.Message) bool {
	if msg.Body == "" {
		return false
	}
	if msg.Origin == model.OriginLive {
		return strings.Contains(strings.ToLower(msg.Body), f.marker)
	}
	for _, tag := range msg.Hashtags {
		if strings.EqualFold(tag, f.marker) {
			return true
		}
	}
	return false
}
