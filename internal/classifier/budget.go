package classifier

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Budget caps how many tokens of a message body reach the model.
type Budget struct {
	enc *tiktoken.Tiktoken
	max int
}

// NewBudget picks the tokenizer for model, falling back to cl100k_base for
// models tiktoken does not know.
func NewBudget(model string, maxTokens int) (*Budget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Budget{enc: enc, max: maxTokens}, nil
}

func (b *Budget) Max() int { return b.max }

// Count returns the token count of text.
func (b *Budget) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// Truncate cuts text to at most Max tokens. The bool is true when text was cut.
func (b *Budget) Truncate(text string) (string, bool) {
	if b.max <= 0 {
		return text, false
	}
	tokens := b.enc.Encode(text, nil, nil)
	if len(tokens) <= b.max {
		return text, false
	}
	return trimPartialRune(b.enc.Decode(tokens[:b.max])), true
}

// trimPartialRune drops the bytes of a multi-byte character cut in half at
// the end of s. A token boundary can fall inside a Cyrillic letter.
func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax && len(s) > 0 && !utf8.ValidString(s); i++ {
		s = s[:len(s)-1]
	}
	return s
}
