// Package tokenizer counts BPE tokens the way the provider bills them.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/sleepstars/chupapi/internal/models"
)

// DefaultEncoding is the GPT-3 vocabulary
const DefaultEncoding = "r50k_base"

func init() {
	// Vocabularies ship inside the binary; never fetch them at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer encodes text with a fixed vocabulary. It holds no per-call
// state and may be shared between requests.
type Tokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// New loads the named encoding. An empty name selects DefaultEncoding.
func New(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tokenizer{encoding: encoding, enc: enc}, nil
}

// Encoding returns the vocabulary name
func (t *Tokenizer) Encoding() string {
	return t.encoding
}

// Count returns the number of tokens in text. Special-token markers are
// encoded as ordinary text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.EncodeOrdinary(text))
}

// CountMessages sums Count over the content of every message.
func (t *Tokenizer) CountMessages(msgs []models.ChatMessage) int {
	total := 0
	for _, msg := range msgs {
		total += t.Count(msg.Content)
	}
	return total
}
