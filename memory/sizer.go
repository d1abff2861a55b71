package memory

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Sizer measures text against the compaction threshold.
type Sizer interface {
	Size(text string) int
	Name() string
}

// CharSizer counts runes.
type CharSizer struct{}

// Size implements Sizer.
func (CharSizer) Size(text string) int { return utf8.RuneCountInString(text) }

// Name implements Sizer.
func (CharSizer) Name() string { return "chars" }

// TokenSizer counts cl100k_base tokens, falling back to len/4 when the
// encoding cannot be loaded.
type TokenSizer struct {
	once    sync.Once
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

// NewTokenSizer creates a TokenSizer. The encoding is loaded on first use.
func NewTokenSizer() *TokenSizer { return &TokenSizer{} }

// Size implements Sizer.
func (t *TokenSizer) Size(text string) int {
	t.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			t.encoder = enc
		}
	})
	if t.encoder == nil {
		return len(text) / 4
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// Name implements Sizer.
func (t *TokenSizer) Name() string { return "tokens" }

// NewSizer returns the sizer registered under name ("chars" or "tokens").
func NewSizer(name string) Sizer {
	if name == "tokens" {
		return NewTokenSizer()
	}
	return CharSizer{}
}
