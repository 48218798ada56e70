// Package tokenizer turns response token ids back into text, either with a
// local tokenizer.json or a tiktoken encoding.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer decodes token ids without skipping special tokens
type Tokenizer interface {
	Decode(ids []int) (string, error)
}

// Tiktoken is a Tokenizer backed by a tiktoken encoding
type Tiktoken struct {
	name     string
	once     sync.Once
	encoding *tiktoken.Tiktoken
	err      error
}

// NewTiktoken returns a tokenizer for the named encoding (e.g. cl100k_base).
// The encoding is loaded on first use.
func NewTiktoken(name string) *Tiktoken {
	return &Tiktoken{name: name}
}

// Load fetches the encoding now instead of on first use
func (t *Tiktoken) Load() error {
	return t.load()
}

func (t *Tiktoken) load() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.name)
		if err != nil {
			t.err = fmt.Errorf("failed to load encoding %s: %w", t.name, err)
			return
		}
		t.encoding = enc
	})
	return t.err
}

// Decode renders ids as text
func (t *Tiktoken) Decode(ids []int) (text string, err error) {
	if err := t.load(); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to decode %d tokens: %v", len(ids), r)
		}
	}()
	return t.encoding.Decode(ids), nil
}

// Encode tokenizes text, allowing every special token
func (t *Tiktoken) Encode(text string) ([]int, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	return t.encoding.Encode(text, []string{"all"}, nil), nil
}

// SpecialTokenID returns the id of the single token spelling s, special
// tokens allowed
func (t *Tiktoken) SpecialTokenID(s string) (int, bool) {
	ids, err := t.Encode(s)
	if err != nil || len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

// Func adapts a function to the Tokenizer interface
type Func func(ids []int) (string, error)

// Decode calls f
func (f Func) Decode(ids []int) (string, error) {
	return f(ids)
}
