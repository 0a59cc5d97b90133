// Package token abstracts model-tokenizer counting for budget fitting.
package token

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures text in model-tokenizer units. The engine takes a
// caller-supplied Counter so the budget is measured with the tokenizer of
// the actual target model.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// DefaultEncoding is the tiktoken encoding used when no model-specific
// counter is supplied.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens with a tiktoken encoding. Initialization
// is lazy because tiktoken may fetch encoding data on first use; if that
// fails, counting falls back to a bytes/4 heuristic rather than erroring.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
}

// Tiktoken creates a counter for the named encoding.
func Tiktoken(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TiktokenCounter{encoding: encoding}
}

func (t *TiktokenCounter) Count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err == nil {
			t.enc = enc
		}
	})
	if t.enc == nil {
		return approximate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

func approximate(text string) int {
	return (len(text) + 3) / 4
}
