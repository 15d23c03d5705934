// Package llm provides the text generators used for theme classification.
//
// Everything outside this package sees a single method, Generate. Provider
// clients (Ollama, Gemini) implement it directly; Guard adds rate limiting,
// a circuit breaker and metrics around any Generator; Func adapts a plain
// function for tests and offline use.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrUnavailable is returned when a provider cannot serve a request,
// including when its circuit breaker is open.
var ErrUnavailable = errors.New("text generator unavailable")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Failing returns a Generator that always fails with ErrUnavailable.
func Failing() Generator {
	return Func(func(context.Context, string) (string, error) {
		return "", ErrUnavailable
	})
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes reasoning blocks that some local models emit before
// their answer. An unterminated block drops everything up to the last
// closing tag, or nothing if there is none.
func StripThinking(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	if i := strings.LastIndex(text, "</think>"); i >= 0 {
		text = text[i+len("</think>"):]
	}
	return strings.TrimSpace(text)
}
