// Package llm abstracts the answer-generating model behind a small
// provider-agnostic contract. The retrieval core builds prompts; providers
// own their wire formats.
package llm

import "context"

// Message is one turn of a chat exchange. Role is "system", "user" or
// "assistant".
type Message struct {
	Role    string
	Content string
}

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

type Option func(*Options)

func WithTemperature(temperature float64) Option {
	return func(o *Options) {
		o.Temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Provider answers prompts. Generate is the single-prompt convenience over
// Chat.
type Provider interface {
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
