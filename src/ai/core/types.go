package core

import "context"

// Options controls model behavior; zero fields fall back to the client defaults.
type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Merge overlays the non-zero fields of o on top of the defaults d.
func (d Options) Merge(o Options) Options {
	out := d
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.Temperature != 0 {
		out.Temperature = o.Temperature
	}
	if o.MaxTokens != 0 {
		out.MaxTokens = o.MaxTokens
	}
	if o.SystemPrompt != "" {
		out.SystemPrompt = o.SystemPrompt
	}
	return out
}

// Client is a provider-agnostic interface for the completions we need.
type Client interface {
	Respond(ctx context.Context, input string, opts Options) (string, error)
}
