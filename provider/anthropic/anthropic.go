// Package anthropic provides a provider.Provider backed by the Anthropic
// Messages API for text generation (outlines, chapters, polish passes, cover
// concepts).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Options configures the Anthropic provider adapter (model id, temperature,
// max tokens). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
}

// WithModel selects the model by its string id, as carried in configuration
// files. An empty name keeps the default.
func WithModel(name string) func(o *Options) {
	return func(o *Options) {
		if name != "" {
			o.Model = anthropic.Model(name)
		}
	}
}

// Provider wraps the Anthropic Messages API behind the generic
// provider.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Anthropic provider using the official client. The API key
// is read from the environment by the SDK.
func New(optFns ...func(o *Options)) *Provider {
	client := anthropic.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new Anthropic provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Submit implements provider.Provider. Rate limits and server errors are
// returned plainly (retryable); auth and invalid-request errors are wrapped
// with retry.Permanent so the executor fails fast.
func (p *Provider) Submit(ctx context.Context, req provider.Request) (provider.Artifact, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return provider.Artifact{}, classify(fmt.Errorf("anthropic api error: %w", err))
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return provider.Artifact{}, fmt.Errorf("anthropic: empty completion")
	}

	return provider.Artifact{
		Text: text,
		Metadata: map[string]any{
			"model":       string(resp.Model),
			"stop_reason": string(resp.StopReason),
		},
	}, nil
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: string(p.opts.Model), Provider: "anthropic"}
}

// classify splits API failures into retryable and permanent. Rate limiting,
// timeouts and server errors may succeed on retry; everything else (auth,
// malformed request) will not.
func classify(err error) error {
	var apierr *anthropic.Error
	if !errors.As(err, &apierr) {
		return err // transport level, retryable
	}
	switch {
	case apierr.StatusCode == 408 || apierr.StatusCode == 429:
		return err
	case apierr.StatusCode >= 500:
		return err
	default:
		return retry.Permanent(err)
	}
}
