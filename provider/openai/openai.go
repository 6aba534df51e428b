// Package openai provides a provider.Provider backed by the OpenAI Images
// API for cover art generation. Text generation stays with the Anthropic
// adapter; this mirrors the split between the writing and visual pipelines.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Options configures the OpenAI image provider adapter.
type Options struct {
	Model openai.ImageModel
	Size  openai.ImageGenerateParamsSize
}

// WithModel selects the image model by its string id, as carried in
// configuration files. An empty name keeps the default.
func WithModel(name string) func(o *Options) {
	return func(o *Options) {
		if name != "" {
			o.Model = openai.ImageModel(name)
		}
	}
}

// Provider wraps the OpenAI Images API behind the generic provider.Provider
// interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI image provider using the official client. The API
// key is read from the environment by the SDK.
func New(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI image provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model: openai.ImageModelDallE3,
		Size:  openai.ImageGenerateParamsSize1024x1792, // portrait, book cover
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Submit implements provider.Provider. The prompt describes the cover image;
// the artifact carries decoded PNG bytes.
func (p *Provider) Submit(ctx context.Context, req provider.Request) (provider.Artifact, error) {
	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          p.opts.Model,
		Size:           p.opts.Size,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		return provider.Artifact{}, classify(fmt.Errorf("openai api error: %w", err))
	}
	if len(resp.Data) == 0 {
		return provider.Artifact{}, fmt.Errorf("openai: no image returned")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return provider.Artifact{}, retry.Permanent(fmt.Errorf("openai: decode image: %w", err))
	}

	return provider.Artifact{
		Data: data,
		MIME: "image/png",
		Metadata: map[string]any{
			"model":          string(p.opts.Model),
			"revised_prompt": resp.Data[0].RevisedPrompt,
		},
	}, nil
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: string(p.opts.Model), Provider: "openai"}
}

// classify splits API failures into retryable and permanent, same policy as
// the Anthropic adapter.
func classify(err error) error {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return err
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
