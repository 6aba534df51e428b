package agent

import (
	"context"
	"fmt"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/internal/util"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Task kinds and component keys owned by the visual role.
const (
	AgentVisual = "visual"

	KindCreateCoverConcept = "create_cover_concept"
	KindGenerateCoverArt   = "generate_cover_art"

	ComponentCoverConcept = "cover_concept"
	ComponentCoverImage   = "cover_image"
)

// visualKeywords: "cover concept" and "cover art" overlap on "cover"; table
// order is the tie-break, with the bare "cover" falling through to a concept.
var visualKeywords = KeywordTable{
	{Pattern: "cover concept", Kind: KindCreateCoverConcept},
	{Pattern: "cover art", Kind: KindGenerateCoverArt},
	{Pattern: "cover", Kind: KindCreateCoverConcept},
}

const visualSystem = "You are a book cover designer. You describe striking, genre-appropriate cover compositions."

const coverConceptPrompt = `Propose a cover design concept for this book. Describe
composition, palette, focal imagery and mood in one paragraph suitable as an
image generation prompt.

Title: {{.title}}
Genre: {{default "unspecified" .genre}}
Description: {{default "none provided" .description}}`

// VisualAgent designs cover concepts with the text provider and renders
// cover art with the image provider.
type VisualAgent struct {
	*Agent
	text  provider.Provider
	image provider.Provider
	store core.ComponentStore
}

// NewVisualAgent wires the visual role with both providers.
func NewVisualAgent(b core.Bus, text, image provider.Provider, store core.ComponentStore, optFns ...func(o *Options)) *VisualAgent {
	va := &VisualAgent{
		Agent: New(AgentVisual, b, optFns...),
		text:  text,
		image: image,
		store: store,
	}
	va.Handle(KindCreateCoverConcept, va.createCoverConcept)
	va.Handle(KindGenerateCoverArt, va.generateCoverArt)
	va.SetKeywords(visualKeywords)
	return va
}

func (va *VisualAgent) createCoverConcept(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	prompt, err := util.RenderTemplate(coverConceptPrompt, task.Content)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := retry.DoValue(ctx, va.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return va.text.Submit(ctx, provider.Request{System: visualSystem, Prompt: prompt})
	})
	if err != nil {
		return nil, err
	}
	if err := va.store.Save(bookID, ComponentCoverConcept, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save concept: %w", err)
	}
	return map[string]any{"component": ComponentCoverConcept, "concept": art.Text}, nil
}

func (va *VisualAgent) generateCoverArt(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	concept, err := va.store.Load(bookID, ComponentCoverConcept)
	if err != nil {
		return nil, fmt.Errorf("cover concept required: %w", err)
	}

	art, err := retry.DoValue(ctx, va.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return va.image.Submit(ctx, provider.Request{Prompt: string(concept)})
	})
	if err != nil {
		return nil, err
	}
	if err := va.store.Save(bookID, ComponentCoverImage, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save cover image: %w", err)
	}
	return map[string]any{"component": ComponentCoverImage, "mime": art.MIME, "bytes": len(art.Bytes())}, nil
}
