package agent

import (
	"context"
	"fmt"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/internal/util"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Task kinds and component keys owned by the outline role.
const (
	AgentOutline = "outline"

	KindCreateOutline    = "create_outline"
	KindRefineOutline    = "refine_outline"
	KindCreateCharacters = "create_characters"

	ComponentOutline    = "outline"
	ComponentCharacters = "characters"
)

// outlineKeywords is the legacy free-text fallback. Order is the tie-break:
// "refine" outranks "outline" so a "refine the outline" description resolves
// to refinement, not creation.
var outlineKeywords = KeywordTable{
	{Pattern: "refine", Kind: KindRefineOutline},
	{Pattern: "revision", Kind: KindRefineOutline},
	{Pattern: "character", Kind: KindCreateCharacters},
	{Pattern: "outline", Kind: KindCreateOutline},
}

const outlineSystem = "You are a story architect. You produce structured, chapter-by-chapter book outlines."

const outlinePrompt = `Create a complete chapter-by-chapter outline for a book.

Title: {{.title}}
Genre: {{default "unspecified" .genre}}
Description: {{default "none provided" .description}}

For each chapter give a title and a short summary of its events.`

const outlineRefinePrompt = `Revise the following book outline according to the feedback.

Current outline:
{{.outline}}

Feedback:
{{.feedback}}

Return the full revised outline.`

const charactersPrompt = `Based on this outline, create profiles for the main characters
(name, role, motivation, arc).

Outline:
{{.outline}}`

// OutlineAgent creates and refines book outlines and character profiles.
type OutlineAgent struct {
	*Agent
	provider provider.Provider
	store    core.ComponentStore
}

// NewOutlineAgent wires the outline role: handler table, keyword fallback,
// text provider and component store.
func NewOutlineAgent(b core.Bus, p provider.Provider, store core.ComponentStore, optFns ...func(o *Options)) *OutlineAgent {
	oa := &OutlineAgent{
		Agent:    New(AgentOutline, b, optFns...),
		provider: p,
		store:    store,
	}
	oa.Handle(KindCreateOutline, oa.createOutline)
	oa.Handle(KindRefineOutline, oa.refineOutline)
	oa.Handle(KindCreateCharacters, oa.createCharacters)
	oa.SetKeywords(outlineKeywords)
	return oa
}

func (oa *OutlineAgent) createOutline(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	prompt, err := util.RenderTemplate(outlinePrompt, task.Content)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := oa.generate(ctx, outlineSystem, prompt)
	if err != nil {
		return nil, err
	}
	if err := oa.store.Save(bookID, ComponentOutline, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save outline: %w", err)
	}
	return map[string]any{"component": ComponentOutline, "outline": art.Text}, nil
}

func (oa *OutlineAgent) refineOutline(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	existing, err := oa.store.Load(bookID, ComponentOutline)
	if err != nil {
		return nil, fmt.Errorf("no outline to refine: %w", err)
	}
	prompt, err := util.RenderTemplate(outlineRefinePrompt, map[string]any{
		"outline":  string(existing),
		"feedback": task.FeedbackText(),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := oa.generate(ctx, outlineSystem, prompt)
	if err != nil {
		return nil, err
	}
	if err := oa.store.Save(bookID, ComponentOutline, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save outline: %w", err)
	}
	return map[string]any{"component": ComponentOutline, "outline": art.Text, "refined": true}, nil
}

func (oa *OutlineAgent) createCharacters(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	outline, err := oa.store.Load(bookID, ComponentOutline)
	if err != nil {
		return nil, fmt.Errorf("outline required for characters: %w", err)
	}
	prompt, err := util.RenderTemplate(charactersPrompt, map[string]any{"outline": string(outline)})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := oa.generate(ctx, outlineSystem, prompt)
	if err != nil {
		return nil, err
	}
	if err := oa.store.Save(bookID, ComponentCharacters, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save characters: %w", err)
	}
	return map[string]any{"component": ComponentCharacters, "characters": art.Text}, nil
}

// generate submits one provider request through the retry executor.
func (oa *OutlineAgent) generate(ctx context.Context, system, prompt string) (provider.Artifact, error) {
	return retry.DoValue(ctx, oa.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return oa.provider.Submit(ctx, provider.Request{System: system, Prompt: prompt})
	})
}
