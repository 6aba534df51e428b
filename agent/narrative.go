package agent

import (
	"context"
	"fmt"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/internal/util"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Task kinds owned by the narrative role.
const (
	AgentNarrative = "narrative"

	KindWriteChapter  = "write_chapter"
	KindReviseChapter = "revise_chapter"
)

// narrativeKeywords resolves free-text descriptions. "revise chapter" must
// precede "chapter" so revision requests are not misread as fresh drafts.
var narrativeKeywords = KeywordTable{
	{Pattern: "revise chapter", Kind: KindReviseChapter},
	{Pattern: "rewrite", Kind: KindReviseChapter},
	{Pattern: "write chapter", Kind: KindWriteChapter},
	{Pattern: "chapter", Kind: KindWriteChapter},
}

const narrativeSystem = "You are a novelist. You write vivid, coherent prose that follows the outline faithfully."

const chapterPrompt = `Write chapter {{.chapter}} of the book, following this outline.

Outline:
{{.outline}}

Write complete prose for the chapter only.`

const chapterRevisePrompt = `Revise chapter {{.chapter}} according to the feedback.

Current chapter:
{{.draft}}

Feedback:
{{.feedback}}

Return the full revised chapter.`

// NarrativeAgent drafts and revises chapters.
type NarrativeAgent struct {
	*Agent
	provider provider.Provider
	store    core.ComponentStore
}

// NewNarrativeAgent wires the narrative role.
func NewNarrativeAgent(b core.Bus, p provider.Provider, store core.ComponentStore, optFns ...func(o *Options)) *NarrativeAgent {
	na := &NarrativeAgent{
		Agent:    New(AgentNarrative, b, optFns...),
		provider: p,
		store:    store,
	}
	na.Handle(KindWriteChapter, na.writeChapter)
	na.Handle(KindReviseChapter, na.reviseChapter)
	na.SetKeywords(narrativeKeywords)
	return na
}

// ChapterComponent is the storage key for the nth chapter.
func ChapterComponent(n int) string { return fmt.Sprintf("chapter_%d", n) }

func (na *NarrativeAgent) writeChapter(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	chapter, err := intField(task.Content, "chapter")
	if err != nil {
		return nil, err
	}
	outline, err := na.store.Load(bookID, ComponentOutline)
	if err != nil {
		return nil, fmt.Errorf("outline required to write chapter %d: %w", chapter, err)
	}

	prompt, err := util.RenderTemplate(chapterPrompt, map[string]any{
		"chapter": chapter,
		"outline": string(outline),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := na.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	component := ChapterComponent(chapter)
	if err := na.store.Save(bookID, component, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	return map[string]any{"component": component, "chapter": chapter, "text": art.Text}, nil
}

func (na *NarrativeAgent) reviseChapter(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	chapter, err := intField(task.Content, "chapter")
	if err != nil {
		return nil, err
	}
	component := ChapterComponent(chapter)
	draft, err := na.store.Load(bookID, component)
	if err != nil {
		return nil, fmt.Errorf("no draft for chapter %d: %w", chapter, err)
	}

	prompt, err := util.RenderTemplate(chapterRevisePrompt, map[string]any{
		"chapter":  chapter,
		"draft":    string(draft),
		"feedback": task.FeedbackText(),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	art, err := na.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := na.store.Save(bookID, component, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	return map[string]any{"component": component, "chapter": chapter, "text": art.Text, "revised": true}, nil
}

func (na *NarrativeAgent) generate(ctx context.Context, prompt string) (provider.Artifact, error) {
	return retry.DoValue(ctx, na.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return na.provider.Submit(ctx, provider.Request{System: narrativeSystem, Prompt: prompt})
	})
}

// intField extracts a mandatory integer entry from task content, accepting
// JSON's float64 encoding.
func intField(content map[string]any, key string) (int, error) {
	switch v := content[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
}
