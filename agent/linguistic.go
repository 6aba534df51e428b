package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/internal/util"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
)

// Task kinds and component keys owned by the linguistic role.
const (
	AgentLinguistic = "linguistic"

	KindPolishChapter   = "polish_chapter"
	KindCheckContinuity = "check_continuity"

	ComponentContinuityReport = "continuity_report"
)

var linguisticKeywords = KeywordTable{
	{Pattern: "continuity", Kind: KindCheckContinuity},
	{Pattern: "polish", Kind: KindPolishChapter},
	{Pattern: "readability", Kind: KindPolishChapter},
}

const linguisticSystem = "You are a line editor. You polish prose for clarity, rhythm and consistency without changing the story."

const polishPrompt = `Polish the following chapter. Fix grammar, tighten prose,
keep the author's voice. Return the full polished chapter.

{{.draft}}`

const continuityPrompt = `Check the following chapters for continuity problems
(names, timeline, setting, plot facts). List each problem with its chapter.

{{.chapters}}`

// LinguisticAgent polishes prose and checks cross-chapter continuity.
type LinguisticAgent struct {
	*Agent
	provider provider.Provider
	store    core.ComponentStore
}

// NewLinguisticAgent wires the linguistic role.
func NewLinguisticAgent(b core.Bus, p provider.Provider, store core.ComponentStore, optFns ...func(o *Options)) *LinguisticAgent {
	la := &LinguisticAgent{
		Agent:    New(AgentLinguistic, b, optFns...),
		provider: p,
		store:    store,
	}
	la.Handle(KindPolishChapter, la.polishChapter)
	la.Handle(KindCheckContinuity, la.checkContinuity)
	la.SetKeywords(linguisticKeywords)
	return la
}

func (la *LinguisticAgent) polishChapter(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	chapter, err := intField(task.Content, "chapter")
	if err != nil {
		return nil, err
	}
	component := ChapterComponent(chapter)
	draft, err := la.store.Load(bookID, component)
	if err != nil {
		return nil, fmt.Errorf("no chapter %d to polish: %w", chapter, err)
	}

	prompt, err := util.RenderTemplate(polishPrompt, map[string]any{"draft": string(draft)})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	art, err := la.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := la.store.Save(bookID, component, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	return map[string]any{"component": component, "chapter": chapter, "text": art.Text, "polished": true}, nil
}

func (la *LinguisticAgent) checkContinuity(ctx context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	keys, err := la.store.List(bookID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	var sb strings.Builder
	for _, key := range keys {
		if !strings.HasPrefix(key, "chapter_") {
			continue
		}
		data, err := la.store.Load(bookID, key)
		if err != nil {
			continue // deleted between List and Load
		}
		fmt.Fprintf(&sb, "=== %s ===\n%s\n\n", key, data)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("no chapters to check")
	}

	prompt, err := util.RenderTemplate(continuityPrompt, map[string]any{"chapters": sb.String()})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	art, err := la.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := la.store.Save(bookID, ComponentContinuityReport, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return map[string]any{"component": ComponentContinuityReport, "report": art.Text}, nil
}

func (la *LinguisticAgent) generate(ctx context.Context, prompt string) (provider.Artifact, error) {
	return retry.DoValue(ctx, la.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return la.provider.Submit(ctx, provider.Request{System: linguisticSystem, Prompt: prompt})
	})
}
