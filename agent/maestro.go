package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/internal/util"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
	"github.com/inkmesh/inkmesh/workflow"
)

// Task kinds and component keys owned by the maestro role.
const (
	AgentMaestro = "maestro"

	KindInitializeBook = "initialize_book"
	KindGenerateReport = "generate_report"

	ComponentBookBrief      = "book_brief"
	ComponentProgressReport = "progress_report"
)

// defaultRating is assumed when an evaluation response carries no parseable
// rating, keeping an unparseable review from triggering refinement.
const defaultRating = 3

var maestroKeywords = KeywordTable{
	{Pattern: "report", Kind: KindGenerateReport},
	{Pattern: "initialize", Kind: KindInitializeBook},
	{Pattern: "new book", Kind: KindInitializeBook},
}

const maestroSystem = "You are the editorial director of a book production studio. You assess produced material strictly and give short, actionable feedback."

const maestroEvaluatePrompt = `Evaluate the following result produced by the {{.agent}} agent.

{{.result}}

Reply with a line "Rating: N" where N is 1-5 (5 is excellent), followed by one
short paragraph of feedback. If the work needs another pass, say so explicitly.`

const maestroInitializePrompt = `Develop a concise concept brief for a new book project.

Title: {{default "Untitled Book" .title}}
Genre: {{default "unspecified" .genre}}
Description: {{default "none provided" .description}}
Audience: {{default "general" .target_audience}}

Cover the premise, central themes, tone and an estimated chapter count.`

// MaestroAgent is the orchestrating role. It initializes book projects and
// reports workflow progress, and it reviews every Result a worker sends it,
// answering with rated Feedback. Low ratings feed the workers' refinement
// loop.
type MaestroAgent struct {
	*Agent
	provider provider.Provider
	manager  *workflow.Manager
	store    core.ComponentStore
}

// NewMaestroAgent wires the maestro role: handler table, keyword fallback,
// text provider, workflow manager and component store. Results delivered to
// this agent are evaluated before any caller-supplied OnResult hook runs.
func NewMaestroAgent(b core.Bus, p provider.Provider, mgr *workflow.Manager, store core.ComponentStore, optFns ...func(o *Options)) *MaestroAgent {
	ma := &MaestroAgent{
		Agent:    New(AgentMaestro, b, optFns...),
		provider: p,
		manager:  mgr,
		store:    store,
	}
	ma.Handle(KindInitializeBook, ma.initializeBook)
	ma.Handle(KindGenerateReport, ma.generateReport)
	ma.SetKeywords(maestroKeywords)

	next := ma.opts.OnResult
	ma.opts.OnResult = func(ctx context.Context, msg core.Message) {
		ma.evaluateResult(ctx, msg)
		if next != nil {
			next(ctx, msg)
		}
	}
	return ma
}

// evaluateResult has the provider review a worker's result and answers with
// one Feedback message carrying the parsed rating. Evaluation is advisory: a
// failed provider call or an unaddressable result is logged and dropped, never
// escalated.
func (ma *MaestroAgent) evaluateResult(ctx context.Context, msg core.Message) {
	if msg.ParentID == "" || msg.Sender == ma.ID() {
		return
	}
	prompt, err := util.RenderTemplate(maestroEvaluatePrompt, map[string]any{
		"agent":  msg.Sender,
		"result": formatContent(msg.Content),
	})
	if err != nil {
		ma.opts.Logger.Error("render evaluation prompt", "agent_id", ma.ID(), "error", err.Error())
		return
	}

	art, err := ma.generate(ctx, prompt)
	if err != nil {
		ma.opts.Logger.Warn("result evaluation failed", "agent_id", ma.ID(), "result_id", msg.ID, "error", err.Error())
		return
	}

	text := strings.TrimSpace(art.Text)
	rating := parseRating(text)
	fb := core.NewFeedback(ma.ID(), msg.Sender, text, msg.ParentID, rating)
	if bookID := msg.BookID(); bookID != "" {
		fb.Metadata[core.MetaBookID] = bookID
	}
	if err := ma.bus.Deliver(fb); err != nil {
		ma.opts.Logger.Error("feedback delivery failed", "agent_id", ma.ID(), "result_id", msg.ID, "error", err.Error())
		return
	}
	ma.opts.Metrics.ObserveDelivery(string(core.MessageTypeFeedback))
	ma.opts.Logger.Info("result evaluated", "agent_id", ma.ID(), "worker", msg.Sender, "task_id", msg.ParentID, "rating", rating)
}

// initializeBook drafts a concept brief, registers the book with the workflow
// manager and persists the brief.
func (ma *MaestroAgent) initializeBook(ctx context.Context, task core.Message) (map[string]any, error) {
	prompt, err := util.RenderTemplate(maestroInitializePrompt, task.Content)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	art, err := ma.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(task.Content)+1)
	for k, v := range task.Content {
		metadata[k] = v
	}
	metadata["concept"] = art.Text
	bookID := ma.manager.CreateBook(metadata)

	if err := ma.store.Save(bookID, ComponentBookBrief, art.Bytes()); err != nil {
		return nil, fmt.Errorf("save brief: %w", err)
	}
	return map[string]any{
		core.MetaBookID: bookID,
		"component":     ComponentBookBrief,
		"concept":       art.Text,
	}, nil
}

// generateReport snapshots a book's workflow state and stored components. No
// provider call is involved; the report is assembled from live engine state.
func (ma *MaestroAgent) generateReport(_ context.Context, task core.Message) (map[string]any, error) {
	bookID := task.BookID()
	if bookID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, core.MetaBookID)
	}
	book, err := ma.manager.Get(bookID)
	if err != nil {
		return nil, fmt.Errorf("report for unknown book: %w", err)
	}

	phases := make(map[string]any, len(book.Phases))
	for _, p := range book.Phases {
		phases[p.Name] = string(p.Status)
	}
	components, err := ma.store.List(bookID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	report := map[string]any{
		core.MetaBookID: bookID,
		"current_phase": book.CurrentPhase,
		"finished":      book.Finished(),
		"phases":        phases,
		"components":    components,
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if err := ma.store.Save(bookID, ComponentProgressReport, []byte(renderReport(book, components))); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// generate submits one provider request through the retry executor.
func (ma *MaestroAgent) generate(ctx context.Context, prompt string) (provider.Artifact, error) {
	return retry.DoValue(ctx, ma.Executor(), func(ctx context.Context) (provider.Artifact, error) {
		return ma.provider.Submit(ctx, provider.Request{System: maestroSystem, Prompt: prompt})
	})
}

// parseRating extracts the 1-5 rating from an evaluation response. The first
// digit in the text decides: in range it is the rating, out of range the
// response is treated as unrated and defaultRating applies.
func parseRating(text string) int {
	for _, r := range text {
		if r >= '1' && r <= '5' {
			return int(r - '0')
		}
		if r >= '0' && r <= '9' {
			break
		}
	}
	return defaultRating
}

// formatContent renders a result content map as sorted "key: value" lines for
// prompt embedding.
func formatContent(content map[string]any) string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", k, content[k])
	}
	return sb.String()
}

// renderReport is the human-readable form of a progress report.
func renderReport(book *workflow.Book, components []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Book %s\nCurrent phase: %s\n\nPhases:\n", book.ID, book.CurrentPhase)
	for _, p := range book.Phases {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", p.Ordinal+1, p.Name, p.Status)
	}
	sb.WriteString("\nComponents:\n")
	if len(components) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range components {
		fmt.Fprintf(&sb, "  - %s\n", c)
	}
	return sb.String()
}
