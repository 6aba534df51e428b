package agent

import (
	"errors"
	"strings"

	"github.com/inkmesh/inkmesh/core"
)

// revisionPhrases are the free-text markers that request another pass even
// when no (or a passing) rating is attached.
var revisionPhrases = []string{"refine", "improve", "revise"}

// handleFeedback routes feedback on a task this agent executed. Feedback for
// an unknown task is logged and dropped, never surfaced as an error. Negative
// feedback synthesizes exactly one refinement task of the original kind,
// causally linked via ParentID and addressed back to this agent. The original
// record is left untouched; the refinement gets its own record lifecycle.
func (a *Agent) handleFeedback(msg core.Message) {
	rec, err := a.registry.Get(msg.ParentID)
	if errors.Is(err, core.ErrTaskNotFound) {
		a.opts.Logger.Warn("feedback for unknown task dropped", "agent_id", a.id, "parent_id", msg.ParentID)
		return
	}

	if !a.needsRefinement(msg) {
		a.opts.Logger.Debug("feedback accepted", "agent_id", a.id, "task_id", msg.ParentID)
		return
	}

	if rec.Depth >= a.opts.MaxRefinementDepth {
		a.opts.Logger.Warn("refinement depth cap reached, feedback dropped",
			"agent_id", a.id, "task_id", msg.ParentID, "depth", rec.Depth)
		return
	}

	// Carry the original task's correlating identifiers forward so the
	// refinement handler can re-execute with the same targets.
	content := make(map[string]any, len(rec.Content)+2)
	for k, v := range rec.Content {
		content[k] = v
	}
	content[core.ContentFeedback] = msg.FeedbackText()
	metadata := map[string]any{
		core.MetaRefinementDepth: rec.Depth + 1,
	}
	if rec.BookID != "" {
		content[core.MetaBookID] = rec.BookID
		metadata[core.MetaBookID] = rec.BookID
	}

	task := core.NewTask(a.id, a.id, rec.Kind, content, metadata)
	task.ParentID = msg.ParentID

	if err := a.bus.Deliver(task); err != nil {
		a.opts.Logger.Error("refinement delivery failed", "agent_id", a.id, "parent_id", msg.ParentID, "error", err.Error())
		return
	}
	a.opts.Metrics.ObserveDelivery(string(core.MessageTypeTask))
	a.opts.Metrics.ObserveRefinement()
	a.opts.Logger.Info("refinement task created",
		"agent_id", a.id, "task_id", task.ID, "parent_id", msg.ParentID, "kind", rec.Kind, "depth", rec.Depth+1)
}

// needsRefinement reports whether the feedback asks for another pass: a
// rating below the acceptance threshold, or revision-request phrasing in the
// text.
func (a *Agent) needsRefinement(msg core.Message) bool {
	if rating, ok := msg.Rating(); ok && rating < a.opts.FeedbackThreshold {
		return true
	}
	text := strings.ToLower(msg.FeedbackText())
	for _, phrase := range revisionPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
