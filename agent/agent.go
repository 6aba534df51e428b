package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/logging"
	"github.com/inkmesh/inkmesh/metrics"
	"github.com/inkmesh/inkmesh/retry"
)

var (
	// ErrUnknownTaskKind marks a task whose kind could not be resolved from
	// the explicit field or the keyword table.
	ErrUnknownTaskKind = errors.New("unknown task kind")
	// ErrMissingField marks a task content map lacking a required entry.
	ErrMissingField = errors.New("missing required field")
)

// HandlerFunc executes one task to completion and returns the result content
// for the Result message. A non-nil error marks the record failed and sends
// exactly one Error message to the task's sender.
type HandlerFunc func(ctx context.Context, task core.Message) (map[string]any, error)

// ResultFunc observes a Result or Error message addressed to this agent,
// typically to correlate completions for tasks the agent issued itself. The
// ctx is the loop context, so observers may make outbound calls.
type ResultFunc func(ctx context.Context, msg core.Message)

// Options configures an Agent.
type Options struct {
	// Logger receives dispatch and failure entries. Defaults to NoOp.
	Logger logging.Logger
	// Metrics records task counters when non-nil.
	Metrics *metrics.Metrics
	// Retry wraps provider calls made by handlers. Defaults to retry.New().
	Retry *retry.Executor
	// FeedbackThreshold is the minimum acceptable rating; lower ratings
	// trigger refinement. Default 3 on the 1-5 scale.
	FeedbackThreshold int
	// MaxRefinementDepth caps chained refinement rounds. Default 3.
	MaxRefinementDepth int
	// OnResult, when set, observes Result messages delivered to this agent.
	OnResult ResultFunc
	// OnError, when set, observes Error messages after registry bookkeeping.
	OnError ResultFunc
}

// Agent is a cooperative, single-threaded worker. It exclusively owns its bus
// queue and task registry; the bus is the only state shared with other
// agents. Handlers run to completion before the next message in a drained
// batch is processed, so a slow provider call stalls this agent's queue but
// never another agent's.
type Agent struct {
	id       string
	bus      core.Bus
	registry *core.TaskRegistry
	handlers map[string]HandlerFunc
	keywords KeywordTable
	opts     Options
}

// New constructs an Agent, registers it on the bus and applies options.
func New(id string, b core.Bus, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Logger:             logging.NoOpLogger{},
		FeedbackThreshold:  3,
		MaxRefinementDepth: 3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(func(o *retry.Options) {
			o.Logger = opts.Logger
			o.OnRetry = func(int) { opts.Metrics.ObserveRetry() }
		})
	}
	if opts.FeedbackThreshold == 0 {
		opts.FeedbackThreshold = 3
	}

	b.Register(id)
	return &Agent{
		id:       id,
		bus:      b,
		registry: core.NewTaskRegistry(),
		handlers: make(map[string]HandlerFunc),
		opts:     opts,
	}
}

// ID returns the agent's bus identifier.
func (a *Agent) ID() string { return a.id }

// Registry exposes the agent's task registry for status queries.
func (a *Agent) Registry() *core.TaskRegistry { return a.registry }

// Executor returns the retry executor handlers should wrap provider calls in.
func (a *Agent) Executor() *retry.Executor { return a.opts.Retry }

// Handle registers fn for the given task kind, replacing any previous handler.
func (a *Agent) Handle(kind string, fn HandlerFunc) {
	a.handlers[kind] = fn
}

// SetKeywords installs the ordered keyword table used as a legacy fallback
// when a task arrives without an explicit kind.
func (a *Agent) SetKeywords(t KeywordTable) { a.keywords = t }

// Status returns the record for a task this agent received.
func (a *Agent) Status(taskID string) (core.TaskRecord, error) {
	return a.registry.Get(taskID)
}

// Run is the agent's poll loop: block until messages arrive, process the
// drained batch in FIFO order, repeat. It returns when ctx is cancelled.
// A failing task never aborts the loop.
func (a *Agent) Run(ctx context.Context) error {
	a.opts.Logger.Info("agent started", "agent_id", a.id)
	for {
		msgs, err := a.bus.Receive(ctx, a.id)
		if err != nil {
			a.opts.Logger.Info("agent stopped", "agent_id", a.id)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, msg := range msgs {
			a.dispatch(ctx, msg)
		}
	}
}

// Step drains and processes whatever is currently queued, without blocking.
// Intended for tests and host-driven scheduling.
func (a *Agent) Step(ctx context.Context) {
	for _, msg := range a.bus.Drain(a.id) {
		a.dispatch(ctx, msg)
	}
}

// dispatch routes one message by type. Every failure path is caught here,
// logged with the message id, and converted into at most one Error message
// back to the sender (fault isolation).
func (a *Agent) dispatch(ctx context.Context, msg core.Message) {
	switch msg.Type {
	case core.MessageTypeTask:
		a.handleTask(ctx, msg)
	case core.MessageTypeFeedback:
		a.handleFeedback(msg)
	case core.MessageTypeError:
		a.handleError(ctx, msg)
	case core.MessageTypeResult:
		a.handleResult(ctx, msg)
	default:
		a.opts.Logger.Warn("unhandled message type", "agent_id", a.id, "message_id", msg.ID, "type", string(msg.Type))
	}
}

// handleTask resolves the task kind, runs the handler to completion and
// reports the outcome. The record transitions processing -> completed|failed
// exactly once; get-status never observes a terminated handler as processing.
func (a *Agent) handleTask(ctx context.Context, msg core.Message) {
	kind := msg.Kind
	if kind == "" {
		inferred, ok := a.keywords.Infer(msg.TaskDescription())
		if !ok {
			a.failTask(msg, fmt.Errorf("%w: no kind field and no keyword match", ErrUnknownTaskKind))
			return
		}
		kind = inferred
		msg.Kind = kind
	}

	handler, ok := a.handlers[kind]
	if !ok {
		a.failTask(msg, fmt.Errorf("%w: %q", ErrUnknownTaskKind, kind))
		return
	}

	if err := a.registry.BeginTask(msg); err != nil {
		a.opts.Logger.Warn("duplicate task dropped", "agent_id", a.id, "task_id", msg.ID)
		return
	}

	start := time.Now()
	result, err := a.invoke(ctx, handler, msg)
	if err != nil {
		a.opts.Logger.Error("task failed", "agent_id", a.id, "task_id", msg.ID, "kind", kind, "error", err.Error())
		if ferr := a.registry.Fail(msg.ID, err.Error()); ferr != nil {
			a.opts.Logger.Warn("record transition rejected", "task_id", msg.ID, "error", ferr.Error())
		}
		a.sendError(msg, err)
		a.opts.Metrics.ObserveTask(a.id, string(core.TaskStatusFailed))
		return
	}

	if cerr := a.registry.Complete(msg.ID, result); cerr != nil {
		a.opts.Logger.Warn("record transition rejected", "task_id", msg.ID, "error", cerr.Error())
	}
	a.opts.Logger.Info("task completed", "agent_id", a.id, "task_id", msg.ID, "kind", kind, "duration", time.Since(start))
	a.opts.Metrics.ObserveTask(a.id, string(core.TaskStatusCompleted))

	res := core.NewResult(a.id, msg.Sender, result, msg.ID)
	if bookID := msg.BookID(); bookID != "" {
		res.Metadata[core.MetaBookID] = bookID
	}
	if err := a.bus.Deliver(res); err != nil {
		a.opts.Logger.Error("result delivery failed", "agent_id", a.id, "task_id", msg.ID, "error", err.Error())
		return
	}
	a.opts.Metrics.ObserveDelivery(string(core.MessageTypeResult))
}

// invoke runs the handler, recovering panics into errors so a misbehaving
// handler cannot take down the loop.
func (a *Agent) invoke(ctx context.Context, handler HandlerFunc, msg core.Message) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// failTask records and reports a task that never reached a handler.
func (a *Agent) failTask(msg core.Message, cause error) {
	a.opts.Logger.Error("task rejected", "agent_id", a.id, "task_id", msg.ID, "error", cause.Error())
	if err := a.registry.BeginTask(msg); err == nil {
		_ = a.registry.Fail(msg.ID, cause.Error())
	}
	a.sendError(msg, cause)
	a.opts.Metrics.ObserveTask(a.id, string(core.TaskStatusFailed))
}

// sendError emits exactly one Error message for the task back to its sender.
func (a *Agent) sendError(task core.Message, cause error) {
	errMsg := core.NewError(a.id, task.Sender, cause.Error(), task.ID, nil)
	if bookID := task.BookID(); bookID != "" {
		errMsg.Metadata[core.MetaBookID] = bookID
	}
	if err := a.bus.Deliver(errMsg); err != nil {
		a.opts.Logger.Error("error delivery failed", "agent_id", a.id, "task_id", task.ID, "error", err.Error())
		return
	}
	a.opts.Metrics.ObserveDelivery(string(core.MessageTypeError))
}

// handleResult settles a tracked task this agent issued to a peer, then hands
// the message to the host hook.
func (a *Agent) handleResult(ctx context.Context, msg core.Message) {
	if msg.ParentID != "" && a.registry.Has(msg.ParentID) {
		if err := a.registry.Complete(msg.ParentID, msg.Content); err != nil {
			a.opts.Logger.Debug("result for settled task", "agent_id", a.id, "task_id", msg.ParentID)
		}
	}
	if a.opts.OnResult != nil {
		a.opts.OnResult(ctx, msg)
	}
}

// handleError updates the referenced record. This layer does not retry; any
// escalation is the host's concern.
func (a *Agent) handleError(ctx context.Context, msg core.Message) {
	reason, _ := msg.Content[core.ContentError].(string)
	if msg.ParentID != "" && a.registry.Has(msg.ParentID) {
		if err := a.registry.Fail(msg.ParentID, reason); err != nil {
			a.opts.Logger.Debug("error for settled task", "agent_id", a.id, "task_id", msg.ParentID)
		}
	} else {
		a.opts.Logger.Warn("error from peer", "agent_id", a.id, "sender", msg.Sender, "error", reason)
	}
	if a.opts.OnError != nil {
		a.opts.OnError(ctx, msg)
	}
}

// requireString extracts a mandatory string entry from task content.
func requireString(content map[string]any, key string) (string, error) {
	s, ok := content[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return s, nil
}
