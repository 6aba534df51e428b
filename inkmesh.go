// Package inkmesh provides a high-level façade over the message bus, agents
// and the workflow state machine enabling rapid construction of multi-agent
// book generation systems. Most applications interact with this package by:
//  1. Creating an InkMesh via New() (optionally overriding the in-memory bus,
//     store, logger or config)
//  2. Registering one or more agents (the built-in content roles or custom ones)
//  3. Creating a book, starting the agents and issuing tasks via CreateTask
//
// The façade is the only surface other subsystems (a web handler, a CLI)
// should call: Register, CreateTask, TaskStatus and the workflow accessors.
// All state is process-lifetime only; nothing survives a restart.
package inkmesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/inkmesh/inkmesh/agent"
	"github.com/inkmesh/inkmesh/bus"
	"github.com/inkmesh/inkmesh/config"
	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/logging"
	"github.com/inkmesh/inkmesh/metrics"
	"github.com/inkmesh/inkmesh/provider/anthropic"
	"github.com/inkmesh/inkmesh/provider/openai"
	"github.com/inkmesh/inkmesh/retry"
	"github.com/inkmesh/inkmesh/storage"
	"github.com/inkmesh/inkmesh/workflow"
)

// Options configures the InkMesh instance.
type Options struct {
	// Config carries the engine knobs (phases, retry, feedback thresholds).
	// Defaults to config.Default().
	Config config.Config

	// Bus is the message transport (defaults to the in-memory bus).
	Bus core.Bus

	// Store persists generated components (defaults to in-memory).
	Store core.ComponentStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics records engine counters when non-nil.
	Metrics *metrics.Metrics
}

// InkMesh is the high-level façade aggregating the bus, the workflow manager
// and the registered agents.
type InkMesh struct {
	opts    Options
	bus     core.Bus
	store   core.ComponentStore
	manager *workflow.Manager
	logger  logging.Logger
	metrics *metrics.Metrics
	mu      sync.RWMutex
	agents  map[string]*agent.Agent
	cancel  context.CancelFunc
	done    sync.WaitGroup
	started bool
}

// New creates a new InkMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *InkMesh {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewInMemoryBus()
	}
	if opts.Store == nil {
		opts.Store = storage.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	manager := workflow.NewManager(opts.Bus, func(o *workflow.Options) {
		o.Phases = opts.Config.Phases
		o.Logger = opts.Logger
	})

	return &InkMesh{
		opts:    opts,
		bus:     opts.Bus,
		store:   opts.Store,
		manager: manager,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		agents:  make(map[string]*agent.Agent),
	}
}

// Bus exposes the underlying message transport.
func (m *InkMesh) Bus() core.Bus { return m.bus }

// Store exposes the component store shared by the built-in roles.
func (m *InkMesh) Store() core.ComponentStore { return m.store }

// Workflow exposes the phase state machine manager.
func (m *InkMesh) Workflow() *workflow.Manager { return m.manager }

// AgentOptions builds the option set the built-in roles should be constructed
// with so they share the façade's logger, metrics and retry/feedback config.
func (m *InkMesh) AgentOptions() func(o *agent.Options) {
	return func(o *agent.Options) {
		o.Logger = m.logger
		o.Metrics = m.metrics
		o.Retry = retry.New(func(ro *retry.Options) {
			ro.MaxRetries = m.opts.Config.Retry.MaxRetries
			ro.BaseDelay = m.opts.Config.Retry.BaseDelay
			ro.Logger = m.logger
			ro.OnRetry = func(int) { m.metrics.ObserveRetry() }
		})
		o.FeedbackThreshold = m.opts.Config.Feedback.Threshold
		o.MaxRefinementDepth = m.opts.Config.Feedback.MaxRefinementDepth
	}
}

// TextProvider constructs the Anthropic text provider with the configured
// model. The SDK reads the API key from the environment.
func (m *InkMesh) TextProvider() *anthropic.Provider {
	return anthropic.New(anthropic.WithModel(m.opts.Config.Providers.TextModel))
}

// ImageProvider constructs the OpenAI image provider with the configured
// model. The SDK reads the API key from the environment.
func (m *InkMesh) ImageProvider() *openai.Provider {
	return openai.New(openai.WithModel(m.opts.Config.Providers.ImageModel))
}

// RegisterAgent adds an agent to the mesh. Agents registered after Start are
// not run automatically.
func (m *InkMesh) RegisterAgent(a *agent.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID()] = a
}

// Register makes agentID a known bus recipient without attaching a worker.
// Hosts use this to claim an id for themselves so they can drain replies.
func (m *InkMesh) Register(agentID string) { m.bus.Register(agentID) }

// Start launches one goroutine per registered agent. It is idempotent.
func (m *InkMesh) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, a := range m.agents {
		m.done.Add(1)
		go func(a *agent.Agent) {
			defer m.done.Done()
			if err := a.Run(runCtx); err != nil {
				m.logger.Error("agent loop terminated", "agent_id", a.ID(), "error", err.Error())
			}
		}(a)
	}
	m.started = true
}

// Stop cancels all agent loops and waits for them to drain their current
// batch. Queued but unprocessed messages are lost (at-most-once delivery).
func (m *InkMesh) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	started := m.started
	m.started = false
	m.cancel = nil
	m.mu.Unlock()
	if !started || cancel == nil {
		return
	}
	cancel()
	m.done.Wait()
}

// CreateBook registers a new book with the workflow manager and returns its id.
func (m *InkMesh) CreateBook(metadata map[string]any) string {
	return m.manager.CreateBook(metadata)
}

// CreateTask builds a Task message, delivers it and returns the task id for
// caller-side correlation. This is the sanctioned entry point for new work.
func (m *InkMesh) CreateTask(sender, recipient, kind string, content, metadata map[string]any) (string, error) {
	id, err := m.manager.CreateTask(sender, recipient, kind, content, metadata)
	if err != nil {
		return "", err
	}
	m.metrics.ObserveDelivery(string(core.MessageTypeTask))
	return id, nil
}

// TaskStatus reports the lifecycle state of a task handled by the named
// agent: processing, completed (with result) or failed (with a
// human-readable message).
func (m *InkMesh) TaskStatus(agentID, taskID string) (core.TaskRecord, error) {
	m.mu.RLock()
	a, ok := m.agents[agentID]
	m.mu.RUnlock()
	if !ok {
		return core.TaskRecord{}, fmt.Errorf("unknown agent %q", agentID)
	}
	return a.Status(taskID)
}
