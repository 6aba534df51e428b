package workflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/logging"
)

// PhaseStatus is the lifecycle state of a workflow phase.
type PhaseStatus string

const (
	// PhaseStatusPending marks a phase not yet reached.
	PhaseStatusPending PhaseStatus = "pending"
	// PhaseStatusActive marks the single phase currently in progress.
	PhaseStatusActive PhaseStatus = "active"
	// PhaseStatusCompleted marks a finished phase.
	PhaseStatusCompleted PhaseStatus = "completed"
)

// DefaultPhases is the standard book generation sequence.
var DefaultPhases = []string{
	"initialization",
	"outline",
	"writing",
	"review",
	"production",
}

var (
	// ErrBookNotFound is returned when a book id is unknown to the manager.
	ErrBookNotFound = errors.New("book not found")
	// ErrPhaseNotCompleted rejects an advance while the active phase is
	// still in progress.
	ErrPhaseNotCompleted = errors.New("active phase not completed")
	// ErrWorkflowFinished rejects an advance past the terminal phase.
	ErrWorkflowFinished = errors.New("workflow already at terminal phase")
)

// Phase is one named, strictly-sequenced stage of a book's workflow.
type Phase struct {
	Name    string      `json:"name"`
	Status  PhaseStatus `json:"status"`
	Ordinal int         `json:"ordinal"`
}

// Book is the unit of work moving through the workflow. Phases are created at
// initialization and mutated only by the Manager. Invariant: at most one
// phase is active, and a phase activates only after its predecessor completed.
type Book struct {
	ID           string         `json:"book_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CurrentPhase string         `json:"current_phase"`
	Phases       []*Phase       `json:"phases"`
}

// Phase returns the named phase, or nil when unknown.
func (b *Book) Phase(name string) *Phase {
	for _, p := range b.Phases {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Active returns the currently active phase, or nil once the workflow
// finished (or before it started).
func (b *Book) Active() *Phase {
	for _, p := range b.Phases {
		if p.Status == PhaseStatusActive {
			return p
		}
	}
	return nil
}

// Finished reports whether every phase has completed.
func (b *Book) Finished() bool {
	for _, p := range b.Phases {
		if p.Status != PhaseStatusCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can inspect a book without racing the
// manager's mutations.
func (b *Book) Clone() *Book {
	cp := &Book{ID: b.ID, CurrentPhase: b.CurrentPhase}
	if b.Metadata != nil {
		cp.Metadata = make(map[string]any, len(b.Metadata))
		for k, v := range b.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Phases = make([]*Phase, len(b.Phases))
	for i, p := range b.Phases {
		pc := *p
		cp.Phases[i] = &pc
	}
	return cp
}

// Options configures a Manager.
type Options struct {
	// Phases is the ordered phase sequence applied to every new book.
	// Defaults to DefaultPhases.
	Phases []string
	// Logger receives phase transition entries. Defaults to NoOp.
	Logger logging.Logger
}

// Manager owns the phase state machine of every book and is the only
// sanctioned entry point for new work: CreateTask builds a Task message and
// delivers it via the bus.
//
// Books exist only for the process's runtime.
type Manager struct {
	mu     sync.RWMutex
	bus    core.Bus
	books  map[string]*Book
	phases []string
	logger logging.Logger
}

// NewManager constructs a Manager bound to the given bus.
func NewManager(b core.Bus, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Phases: DefaultPhases,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Phases) == 0 {
		opts.Phases = DefaultPhases
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Manager{
		bus:    b,
		books:  make(map[string]*Book),
		phases: append([]string(nil), opts.Phases...),
		logger: opts.Logger,
	}
}

// CreateBook registers a new book with all phases pending except the first,
// which becomes active, and returns its id.
func (m *Manager) CreateBook(metadata map[string]any) string {
	book := &Book{
		ID:       core.NewID(),
		Metadata: metadata,
	}
	for i, name := range m.phases {
		status := PhaseStatusPending
		if i == 0 {
			status = PhaseStatusActive
			book.CurrentPhase = name
		}
		book.Phases = append(book.Phases, &Phase{Name: name, Status: status, Ordinal: i})
	}

	m.mu.Lock()
	m.books[book.ID] = book
	m.mu.Unlock()

	m.logger.Info("book created", "book_id", book.ID, "phase", book.CurrentPhase)
	return book.ID
}

// Get returns a snapshot of the book for the id, or ErrBookNotFound. The
// returned copy is safe to inspect; mutations go through the manager.
func (m *Manager) Get(bookID string) (*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[bookID]
	if !ok {
		return nil, ErrBookNotFound
	}
	return book.Clone(), nil
}

// CompletePhase marks the book's active phase completed without activating
// the next one. Advance performs the activation.
func (m *Manager) CompletePhase(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookID]
	if !ok {
		return ErrBookNotFound
	}
	active := book.Active()
	if active == nil {
		return ErrWorkflowFinished
	}
	active.Status = PhaseStatusCompleted
	m.logger.Info("phase completed", "book_id", bookID, "phase", active.Name)
	return nil
}

// Advance moves the book to its next phase. It is rejected with an explicit
// error (and no state change) unless the current phase is completed; repeated
// calls at the terminal phase return ErrWorkflowFinished and never move past
// it.
func (m *Manager) Advance(bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookID]
	if !ok {
		return ErrBookNotFound
	}

	current := book.Phase(book.CurrentPhase)
	if current == nil {
		return fmt.Errorf("unknown current phase %q", book.CurrentPhase)
	}
	if current.Status == PhaseStatusActive {
		return ErrPhaseNotCompleted
	}
	if current.Ordinal == len(book.Phases)-1 {
		return ErrWorkflowFinished
	}

	next := book.Phases[current.Ordinal+1]
	next.Status = PhaseStatusActive
	book.CurrentPhase = next.Name

	m.logger.Info("phase advanced", "book_id", bookID, "phase", next.Name)
	return nil
}

// CreateTask builds a fresh Task message, delivers it via the bus and returns
// its id for caller-side correlation. This is the only sanctioned way new
// work enters the system.
func (m *Manager) CreateTask(sender, recipient, kind string, content, metadata map[string]any) (string, error) {
	msg := core.NewTask(sender, recipient, kind, content, metadata)
	if err := m.bus.Deliver(msg); err != nil {
		return "", fmt.Errorf("deliver task: %w", err)
	}
	m.logger.Debug("task created", "task_id", msg.ID, "kind", kind, "recipient", recipient)
	return msg.ID, nil
}

// Books returns a snapshot of all known book ids.
func (m *Manager) Books() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.books))
	for id := range m.books {
		ids = append(ids, id)
	}
	return ids
}
