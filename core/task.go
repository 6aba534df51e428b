package core

import (
	"fmt"
	"sync"
	"time"
)

// TaskStatus is the lifecycle state of a received task.
type TaskStatus string

const (
	// TaskStatusProcessing marks a task currently being handled.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted marks a task whose handler finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed marks a task whose handler returned an error.
	TaskStatusFailed TaskStatus = "failed"
)

// ErrTaskNotFound is returned when a task id is absent from a registry.
var ErrTaskNotFound = fmt.Errorf("task not found")

// TaskRecord tracks one received task through its lifecycle. Records are
// exclusively owned and mutated by the agent that received the task; the
// status moves processing -> completed|failed exactly once and a record is
// never reopened. Refinement creates a brand-new record with its own id.
type TaskRecord struct {
	TaskID      string         `json:"task_id"`
	Kind        string         `json:"kind,omitempty"`
	BookID      string         `json:"book_id,omitempty"`
	Depth       int            `json:"refinement_depth,omitempty"`
	Content     map[string]any `json:"content,omitempty"`
	Status      TaskStatus     `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitzero"`
	Result      map[string]any `json:"result,omitempty"`
	Err         string         `json:"error,omitempty"`
}

// TaskRegistry holds the in-flight and completed task records of a single
// agent, keyed by task (message) id. It is safe for concurrent reads from
// status queries while the owning agent mutates it.
//
// State is process-lifetime only: records do not survive a restart.
type TaskRegistry struct {
	mu      sync.RWMutex
	records map[string]*TaskRecord
}

// NewTaskRegistry constructs an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{records: make(map[string]*TaskRecord)}
}

// Begin records a new task as processing. Beginning an id that already exists
// is rejected so a record can never be reopened.
func (r *TaskRegistry) Begin(taskID, kind string) error {
	return r.BeginTask(Message{ID: taskID, Kind: kind})
}

// BeginTask records the task message as processing, capturing the correlation
// fields (kind, book id, refinement depth) the feedback loop needs later.
// Beginning an id that already exists is rejected so a record can never be
// reopened.
func (r *TaskRegistry) BeginTask(task Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[task.ID]; exists {
		return fmt.Errorf("task %s already tracked", task.ID)
	}
	var content map[string]any
	if len(task.Content) > 0 {
		content = make(map[string]any, len(task.Content))
		for k, v := range task.Content {
			content[k] = v
		}
	}
	r.records[task.ID] = &TaskRecord{
		TaskID:    task.ID,
		Kind:      task.Kind,
		BookID:    task.BookID(),
		Depth:     task.RefinementDepth(),
		Content:   content,
		Status:    TaskStatusProcessing,
		StartedAt: time.Now().UTC(),
	}
	return nil
}

// Complete transitions a processing record to completed with its result.
func (r *TaskRegistry) Complete(taskID string, result map[string]any) error {
	return r.finish(taskID, TaskStatusCompleted, result, "")
}

// Fail transitions a processing record to failed with a reason.
func (r *TaskRegistry) Fail(taskID, reason string) error {
	return r.finish(taskID, TaskStatusFailed, nil, reason)
}

func (r *TaskRegistry) finish(taskID string, status TaskStatus, result map[string]any, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if rec.Status != TaskStatusProcessing {
		return fmt.Errorf("task %s already %s", taskID, rec.Status)
	}
	rec.Status = status
	rec.CompletedAt = time.Now().UTC()
	rec.Result = result
	rec.Err = reason
	return nil
}

// Get returns a copy of the record for taskID, or ErrTaskNotFound.
func (r *TaskRegistry) Get(taskID string) (TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[taskID]
	if !ok {
		return TaskRecord{}, ErrTaskNotFound
	}
	return *rec, nil
}

// Has reports whether taskID is tracked by this registry.
func (r *TaskRegistry) Has(taskID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[taskID]
	return ok
}

// Len returns the number of tracked records.
func (r *TaskRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
