package generation

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusValidating Status = "VALIDATING"
	StatusRunning    Status = "RUNNING"
	StatusCancelled  Status = "CANCELLED"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusRejected
}

// Run is the caller-owned context of one bulk generation. The orchestrator
// is its only writer; State may be read concurrently.
type Run struct {
	id        uuid.UUID
	cancelled atomic.Bool

	mu        sync.RWMutex
	status    Status
	total     int
	completed int
	percent   int
	operation string
	outcomes  []Outcome
	summary   *Summary
	err       string
	started   time.Time
	finished  time.Time
}

// State is a point-in-time view of a run.
type State struct {
	ID         uuid.UUID  `json:"id"`
	Status     Status     `json:"status"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Percent    int        `json:"percent"`
	Operation  string     `json:"operation"`
	Cancelling bool       `json:"cancelling"`
	Error      string     `json:"error,omitempty"`
	Outcomes   []Outcome  `json:"outcomes"`
	Summary    *Summary   `json:"summary,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRun creates an idle run.
func NewRun() *Run {
	return &Run{id: uuid.New(), status: StatusIdle}
}

// ID returns the run identifier.
func (r *Run) ID() uuid.UUID {
	return r.id
}

// Cancel requests a stop. It is observed between items.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (r *Run) Cancelled() bool {
	return r.cancelled.Load()
}

// Status returns the current status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Outcomes returns a copy of the recorded outcomes.
func (r *Run) Outcomes() []Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Outcome(nil), r.outcomes...)
}

// State returns a copy of the run's progress.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := State{
		ID:         r.id,
		Status:     r.status,
		Total:      r.total,
		Completed:  r.completed,
		Percent:    r.percent,
		Operation:  r.operation,
		Cancelling: r.cancelled.Load() && !r.status.Finished(),
		Error:      r.err,
		Outcomes:   append([]Outcome{}, r.outcomes...),
		Summary:    r.summary,
	}
	if !r.started.IsZero() {
		t := r.started
		s.StartedAt = &t
	}
	if !r.finished.IsZero() {
		t := r.finished
		s.FinishedAt = &t
	}
	return s
}

func (r *Run) validating(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusValidating
	r.total = total
	r.started = time.Now().UTC()
	r.operation = "Validating selection"
}

func (r *Run) reject(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusRejected
	r.err = err.Error()
	r.operation = ""
	r.finished = time.Now().UTC()
}

func (r *Run) running() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusRunning
	r.operation = ""
}

func (r *Run) begin(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operation = operation
}

func (r *Run) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	r.completed = len(r.outcomes)
	if p := percent(r.completed, r.total); p > r.percent {
		r.percent = p
	}
}

func (r *Run) finish(status Status, summary *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.summary = summary
	release(r.outcomes)
	r.operation = ""
	r.finished = time.Now().UTC()
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Floor(float64(done) * 100 / float64(total)))
}
