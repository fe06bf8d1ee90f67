package hider

import (
	"sync"
	"time"
)

// Status of one user's sync run.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the run has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Progress is the pollable snapshot of one user's sync run.
//
// Total is the number of projects to evaluate, Current how many have been
// evaluated so far, Matched how many the rules flagged, Hidden how many were
// confirmed hidden upstream. Errors collects per-item failures that did not
// stop the run; Message carries the reason for a terminal error.
type Progress struct {
	Status     Status    `json:"status"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Matched    int       `json:"matched"`
	Hidden     int       `json:"hidden"`
	Errors     []string  `json:"errors,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Tracker owns the per-user progress records mutated by background sync
// runs. All access goes through the mutex; readers get copies, never the
// live record.
type Tracker struct {
	mu    sync.Mutex
	runs  map[string]*Progress
	grace time.Duration
}

// NewTracker creates a tracker. Terminal records linger for grace so a
// final poll still observes the outcome; a non-positive grace keeps them
// until the next run replaces them.
func NewTracker(grace time.Duration) *Tracker {
	return &Tracker{runs: make(map[string]*Progress), grace: grace}
}

// Begin claims the user's slot for a new run. It returns false while a run
// is already processing, which is how a second sync for the same user gets
// rejected instead of racing the first.
func (t *Tracker) Begin(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if run, ok := t.runs[userID]; ok && run.Status == StatusProcessing {
		return false
	}
	t.runs[userID] = &Progress{Status: StatusProcessing, StartedAt: time.Now().UTC()}
	return true
}

// Update applies fn to the user's record while its run is still processing.
func (t *Tracker) Update(userID string, fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if run, ok := t.runs[userID]; ok && run.Status == StatusProcessing {
		fn(run)
	}
}

// Finish moves the run to a terminal status and schedules its cleanup.
func (t *Tracker) Finish(userID string, status Status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[userID]
	if !ok || run.Status != StatusProcessing {
		return
	}
	run.Status = status
	run.Message = message
	run.FinishedAt = time.Now().UTC()

	if t.grace <= 0 {
		return
	}
	time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// a newer run may have replaced the record already
		if t.runs[userID] == run {
			delete(t.runs, userID)
		}
	})
}

// Get returns a copy of the user's progress. Users with no tracked run read
// as not_started.
func (t *Tracker) Get(userID string) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[userID]
	if !ok {
		return Progress{Status: StatusNotStarted}
	}
	snap := *run
	snap.Errors = append([]string(nil), run.Errors...)
	return snap
}
