// Package build runs the project's external build step and tracks whether
// the last build succeeded.
//
// State is the two-valued machine (Normal, Failed) consulted on every
// request; Orchestrator is the only writer and serializes builds so the last
// completed build always decides the state.
package build

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/cwrap/internal/logging"
)

// Status is the value of the build state machine.
type Status int

const (
	StatusNormal Status = iota
	StatusFailed
)

// String returns the string representation of the Status
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode selects how the build step is invoked.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// Outcome is the result of one invocation of the build step.
type Outcome struct {
	Mode     Mode
	Reason   string
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// Failed reports whether the build step did not exit successfully.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Diagnostic returns the text shown on the error page: the captured standard
// error, or the failure message when nothing was written to stderr.
func (o Outcome) Diagnostic() string {
	if !o.Failed() {
		return ""
	}
	if strings.TrimSpace(o.Stderr) != "" {
		return o.Stderr
	}
	return o.Err.Error()
}

// Snapshot is an immutable view of the build state.
type Snapshot struct {
	Status     Status    `json:"status"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Generation uint64    `json:"generation"`
	Mode       Mode      `json:"mode,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`

	// PagePersisted is set when the error artifact on disk was written for
	// this failure.
	PagePersisted bool `json:"page_persisted,omitempty"`
}

// Failed reports whether the snapshot is in the Failed state.
func (s Snapshot) Failed() bool {
	return s.Status == StatusFailed
}

// State holds the process wide build state. It starts Normal and is never
// persisted.
type State struct {
	mu     sync.RWMutex
	snap   Snapshot
	page   *ErrorPage
	logger logging.Logger
}

// NewState creates a State in the Normal state. page may be nil, in which
// case no error artifact is persisted.
func NewState(page *ErrorPage, logger logging.Logger) *State {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &State{
		snap:   Snapshot{Status: StatusNormal, UpdatedAt: time.Now()},
		page:   page,
		logger: logger.WithComponent("build_state"),
	}
}

// Get returns the current snapshot. It never blocks on a running build.
func (s *State) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Transition feeds a build outcome into the machine and returns the new
// snapshot. On entering Failed the error artifact is written before the new
// state becomes visible, so the gate never serves a stale page for a fresh
// failure.
func (s *State) Transition(ctx context.Context, outcome Outcome) Snapshot {
	next := Snapshot{
		Status:    StatusNormal,
		Mode:      outcome.Mode,
		UpdatedAt: time.Now(),
	}

	if outcome.Failed() {
		next.Status = StatusFailed
		next.Diagnostic = outcome.Diagnostic()

		if s.page != nil {
			if err := s.page.Write(ctx, next.Diagnostic); err != nil {
				s.logger.Error(ctx, err, "Failed to persist error page", "path", s.page.Path())
			} else {
				next.PagePersisted = true
			}
		}
	}

	s.mu.Lock()
	previous := s.snap
	next.Generation = previous.Generation + 1
	s.snap = next
	s.mu.Unlock()

	if previous.Status != next.Status {
		s.logger.Info(ctx, "Build state changed",
			"from", previous.Status.String(),
			"to", next.Status.String(),
			"generation", next.Generation)
	}

	return next
}
