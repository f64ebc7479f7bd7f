package sync

import (
	"time"

	"github.com/driftsync/driftsync/internal/syncerr"
)

// SessionState tracks a sync session through its fixed state graph.
type SessionState uint8

const (
	StateIdle SessionState = iota
	StateComputingDiff
	StateRequestingMetadata
	StateTransferringFiles
	StateResolvingConflicts
	StateApplyingChanges
	StateComplete
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputingDiff:
		return "computing-diff"
	case StateRequestingMetadata:
		return "requesting-metadata"
	case StateTransferringFiles:
		return "transferring-files"
	case StateResolvingConflicts:
		return "resolving-conflicts"
	case StateApplyingChanges:
		return "applying-changes"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var sessionTransitions = map[SessionState][]SessionState{
	StateIdle:               {StateComputingDiff},
	StateComputingDiff:      {StateRequestingMetadata},
	StateRequestingMetadata: {StateTransferringFiles},
	StateTransferringFiles:  {StateResolvingConflicts, StateApplyingChanges, StateComplete},
	StateResolvingConflicts: {StateApplyingChanges, StateComplete},
	StateApplyingChanges:    {StateComplete},
}

// SessionInfo is a point-in-time summary of a session.
type SessionInfo struct {
	SessionID    string       `json:"session_id"`
	ClientID     string       `json:"client_id"`
	StartedAt    time.Time    `json:"started_at"`
	State        SessionState `json:"state"`
	FilesPending int          `json:"files_pending"`
	BytesPending uint64       `json:"bytes_pending"`
	LastError    string       `json:"last_error,omitempty"`
}

// Session is the state machine for one sync exchange. It is not
// goroutine-safe on its own; the sync service serializes access.
type Session struct {
	info           SessionInfo
	lastTransition time.Time
}

// NewSession creates a session in StateIdle.
func NewSession(sessionID, clientID string) *Session {
	return &Session{
		info: SessionInfo{
			SessionID: sessionID,
			ClientID:  clientID,
			State:     StateIdle,
		},
		lastTransition: time.Now(),
	}
}

func (s *Session) SessionID() string   { return s.info.SessionID }
func (s *Session) ClientID() string    { return s.info.ClientID }
func (s *Session) State() SessionState { return s.info.State }
func (s *Session) Info() SessionInfo   { return s.info }

// LastTransition returns when the state last changed.
func (s *Session) LastTransition() time.Time { return s.lastTransition }

// Start stamps started_at and moves Idle → ComputingDiff.
func (s *Session) Start(filesPending int, bytesPending uint64) error {
	if s.info.State != StateIdle {
		return syncerr.State("session %s already started", s.info.SessionID)
	}
	s.info.StartedAt = time.Now()
	s.info.FilesPending = filesPending
	s.info.BytesPending = bytesPending
	return s.TransitionTo(StateComputingDiff)
}

// TransitionTo moves the session to next. Re-entering the current state is
// a no-op; any illegal transition errors and leaves state unchanged.
func (s *Session) TransitionTo(next SessionState) error {
	if s.info.State == next {
		return nil
	}
	if !s.canTransition(next) {
		return syncerr.State("session %s: illegal transition %s -> %s",
			s.info.SessionID, s.info.State, next)
	}
	s.info.State = next
	s.lastTransition = time.Now()
	if next != StateFailed {
		s.info.LastError = ""
	}
	return nil
}

// MarkFailed records the reason and transitions to Failed.
func (s *Session) MarkFailed(reason string) error {
	s.info.LastError = reason
	return s.TransitionTo(StateFailed)
}

// UpdatePending refreshes the progress counters.
func (s *Session) UpdatePending(filesPending int, bytesPending uint64) {
	s.info.FilesPending = filesPending
	s.info.BytesPending = bytesPending
}

func (s *Session) canTransition(next SessionState) bool {
	if s.info.State.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range sessionTransitions[s.info.State] {
		if allowed == next {
			return true
		}
	}
	return false
}
