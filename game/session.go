package game

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of a session event.
type EventType string

const (
	// EventStart marks the beginning of a session.
	EventStart EventType = "start"
	// EventHeartbeat is a periodic liveness signal emitted while studying.
	EventHeartbeat EventType = "heartbeat"
	// EventPause marks a user-initiated pause.
	EventPause EventType = "pause"
	// EventResume marks the end of a pause.
	EventResume EventType = "resume"
	// EventEnd marks the end of a session.
	EventEnd EventType = "end"
	// EventMessage is a chat message sent from within the session.
	EventMessage EventType = "message"
)

// SessionEvent is a single entry in a session's event log.
// The log is append-only while the session runs and frozen once it ends.
type SessionEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`
	// Type indicates what kind of event this is.
	Type EventType `json:"type"`
	// Payload contains the event data as a JSON string (may be empty).
	Payload string `json:"payload,omitempty"`
	// Timestamp is when the event occurred. Timestamps are non-decreasing
	// within a well-formed log.
	Timestamp time.Time `json:"timestamp"`
}

// Session is one completed study session as submitted for scoring.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// UserID identifies the session owner.
	UserID string `json:"userId"`
	// PlannedMinutes is the duration the user intended to study.
	PlannedMinutes int `json:"plannedMinutes"`
	// ActualMinutes is the duration actually reported.
	ActualMinutes int `json:"actualMinutes"`
	// Efficiency is the self-assessed or measured focus score (0-100).
	Efficiency int `json:"efficiency"`
	// SpaceID is the study space this session took place in (optional).
	SpaceID string `json:"spaceId,omitempty"`
	// EndedAt is when the session ended.
	EndedAt time.Time `json:"endedAt"`
	// Events is the ordered event log.
	Events []SessionEvent `json:"events"`
}

// ErrMissingUser is returned when a session has no owner.
var ErrMissingUser = errors.New("session has no user id")

// NewSession creates a session with a generated ID and an empty event log.
func NewSession(userID string, planned, actual, efficiency int) *Session {
	return &Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		PlannedMinutes: planned,
		ActualMinutes:  actual,
		Efficiency:     efficiency,
		EndedAt:        time.Now().UTC(),
	}
}

// Append adds an event to the log with a generated ID and the current time.
// It returns the session for chaining.
func (s *Session) Append(typ EventType, payload string) *Session {
	s.Events = append(s.Events, SessionEvent{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	return s
}

// AppendAt adds an event with an explicit timestamp. Used by replay and
// simulation code that reconstructs historical logs.
func (s *Session) AppendAt(typ EventType, payload string, ts time.Time) *Session {
	s.Events = append(s.Events, SessionEvent{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   payload,
		Timestamp: ts,
	})
	return s
}

// Validate checks structural requirements that hold for any scoreable
// session. Duration checks are the XP engine's concern, not Validate's:
// a zero-duration session is still auditable.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session has no id")
	}
	if s.UserID == "" {
		return ErrMissingUser
	}
	return nil
}

// LogOrdered reports whether event timestamps are non-decreasing.
// A false result marks the log malformed; the audit engine degrades to an
// advisory no-op on malformed logs rather than failing the pipeline.
func (s *Session) LogOrdered() bool {
	for i := 1; i < len(s.Events); i++ {
		if s.Events[i].Timestamp.Before(s.Events[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// HasEvent reports whether the log contains at least one event of the given type.
func (s *Session) HasEvent(typ EventType) bool {
	for _, e := range s.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Span returns the wall-clock distance between the first and last event,
// or zero for logs with fewer than two events.
func (s *Session) Span() time.Duration {
	if len(s.Events) < 2 {
		return 0
	}
	return s.Events[len(s.Events)-1].Timestamp.Sub(s.Events[0].Timestamp)
}
