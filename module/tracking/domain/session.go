package domain

import "time"

type SinkID string

const (
	SinkLive            SinkID = "live"
	SinkCurrentPosition SinkID = "current_position"
	SinkHistory         SinkID = "history"
)

// SessionRef identifies who a tracking session belongs to.
type SessionRef struct {
	SessionID string
	UserID    string
}

// SessionState is the mutable per-session pipeline state. It is owned by
// the session's processing goroutine and never shared.
type SessionState struct {
	SessionID        string
	LastAccepted     *PositionFix
	CumulativeMeters float64
	LastEmitPerSink  map[SinkID]time.Time
}

func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID:       sessionID,
		LastEmitPerSink: make(map[SinkID]time.Time),
	}
}

// SessionStatus is the queryable view of a tracking session.
type SessionStatus struct {
	SessionID      string  `json:"session_id"`
	UserID         string  `json:"user_id"`
	State          string  `json:"state"`
	DistanceMeters float64 `json:"distance_meters"`
	StopReason     string  `json:"stop_reason,omitempty"`
}
