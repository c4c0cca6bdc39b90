package domain

import "time"

// PositionFix is one raw reading from the positioning source.
type PositionFix struct {
	Lat        float64   `json:"latitude"`
	Lon        float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      *float64  `json:"speed,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// CurrentPosition is the discovery record kept per user.
type CurrentPosition struct {
	UserID    string    `json:"user_id"`
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Geohash   string    `json:"geohash"`
	Distance  float64   `json:"distance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryPoint is one entry of a session's append-only history log.
type HistoryPoint struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Lat        float64   `json:"latitude"`
	Lon        float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      *float64  `json:"speed,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// LivePosition is what the live transport carries.
type LivePosition struct {
	SessionID string  `json:"session_id"`
	Lat       float64 `json:"latitude"`
	Lon       float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type HistoryQuery struct {
	SessionID string
	Start     time.Time
	End       time.Time
}
