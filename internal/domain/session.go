package domain

import "time"

const (
	ViewFront = "front"
	ViewSide  = "side"
)

// StoredLandmarkSet is a landmark set as persisted under its session-scoped id.
type StoredLandmarkSet struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	View      string      `json:"view"`
	Set       LandmarkSet `json:"set"`
	CreatedAt time.Time   `json:"created_at"`
}

// ReviewFlag marks a landmark-derived session whose accuracy estimate
// exceeded the review threshold.
type ReviewFlag struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	AccuracyEstimate float64   `json:"accuracy_estimate"`
	Source           Source    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
}

// SessionRecord is what the service knows about a capture session.
type SessionRecord struct {
	SessionID   string                 `json:"session_id"`
	Measurement *NormalizedMeasurement `json:"measurement"`
	Landmarks   []StoredLandmarkSet    `json:"landmarks"`
}
