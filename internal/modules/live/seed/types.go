package seed

import "time"

// LatestLocation is the newest known position for a visit.
type LatestLocation struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the one-time state a viewer starts from before streaming. The
// three reads behind it are independent, so this is a best-effort current
// snapshot, not a consistent cut.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Latest    *LatestLocation `json:"latest,omitempty"`
	Ended     bool            `json:"ended"`
	SosActive bool            `json:"sos_active"`
}

type seedResponse struct {
	OK bool `json:"ok"`
	Snapshot
}
