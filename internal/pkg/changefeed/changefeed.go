// Package changefeed carries row-level change notifications from the ingest
// side to stream relays. Payloads are typed and validated where the feed
// hands them over, so a malformed row is dropped at the boundary instead of
// leaking NaN-shaped data downstream.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind names one of the three per-session topics.
type Kind string

const (
	KindLocation Kind = "location" // visit_locations inserts
	KindVisit    Kind = "visit"    // visits updates
	KindSos      Kind = "sos"      // sos_episodes inserts/updates
)

// LocationRow is one visit_locations insert.
type LocationRow struct {
	SessionID string    `json:"session_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitRow is the post-update image of a visits row.
type VisitRow struct {
	SessionID string     `json:"session_id"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// EpisodeRow is the post-change image of a sos_episodes row.
type EpisodeRow struct {
	SessionID string     `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Event is the discriminated union delivered on a subscription. Exactly one
// of the row pointers matching Kind is set.
type Event struct {
	Kind     Kind         `json:"kind"`
	Location *LocationRow `json:"location,omitempty"`
	Visit    *VisitRow    `json:"visit,omitempty"`
	Episode  *EpisodeRow  `json:"episode,omitempty"`
}

// Subscription is one live topic subscription scoped to a session.
// Events is closed after Close returns or the subscribe context ends.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed is the subscriber half of the change feed. Each call gives an
// independent subscription filtered to the given session.
type Feed interface {
	Subscribe(ctx context.Context, kind Kind, sessionID string) (Subscription, error)
}

// Publisher is the producer half, fed by the ingest writes.
type Publisher interface {
	PublishLocation(ctx context.Context, row LocationRow) error
	PublishVisit(ctx context.Context, row VisitRow) error
	PublishSos(ctx context.Context, row EpisodeRow) error
}

var errMalformedRow = errors.New("changefeed: malformed row")

// decodeEvent parses and validates a raw feed payload for one topic.
func decodeEvent(kind Kind, payload []byte) (Event, error) {
	switch kind {
	case KindLocation:
		var row LocationRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return Event{}, fmt.Errorf("%w: %v", errMalformedRow, err)
		}
		if !validCoordinates(row.Lat, row.Lng) {
			return Event{}, fmt.Errorf("%w: coordinates out of range", errMalformedRow)
		}
		return Event{Kind: kind, Location: &row}, nil

	case KindVisit:
		var row VisitRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return Event{}, fmt.Errorf("%w: %v", errMalformedRow, err)
		}
		return Event{Kind: kind, Visit: &row}, nil

	case KindSos:
		var row EpisodeRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return Event{}, fmt.Errorf("%w: %v", errMalformedRow, err)
		}
		return Event{Kind: kind, Episode: &row}, nil
	}
	return Event{}, fmt.Errorf("%w: unknown kind %q", errMalformedRow, kind)
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
