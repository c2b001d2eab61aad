package stream

import "time"

// Event is one message on the viewer wire. The concrete types below are the
// whole vocabulary; nothing else is ever written to a stream.
type Event interface {
	EventType() string
}

// LocationEvent repositions the viewer's marker.
type LocationEvent struct {
	Type      string    `json:"type"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy"`
	CreatedAt time.Time `json:"created_at"`
}

func (LocationEvent) EventType() string { return "location" }

// EndedEvent marks the visit terminal. It may repeat on redundant updates
// but a stream never walks it back.
type EndedEvent struct {
	Type    string    `json:"type"`
	EndedAt time.Time `json:"ended_at"`
}

func (EndedEvent) EventType() string { return "ended" }

// SosEvent carries the recomputed SOS flag on every observed episode change,
// including no-op transitions. Debouncing is the viewer's call.
type SosEvent struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (SosEvent) EventType() string { return "sos" }

// KeepaliveEvent proves the connection is alive while every topic is quiet.
type KeepaliveEvent struct {
	Type string `json:"type"`
	T    int64  `json:"t"` // Unix milliseconds
}

func (KeepaliveEvent) EventType() string { return "ka" }

func newLocationEvent(lat, lng float64, accuracy *float64, createdAt time.Time) LocationEvent {
	return LocationEvent{Type: "location", Lat: lat, Lng: lng, Accuracy: accuracy, CreatedAt: createdAt}
}

func newEndedEvent(endedAt time.Time) EndedEvent {
	return EndedEvent{Type: "ended", EndedAt: endedAt}
}

func newSosEvent(active bool) SosEvent {
	return SosEvent{Type: "sos", Active: active}
}

func newKeepaliveEvent(now time.Time) KeepaliveEvent {
	return KeepaliveEvent{Type: "ka", T: now.UnixMilli()}
}
