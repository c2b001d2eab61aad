// Package viewer holds the client-side state machine behind the live page:
// one snapshot seed, then a stream of relay events, reduced into a marker
// position and a headline. The Go code here is what the embedded page script
// mirrors; tests drive the machine directly.
package viewer

import "sync"

// State is the viewer's lifecycle axis. SOS is an orthogonal flag, not a
// state: a visit can end while SOS is still flagged.
type State string

const (
	StateLoading State = "loading"
	StateLive    State = "live"
	StateEnded   State = "ended" // terminal, nothing leaves it
	StateError   State = "error" // absorbing, reachable only from loading
)

// Headline vocabulary. Ended overrides SOS overrides the default.
const (
	HeadlineLoading = "Loading…"
	HeadlineLive    = "StayKnown™ Live Tracking"
	HeadlineSos     = "SOS Active"
	HeadlineEnded   = "Visit ended"
	HeadlineError   = "Unable to load tracking"
)

// Position is the marker location on the map.
type Position struct {
	Lat      float64
	Lng      float64
	Accuracy *float64
}

// Hooks are the reconciler's side effects. Either may be nil.
type Hooks struct {
	MarkerMoved   func(Position)
	StatusChanged func(headline string)
}

// Seed is the initial snapshot handed to the reconciler, mirroring the
// snapshot endpoint response.
type Seed struct {
	Latest    *Position
	Ended     bool
	SosActive bool
}

// Reconciler applies seed and stream events to the viewer state machine.
// Safe for concurrent use; the Follow loop and UI reads may interleave.
type Reconciler struct {
	mu        sync.Mutex
	state     State
	sosActive bool
	marker    *Position
	hooks     Hooks
}

func NewReconciler(hooks Hooks) *Reconciler {
	return &Reconciler{state: StateLoading, hooks: hooks}
}

// ApplySeed moves loading → live/ended and initializes the SOS flag and
// marker. Ignored outside loading.
func (r *Reconciler) ApplySeed(seed Seed) {
	r.mu.Lock()
	if r.state != StateLoading {
		r.mu.Unlock()
		return
	}
	r.sosActive = seed.SosActive
	if seed.Ended {
		r.state = StateEnded
	} else {
		r.state = StateLive
	}
	moved := seed.Latest
	if moved != nil {
		pos := *moved
		r.marker = &pos
	}
	headline := r.headlineLocked()
	r.mu.Unlock()

	r.notifyStatus(headline)
	if moved != nil {
		r.notifyMarker(*moved)
	}
}

// SeedFailed moves loading → error. Ignored outside loading: once the
// snapshot rendered something useful there is no path back to error.
func (r *Reconciler) SeedFailed() {
	r.mu.Lock()
	if r.state != StateLoading {
		r.mu.Unlock()
		return
	}
	r.state = StateError
	headline := r.headlineLocked()
	r.mu.Unlock()

	r.notifyStatus(headline)
}

// ApplyLocation repositions the marker. The lifecycle axis is untouched: a
// sample arriving after the end still moves the marker, but the headline
// stays "Visit ended".
func (r *Reconciler) ApplyLocation(pos Position) {
	r.mu.Lock()
	if r.state != StateLive && r.state != StateEnded {
		r.mu.Unlock()
		return
	}
	p := pos
	r.marker = &p
	r.mu.Unlock()

	r.notifyMarker(pos)
}

// ApplyEnded moves live → ended. Redundant in ended; ignored in loading and
// error.
func (r *Reconciler) ApplyEnded() {
	r.mu.Lock()
	if r.state != StateLive {
		r.mu.Unlock()
		return
	}
	r.state = StateEnded
	headline := r.headlineLocked()
	r.mu.Unlock()

	r.notifyStatus(headline)
}

// ApplySos sets the SOS overlay without touching the lifecycle axis.
func (r *Reconciler) ApplySos(active bool) {
	r.mu.Lock()
	if r.state != StateLive && r.state != StateEnded {
		r.mu.Unlock()
		return
	}
	before := r.headlineLocked()
	r.sosActive = active
	after := r.headlineLocked()
	r.mu.Unlock()

	if before != after {
		r.notifyStatus(after)
	}
}

// TransportError records a stream failure. The connection closes quietly and
// the last known state is kept; the snapshot already rendered something.
func (r *Reconciler) TransportError() {}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SosActive returns the SOS overlay flag.
func (r *Reconciler) SosActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sosActive
}

// Marker returns the current marker position, or nil before the first fix.
func (r *Reconciler) Marker() *Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marker == nil {
		return nil
	}
	pos := *r.marker
	return &pos
}

// Headline returns the status line for the current state.
func (r *Reconciler) Headline() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headlineLocked()
}

func (r *Reconciler) headlineLocked() string {
	switch r.state {
	case StateLoading:
		return HeadlineLoading
	case StateError:
		return HeadlineError
	case StateEnded:
		return HeadlineEnded
	}
	if r.sosActive {
		return HeadlineSos
	}
	return HeadlineLive
}

func (r *Reconciler) notifyStatus(headline string) {
	if r.hooks.StatusChanged != nil {
		r.hooks.StatusChanged(headline)
	}
}

func (r *Reconciler) notifyMarker(pos Position) {
	if r.hooks.MarkerMoved != nil {
		r.hooks.MarkerMoved(pos)
	}
}
