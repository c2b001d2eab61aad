package stream

import (
	"context"
	"time"

	"github.com/stayknown/core/internal/pkg/changefeed"
	"github.com/stayknown/core/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Sink receives wire events in emission order. A Send error means the
// transport is no longer writable and the relay must tear down.
type Sink interface {
	Send(ev Event) error
}

// Relay fans three per-session change-feed topics plus a keepalive timer
// into one ordered outbound sink. It holds no cross-connection state; every
// Stream call owns its subscriptions privately.
//
// Authorization is not its business: callers run the capability check first.
type Relay struct {
	feed      changefeed.Feed
	keepalive time.Duration
	logger    *zap.Logger
}

func NewRelay(feed changefeed.Feed, keepalive time.Duration, logger *zap.Logger) *Relay {
	if keepalive <= 0 {
		keepalive = 25 * time.Second
	}
	return &Relay{feed: feed, keepalive: keepalive, logger: logger}
}

// Stream relays change events for one session into sink until ctx is
// cancelled (client disconnect, server shutdown) or a write fails. All
// subscriptions and the keepalive ticker are released on every exit path.
//
// A topic whose subscription cannot be opened, or dies mid-stream, simply
// goes quiet; the other topics and the keepalive keep running so the viewer
// can still tell a dead connection from a quiet one.
func (r *Relay) Stream(ctx context.Context, sessionID string, sink Sink) error {
	scope := newConnScope(r.logger)
	defer scope.release()

	locations := r.subscribe(ctx, scope, changefeed.KindLocation, sessionID)
	visits := r.subscribe(ctx, scope, changefeed.KindVisit, sessionID)
	episodes := r.subscribe(ctx, scope, changefeed.KindSos, sessionID)

	ticker := time.NewTicker(r.keepalive)
	scope.acquire("keepalive", func() error {
		ticker.Stop()
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-locations:
			if !ok {
				locations = nil
				continue
			}
			row := ev.Location
			if err := r.emit(sink, newLocationEvent(row.Lat, row.Lng, row.Accuracy, row.CreatedAt)); err != nil {
				return err
			}

		case ev, ok := <-visits:
			if !ok {
				visits = nil
				continue
			}
			// "ended" goes out only when ended_at is non-null, so a stream can
			// repeat it on redundant updates but can never walk it back.
			row := ev.Visit
			if row.EndedAt == nil {
				continue
			}
			if err := r.emit(sink, newEndedEvent(*row.EndedAt)); err != nil {
				return err
			}

		case ev, ok := <-episodes:
			if !ok {
				episodes = nil
				continue
			}
			active := ev.Episode.EndedAt == nil
			if err := r.emit(sink, newSosEvent(active)); err != nil {
				return err
			}

		case now := <-ticker.C:
			if err := r.emit(sink, newKeepaliveEvent(now)); err != nil {
				return err
			}
		}
	}
}

// subscribe opens one topic under the connection scope. Failure leaves the
// topic quiet (nil channel) rather than failing the whole stream.
func (r *Relay) subscribe(ctx context.Context, scope *connScope, kind changefeed.Kind, sessionID string) <-chan changefeed.Event {
	sub, err := r.feed.Subscribe(ctx, kind, sessionID)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("stream topic unavailable",
				zap.String("kind", string(kind)),
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return nil
	}
	scope.acquire(string(kind), sub.Close)
	return sub.Events()
}

func (r *Relay) emit(sink Sink, ev Event) error {
	if err := sink.Send(ev); err != nil {
		return err
	}
	metrics.RelayEvents.WithLabelValues(ev.EventType()).Inc()
	return nil
}
