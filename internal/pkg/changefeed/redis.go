package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pkgredis "github.com/stayknown/core/internal/pkg/redis"
	"go.uber.org/zap"
)

// channelName builds the per-session pub/sub channel for a topic.
func channelName(kind Kind, sessionID string) string {
	return fmt.Sprintf("feed:%s:%s", kind, sessionID)
}

// RedisFeed implements Feed and Publisher on Redis pub/sub channels, one
// channel per (topic, session). Filtering by session therefore happens
// server-side in Redis, not in the relay.
type RedisFeed struct {
	rc     *pkgredis.Client
	logger *zap.Logger
}

// NewRedisFeed wires the feed onto an existing Redis client.
func NewRedisFeed(rc *pkgredis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{rc: rc, logger: logger}
}

// Subscribe opens one topic subscription for a session.
func (f *RedisFeed) Subscribe(ctx context.Context, kind Kind, sessionID string) (Subscription, error) {
	pubsub := f.rc.Subscribe(ctx, channelName(kind, sessionID))
	// Force the SUBSCRIBE round-trip so a dead Redis surfaces here, not as a
	// silently quiet topic.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("changefeed subscribe %s: %w", channelName(kind, sessionID), err)
	}

	sub := &redisSubscription{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		close: func() error {
			return pubsub.Close()
		},
	}

	go func() {
		defer close(sub.events)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := decodeEvent(kind, []byte(msg.Payload))
				if err != nil {
					if f.logger != nil {
						f.logger.Warn("changefeed dropped malformed row",
							zap.String("channel", msg.Channel), zap.Error(err))
					}
					continue
				}
				select {
				case sub.events <- ev:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()

	return sub, nil
}

type redisSubscription struct {
	events chan Event
	done   chan struct{}
	close  func() error
	once   sync.Once
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

// Close is idempotent; the relay's connection scope may release a
// subscription from more than one exit path.
func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.close()
	})
	return err
}

// PublishLocation announces a visit_locations insert.
func (f *RedisFeed) PublishLocation(ctx context.Context, row LocationRow) error {
	return f.publish(ctx, KindLocation, row.SessionID, row)
}

// PublishVisit announces a visits update.
func (f *RedisFeed) PublishVisit(ctx context.Context, row VisitRow) error {
	return f.publish(ctx, KindVisit, row.SessionID, row)
}

// PublishSos announces a sos_episodes change.
func (f *RedisFeed) PublishSos(ctx context.Context, row EpisodeRow) error {
	return f.publish(ctx, KindSos, row.SessionID, row)
}

func (f *RedisFeed) publish(ctx context.Context, kind Kind, sessionID string, row interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("changefeed marshal %s row: %w", kind, err)
	}
	return f.rc.Publish(ctx, channelName(kind, sessionID), string(data))
}
