package stream

import (
	"sync"

	"go.uber.org/zap"
)

// connScope owns every resource acquired for one viewer connection: the
// three feed subscriptions and the keepalive ticker. Everything registered
// here has exactly one release path, taken on normal close, write error and
// client abort alike. A subscription that outlives its connection is the
// bug class this type exists to prevent.
type connScope struct {
	mu       sync.Mutex
	closers  []scopedResource
	released bool
	logger   *zap.Logger
}

type scopedResource struct {
	name  string
	close func() error
}

func newConnScope(logger *zap.Logger) *connScope {
	return &connScope{logger: logger}
}

// acquire registers a resource. If the scope was already released the
// resource is closed immediately instead of being leaked.
func (s *connScope) acquire(name string, close func() error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		s.closeOne(scopedResource{name: name, close: close})
		return
	}
	s.closers = append(s.closers, scopedResource{name: name, close: close})
	s.mu.Unlock()
}

// release closes everything in reverse acquisition order. Idempotent.
func (s *connScope) release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		s.closeOne(closers[i])
	}
}

func (s *connScope) closeOne(r scopedResource) {
	if err := r.close(); err != nil && s.logger != nil {
		s.logger.Warn("stream resource close failed",
			zap.String("resource", r.name), zap.Error(err))
	}
}
