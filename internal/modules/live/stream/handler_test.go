package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// syncRecorder makes the recorder body readable while the handler goroutine
// is still writing frames.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (s *syncRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResponseRecorder.Write(b)
}

func (s *syncRecorder) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResponseRecorder.Body.String()
}

func streamRouter(feed *fakeFeed, keepalive time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(NewRelay(feed, keepalive, zap.NewNop())).RegisterRoutes(router.Group("/api/v2"))
	return router
}

func TestStreamHandlerMissingSid(t *testing.T) {
	router := streamRouter(newFakeFeed(), time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v2/live/stream", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_sid")
}

func TestStreamHandlerFramesEvents(t *testing.T) {
	feed := newFakeFeed()
	router := streamRouter(feed, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v2/live/stream?sid=s1", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.subs) == 3
	}, "handler did not subscribe")

	feed.pushLocation(51.5, -0.12)
	feed.pushEpisode(nil)
	waitFor(t, func() bool {
		return strings.Count(w.body(), "\n\n") >= 2
	}, "frames not written")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return on disconnect")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	body := w.body()
	assert.Contains(t, body, `data: {"type":"location"`)
	assert.Contains(t, body, `"lat":51.5`)
	assert.Contains(t, body, `data: {"type":"sos","active":true}`)

	// each frame is one data line followed by a blank line
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		assert.NotContains(t, frame, "\n")
	}

	assert.True(t, feed.allClosed())
}

// An open stream outlives the capability link that opened it: exp gates the
// page load and nothing else.
func TestStreamStaysOpenPastLinkExpiry(t *testing.T) {
	feed := newFakeFeed()
	router := streamRouter(feed, time.Hour)

	exp := time.Now().Add(50 * time.Millisecond)
	query := capability.Query("s3cret", capability.Token{SID: "s1", Exp: exp.Unix()}).Encode()
	require.True(t, capability.Verify("s3cret", mustParseQuery(t, query), time.Now()).Valid)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v2/live/stream?"+query, nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.subs) == 3
	}, "handler did not subscribe")

	// let the link expire, then keep streaming
	time.Sleep(time.Until(exp) + 50*time.Millisecond)
	require.False(t, capability.Verify("s3cret", mustParseQuery(t, query), time.Now()).Valid)

	feed.pushLocation(1, 2)
	waitFor(t, func() bool {
		return strings.Contains(w.body(), `"type":"location"`)
	}, "stream went quiet after link expiry")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return on disconnect")
	}
}

func mustParseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	params, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return params
}
