package stream

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/metrics"
	"github.com/stayknown/core/internal/pkg/response"
)

type Handler struct {
	relay *Relay
}

func NewHandler(relay *Relay) *Handler { return &Handler{relay: relay} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live/stream", h.stream)
}

// GET /live/stream?sid=
//
// The response is a text event stream that stays open until the client
// disconnects. An open stream is not closed when the capability token that
// opened it expires; exp gates only the initial page load.
func (h *Handler) stream(c *gin.Context) {
	sid := c.Query("sid")
	if sid == "" {
		response.BadRequest(c, "missing_sid")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	metrics.OpenStreams.Inc()
	defer metrics.OpenStreams.Dec()

	// Request context is cancelled on transport-level close/abort; that is
	// the only teardown trigger wired here.
	_ = h.relay.Stream(c.Request.Context(), sid, &sseSink{w: c.Writer})
}

// sseSink frames events as SSE "data:" messages on the gin writer.
type sseSink struct {
	w gin.ResponseWriter
}

func (s *sseSink) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.w.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
