package seed

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/metrics"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live/seed", h.seed)
}

// GET /live/seed?sid=
func (h *Handler) seed(c *gin.Context) {
	sid := c.Query("sid")

	snap, err := h.svc.Seed(c.Request.Context(), sid)
	if err != nil {
		if errors.Is(err, ErrMissingSessionID) {
			metrics.SeedRequests.WithLabelValues("missing_sid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_sid"})
			return
		}
		metrics.SeedRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "seed_failed"})
		return
	}

	metrics.SeedRequests.WithLabelValues("ok").Inc()
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, seedResponse{OK: true, Snapshot: *snap})
}
