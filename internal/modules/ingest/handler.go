package ingest

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/response"
)

// Handler exposes the owner-side write API the mobile backend calls. Every
// route requires the service JWT; the viewer surface never touches these.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/visits", authMW)

	g.POST("", h.createVisit)
	g.POST("/:id/locations", h.appendLocation)
	g.POST("/:id/end", h.endVisit)
	g.POST("/:id/sos", h.startSos)
	g.POST("/:id/sos/end", h.endSos)
}

// POST /visits
func (h *Handler) createVisit(c *gin.Context) {
	var dto CreateVisitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid_body")
		return
	}

	visit, err := h.svc.CreateVisit(c.Request.Context(), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, visit)
}

// POST /visits/:id/locations
func (h *Handler) appendLocation(c *gin.Context) {
	var dto AppendLocationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid_body")
		return
	}

	row, err := h.svc.AppendLocation(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, row)
}

// POST /visits/:id/end
func (h *Handler) endVisit(c *gin.Context) {
	var dto EndDTO
	_ = c.ShouldBindJSON(&dto)

	visit, err := h.svc.EndVisit(c.Request.Context(), c.Param("id"), dto.EndedBy)
	if err != nil && !errors.Is(err, ErrVisitEnded) {
		h.writeError(c, err)
		return
	}
	// ending an already-ended visit is a no-op success
	response.OK(c, visit)
}

// POST /visits/:id/sos
func (h *Handler) startSos(c *gin.Context) {
	episode, err := h.svc.StartSos(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, episode)
}

// POST /visits/:id/sos/end
func (h *Handler) endSos(c *gin.Context) {
	var dto EndDTO
	_ = c.ShouldBindJSON(&dto)

	episode, err := h.svc.EndSos(c.Request.Context(), c.Param("id"), dto.EndedBy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, episode)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrVisitNotFound):
		response.NotFound(c)
	case errors.Is(err, ErrVisitEnded):
		response.Conflict(c, "visit_ended")
	case errors.Is(err, ErrNoActiveEpisode):
		response.Conflict(c, "no_active_sos")
	case errors.Is(err, ErrBadCoordinates):
		response.UnprocessableEntity(c, "bad_coordinates")
	default:
		response.InternalError(c, err)
	}
}
