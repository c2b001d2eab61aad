// Package token mints signed capability links for the owner side. The link
// itself is the authorization; nothing is stored.
package token

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/capability"
	"github.com/stayknown/core/internal/pkg/response"
)

type Handler struct {
	secret     string
	defaultTTL time.Duration
	now        func() time.Time
}

func NewHandler(secret string, defaultTTL time.Duration) *Handler {
	return &Handler{secret: secret, defaultTTL: defaultTTL, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/live/tokens", authMW)
	g.POST("", h.mint)
}

type mintRequest struct {
	SessionID  string `json:"sid" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds"`
	UID        string `json:"uid"`
	Aud        string `json:"aud"`
}

type mintResponse struct {
	SessionID string `json:"sid"`
	Exp       int64  `json:"exp"`
	Query     string `json:"query"`
	Path      string `json:"path"`
}

// POST /live/tokens
func (h *Handler) mint(c *gin.Context) {
	if h.secret == "" {
		response.InternalError(c, errSecretUnset)
		return
	}

	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "missing_sid")
		return
	}

	ttl := h.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	t := capability.Token{
		SID: req.SessionID,
		Exp: h.now().Add(ttl).Unix(),
		UID: req.UID,
		Aud: req.Aud,
	}
	query := capability.Query(h.secret, t).Encode()

	response.Created(c, mintResponse{
		SessionID: t.SID,
		Exp:       t.Exp,
		Query:     query,
		Path:      "/live?" + query,
	})
}
