package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/jwt"
	"github.com/stayknown/core/internal/pkg/response"
)

const (
	// ContextKeySubject carries the authenticated service subject.
	ContextKeySubject = "auth_subject"
)

// Auth returns a middleware that enforces service JWT authentication for the
// owner-side ingest and minting endpoints. Viewer routes never use this; the
// capability link is their only authorization.
func Auth(signer *jwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := signer.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// IsAuthenticated reports whether the request carries a validated subject.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := c.Get(ContextKeySubject)
	return ok
}

// CurrentSubject extracts the authenticated subject from context.
func CurrentSubject(c *gin.Context) string {
	v, ok := c.Get(ContextKeySubject)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		return NormalizeToken(header)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken strips the Bearer prefix and whitespace.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, "Bearer ")
	return strings.TrimSpace(token)
}
