package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(signer *jwt.Signer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", Auth(signer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": CurrentSubject(c)})
	})
	return router
}

func doGet(router *gin.Engine, target, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	signer := jwt.NewSigner("secret")
	token, err := signer.Sign("ingest-service", time.Hour)
	require.NoError(t, err)

	w := doGet(authRouter(signer), "/protected", "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"ingest-service"`)
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	signer := jwt.NewSigner("secret")
	token, err := signer.Sign("svc", time.Hour)
	require.NoError(t, err)

	w := doGet(authRouter(signer), "/protected?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	signer := jwt.NewSigner("secret")
	w := doGet(authRouter(signer), "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	other := jwt.NewSigner("other-secret")
	token, err := other.Sign("svc", time.Hour)
	require.NoError(t, err)

	w := doGet(authRouter(jwt.NewSigner("secret")), "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	signer := jwt.NewSigner("secret")
	token, err := signer.Sign("svc", -time.Minute)
	require.NoError(t, err)

	w := doGet(authRouter(signer), "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("Bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("  Bearer abc  "))
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "", NormalizeToken(""))
}
