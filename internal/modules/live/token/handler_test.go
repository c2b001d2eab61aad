package token

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/middleware"
	"github.com/stayknown/core/internal/pkg/capability"
	"github.com/stayknown/core/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func mintRouter(secret string, now time.Time, authMW gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(secret, 30*time.Minute)
	h.now = func() time.Time { return now }

	if authMW == nil {
		authMW = func(c *gin.Context) { c.Next() }
	}
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v2"), authMW)
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/live/tokens", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestMintedLinkVerifies(t *testing.T) {
	now := time.Unix(1756600000, 0)
	router := mintRouter(testSecret, now, nil)

	w := postJSON(router, `{"sid":"sess-1","uid":"owner-7","aud":"sms"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, now.Add(30*time.Minute).Unix(), resp.Exp)
	assert.True(t, strings.HasPrefix(resp.Path, "/live?"))

	params, err := url.ParseQuery(resp.Query)
	require.NoError(t, err)

	// the minted query must pass the verifier it was built for
	result := capability.Verify(testSecret, params, now)
	assert.True(t, result.Valid)
	assert.Equal(t, "sess-1", result.SessionID)

	// and still fail under a different signing secret
	assert.False(t, capability.Verify("other", params, now).Valid)
}

func TestMintCustomTTL(t *testing.T) {
	now := time.Unix(1756600000, 0)
	router := mintRouter(testSecret, now, nil)

	w := postJSON(router, `{"sid":"sess-1","ttl_seconds":60}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp mintResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, now.Add(time.Minute).Unix(), resp.Exp)

	params, _ := url.ParseQuery(resp.Query)
	assert.True(t, capability.Verify(testSecret, params, now).Valid)
	assert.False(t, capability.Verify(testSecret, params, now.Add(2*time.Minute)).Valid)
}

func TestMintMissingSid(t *testing.T) {
	router := mintRouter(testSecret, time.Now(), nil)
	w := postJSON(router, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintWithoutSecret(t *testing.T) {
	router := mintRouter("", time.Now(), nil)
	w := postJSON(router, `{"sid":"sess-1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMintRequiresAuth(t *testing.T) {
	signer := jwt.NewSigner("jwt-secret")
	router := mintRouter(testSecret, time.Now(), middleware.Auth(signer))

	w := postJSON(router, `{"sid":"sess-1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	serviceToken, err := signer.Sign("ingest-service", time.Hour)
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/live/tokens", strings.NewReader(`{"sid":"sess-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusCreated, w2.Code)
}
