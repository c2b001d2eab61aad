package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func signedParams(t *testing.T, secret string, tok Token) url.Values {
	t.Helper()
	return Query(secret, tok)
}

func TestVerifyAcceptsSignedToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := Token{SID: "abc123", Exp: now.Add(300 * time.Second).Unix()}

	params := signedParams(t, testSecret, tok)
	res := Verify(testSecret, params, now)

	require.True(t, res.Valid)
	assert.Equal(t, "abc123", res.SessionID)
}

func TestVerifyMatchesManualHMAC(t *testing.T) {
	// Recompute the signature by hand from the canonical message so the
	// wire contract cannot drift unnoticed.
	now := time.Unix(1_700_000_000, 0)
	exp := now.Add(300 * time.Second).Unix()
	msg := "sid=abc123&exp=" + strconv.FormatInt(exp, 10) + "&uid=&aud="

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(msg))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	params := url.Values{}
	params.Set("sid", "abc123")
	params.Set("exp", strconv.FormatInt(exp, 10))
	params.Set("sig", sig)

	res := Verify(testSecret, params, now)
	require.True(t, res.Valid)

	// Flip one character of the signature.
	flipped := []byte(sig)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}
	params.Set("sig", string(flipped))
	assert.False(t, Verify(testSecret, params, now).Valid)
}

func TestVerifyIsDeterministic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	params := signedParams(t, testSecret, Token{SID: "abc123", Exp: now.Add(time.Hour).Unix(), UID: "u1", Aud: "viewer"})

	first := Verify(testSecret, params, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Verify(testSecret, params, now))
	}
}

func TestVerifyRejectsFieldPerturbation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	base := signedParams(t, testSecret, Token{SID: "abc123", Exp: now.Add(time.Hour).Unix(), UID: "u1", Aud: "viewer"})
	require.True(t, Verify(testSecret, base, now).Valid)

	for _, field := range []string{"sid", "exp", "uid", "aud", "sig"} {
		t.Run(field, func(t *testing.T) {
			params := url.Values{}
			for k, vs := range base {
				params[k] = append([]string(nil), vs...)
			}
			v := params.Get(field)
			params.Set(field, v[:len(v)-1]+"~")
			assert.False(t, Verify(testSecret, params, now).Valid)
		})
	}
}

func TestVerifyExpNotReformatted(t *testing.T) {
	// "0300" and "300" must not collapse to the same signed message.
	now := time.Unix(100, 0)
	params := url.Values{}
	params.Set("sid", "abc123")
	params.Set("exp", "300")
	params.Set("sig", sign(testSecret, message("abc123", "300", "", "")))
	require.True(t, Verify(testSecret, params, now).Valid)

	params.Set("exp", "0300")
	assert.False(t, Verify(testSecret, params, now).Valid)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	past := signedParams(t, testSecret, Token{SID: "abc123", Exp: now.Add(-time.Second).Unix()})
	assert.False(t, Verify(testSecret, past, now).Valid)

	future := signedParams(t, testSecret, Token{SID: "abc123", Exp: now.Add(time.Second).Unix()})
	assert.True(t, Verify(testSecret, future, now).Valid)
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	valid := signedParams(t, testSecret, Token{SID: "abc123", Exp: now.Add(time.Hour).Unix()})

	for _, field := range []string{"sid", "exp", "sig"} {
		t.Run(field, func(t *testing.T) {
			params := url.Values{}
			for k, vs := range valid {
				params[k] = append([]string(nil), vs...)
			}
			params.Del(field)
			assert.False(t, Verify(testSecret, params, now).Valid)
		})
	}
}

func TestVerifyRejectsBadExp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	params := url.Values{}
	params.Set("sid", "abc123")
	params.Set("exp", "not-a-number")
	params.Set("sig", sign(testSecret, message("abc123", "not-a-number", "", "")))
	assert.False(t, Verify(testSecret, params, now).Valid)
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	params := signedParams(t, "", Token{SID: "abc123", Exp: now.Add(time.Hour).Unix()})
	assert.False(t, Verify("", params, now).Valid)
}
