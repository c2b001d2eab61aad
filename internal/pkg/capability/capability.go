// Package capability implements the signed, expiring URL grant that lets an
// anonymous viewer watch a single visit. The token lives entirely in the URL:
// it is reconstructed from query parameters, checked once per request and
// discarded. No server-side state.
package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Token is the value object carried by a capability URL.
type Token struct {
	SID string // session id, required
	Exp int64  // Unix seconds expiry, required
	UID string // optional subject bound into the signature
	Aud string // optional audience tag
}

// Result is the outcome of verifying a capability URL.
type Result struct {
	Valid     bool
	SessionID string
}

// message builds the canonical signing input. The field order and the
// empty-string substitution for absent optionals are part of the wire
// contract; any change silently invalidates every issued link. The exp field
// is signed as the literal string from the URL, never re-formatted, so two
// distinct parameter sets can never collapse to the same message.
func message(sid, exp, uid, aud string) string {
	return fmt.Sprintf("sid=%s&exp=%s&uid=%s&aud=%s", sid, exp, uid, aud)
}

func sign(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign computes the base64url (unpadded) HMAC-SHA256 signature for t.
func Sign(secret string, t Token) string {
	return sign(secret, message(t.SID, strconv.FormatInt(t.Exp, 10), t.UID, t.Aud))
}

// Query returns the full set of URL parameters for a signed link.
func Query(secret string, t Token) url.Values {
	v := url.Values{}
	v.Set("sid", t.SID)
	v.Set("exp", strconv.FormatInt(t.Exp, 10))
	if t.UID != "" {
		v.Set("uid", t.UID)
	}
	if t.Aud != "" {
		v.Set("aud", t.Aud)
	}
	v.Set("sig", Sign(secret, t))
	return v
}

// Verify checks the capability parameters against the server secret at the
// given time. It fails closed: a missing secret rejects everything. No
// distinction is reported between expired and tampered links.
func Verify(secret string, params url.Values, now time.Time) Result {
	if secret == "" {
		return Result{}
	}

	sid := params.Get("sid")
	expStr := params.Get("exp")
	sig := params.Get("sig")
	if sid == "" || expStr == "" || sig == "" {
		return Result{}
	}

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return Result{}
	}
	if exp < now.Unix() {
		return Result{}
	}

	expected := sign(secret, message(sid, expStr, params.Get("uid"), params.Get("aud")))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) != 1 {
		return Result{}
	}

	return Result{Valid: true, SessionID: sid}
}
