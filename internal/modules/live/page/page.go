// Package page serves the viewer-facing live page. The capability signature
// is checked before anything else happens; an invalid or expired link gets a
// static page and never triggers a seed or stream request.
package page

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/pkg/capability"
)

type Handler struct {
	secret string
	now    func() time.Time
}

func NewHandler(secret string) *Handler {
	return &Handler{secret: secret, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.live)
}

// GET /live?sid=&exp=&uid=&aud=&sig=
func (h *Handler) live(c *gin.Context) {
	result := capability.Verify(h.secret, c.Request.URL.Query(), h.now())
	if !result.Valid {
		// One generic page for expired, forged and malformed links alike.
		c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(invalidLinkPage))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := viewerTemplate.Execute(c.Writer, viewerPageData{SessionID: result.SessionID}); err != nil {
		_ = c.Error(err)
	}
}

type viewerPageData struct {
	SessionID string
}

const invalidLinkPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>StayKnown</title></head>
<body style="background:#000;color:#fff;font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:100vh;margin:0">
<div style="text-align:center;padding:0 24px">
<h1 style="font-size:20px;font-weight:900">Invalid or Expired Link</h1>
<p style="opacity:.6;margin-top:8px">This tracking session is no longer valid.</p>
</div>
</body>
</html>`

// viewerTemplate is the page shell. The inline script is the browser twin of
// the viewer.Reconciler: seed once, then EventSource, ended wins over SOS.
var viewerTemplate = template.Must(template.New("live").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>StayKnown Live</title>
</head>
<body style="background:#000;color:#fff;font-family:sans-serif;margin:0">
<div id="map" style="position:fixed;inset:0"></div>
<div id="headline" style="position:fixed;top:24px;left:50%;transform:translateX(-50%);padding:12px 24px;border-radius:9999px;background:rgba(255,255,255,.1);border:1px solid rgba(255,255,255,.2);font-weight:600">Loading…</div>
<script>
(function () {
	var sid = {{.SessionID}};
	var state = "loading";
	var sosActive = false;
	var headline = document.getElementById("headline");

	function render() {
		if (state === "error") { headline.textContent = "Unable to load tracking"; return; }
		if (state === "loading") { headline.textContent = "Loading…"; return; }
		if (state === "ended") { headline.textContent = "Visit ended"; return; }
		headline.textContent = sosActive ? "SOS Active" : "StayKnown™ Live Tracking";
	}

	function moveMarker(lat, lng) {
		if (window.__stayknownMap) window.__stayknownMap.move(lat, lng);
	}

	fetch("/api/v2/live/seed?sid=" + encodeURIComponent(sid), { cache: "no-store" })
		.then(function (r) { return r.json(); })
		.then(function (seed) {
			if (!seed || !seed.ok) throw new Error("seed_failed");
			sosActive = Boolean(seed.sos_active);
			state = seed.ended ? "ended" : "live";
			if (seed.latest) moveMarker(seed.latest.lat, seed.latest.lng);
			render();

			var ev = new EventSource("/api/v2/live/stream?sid=" + encodeURIComponent(sid));
			ev.onmessage = function (msg) {
				var data;
				try { data = JSON.parse(msg.data); } catch (e) { return; }
				if (data.type === "location" && typeof data.lat === "number" && typeof data.lng === "number") {
					moveMarker(data.lat, data.lng);
				}
				if (data.type === "sos") { sosActive = Boolean(data.active); }
				if (data.type === "ended") { state = "ended"; }
				render();
			};
			ev.onerror = function () { ev.close(); };
		})
		.catch(function () {
			if (state === "loading") { state = "error"; render(); }
		});
})();
</script>
</body>
</html>`))
