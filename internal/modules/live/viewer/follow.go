package viewer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// wireEvent is the loose decode of one stream message. Pointer fields let
// the reconciler tell "absent" from zero; a location without well-formed
// coordinates is ignored the way the page script ignores it.
type wireEvent struct {
	Type     string   `json:"type"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
	Active   *bool    `json:"active"`
}

// Follow reads SSE "data:" frames from r and applies them to the
// reconciler until the stream ends or ctx is cancelled. Transport failure
// is the normal end-of-session path: the reconciler keeps its last state
// and Follow returns nil.
func (rec *Reconciler) Follow(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			rec.TransportError()
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
		if line != "" {
			// comment or field we do not use
			continue
		}
		if data.Len() == 0 {
			continue
		}
		rec.applyFrame(data.String())
		data.Reset()
	}

	rec.TransportError()
	return nil
}

func (rec *Reconciler) applyFrame(payload string) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		// malformed frame, ignore
		return
	}

	switch ev.Type {
	case "location":
		if ev.Lat == nil || ev.Lng == nil {
			return
		}
		rec.ApplyLocation(Position{Lat: *ev.Lat, Lng: *ev.Lng, Accuracy: ev.Accuracy})
	case "ended":
		rec.ApplyEnded()
	case "sos":
		if ev.Active == nil {
			return
		}
		rec.ApplySos(*ev.Active)
	case "ka":
		// keepalive, nothing to reconcile
	}
}
