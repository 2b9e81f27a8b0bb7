package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
)

// DefaultKeepAlive is how often an idle change stream gets a comment line.
const DefaultKeepAlive = 25 * time.Second

var knownResources = []string{realtime.ResourceUnits, realtime.ResourceLoans, realtime.ResourceEvents}

var errUnknownResource = errors.New("unknown resource")

// ChangesHandler streams committed changes as Server-Sent Events.
type ChangesHandler struct {
	Hub       *realtime.Hub
	KeepAlive time.Duration
}

// parseResources splits ?resource=a,b. Empty means every resource.
func parseResources(v string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !slices.Contains(knownResources, p) {
			return nil, model.Invalid("resource", errUnknownResource)
		}
		out = append(out, p)
	}
	return out, nil
}

// Stream handles GET /api/changes. The first event is "ready"; after it,
// every change is a "change" event carrying the JSON change. A "resync"
// event means the subscription was dropped and the client should reload.
func (h *ChangesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	resources, err := parseResources(r.URL.Query().Get("resource"))
	if err != nil {
		writeError(w, err, "subscribe")
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	changes, cancel := h.Hub.Subscribe(resources...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !h.send(w, rc, "ready", []byte("{}")) {
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case c, ok := <-changes:
			if !ok {
				h.send(w, rc, "resync", []byte("{}"))
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				slog.Error("failed to encode change", "error", err)
				continue
			}
			if !h.send(w, rc, "change", data) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *ChangesHandler) send(w http.ResponseWriter, rc *http.ResponseController, event string, data []byte) bool {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	return rc.Flush() == nil
}
