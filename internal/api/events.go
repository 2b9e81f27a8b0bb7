package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/teamdesk/internal/calendar"
	"github.com/erazemk/teamdesk/internal/model"
)

// EventsHandler handles team calendar endpoints.
type EventsHandler struct {
	Calendar *calendar.Service
}

// eventResponse adds the display fields clients render.
type eventResponse struct {
	model.Event
	DisplayTitle string `json:"display_title"`
	DisplayColor string `json:"display_color"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

type calendarOptions struct {
	Categories      []string          `json:"categories"`
	DefaultCategory string            `json:"default_category"`
	CategoryColors  map[string]string `json:"category_colors"`
	Palette         []string          `json:"palette"`
}

func newEventResponse(e model.Event) eventResponse {
	start, end := calendar.FormRange(e.Start, e.End)
	return eventResponse{
		Event:        e,
		DisplayTitle: calendar.DisplayTitle(e.Title, e.Category),
		DisplayColor: calendar.ResolveColor(e.Color, e.Category),
		StartDate:    start,
		EndDate:      end,
	}
}

func actorFrom(r *http.Request) calendar.Actor {
	claims := GetClaims(r.Context())
	if claims == nil {
		return calendar.Actor{}
	}
	return calendar.Actor{UserID: claims.UserID, Role: claims.Role}
}

// parseDay parses an optional YYYY-MM-DD query value.
func parseDay(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(calendar.DateLayout, v)
	return t, err == nil
}

// List handles GET /api/events. Both bounds are inclusive days.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := parseDay(q.Get("from"))
	if !ok {
		writeError(w, model.Invalid("from", calendar.ErrInvalidDate), "list events")
		return
	}
	to, ok := parseDay(q.Get("to"))
	if !ok {
		writeError(w, model.Invalid("to", calendar.ErrInvalidDate), "list events")
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	events, err := h.Calendar.List(r.Context(), from, to)
	if err != nil {
		writeError(w, err, "list events")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, newEventResponse(e))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Create handles POST /api/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in calendar.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.Calendar.Create(r.Context(), in, actorFrom(r))
	if err != nil {
		writeError(w, err, "create event")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("event created", "user", claims.Username, "event_id", e.ID, "title", e.Title)
	jsonResponse(w, http.StatusCreated, newEventResponse(*e))
}

// Update handles PUT /api/events/{id}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var in calendar.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.Calendar.Update(r.Context(), id, in, actorFrom(r))
	if err != nil {
		writeError(w, err, "update event")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("event updated", "user", claims.Username, "event_id", e.ID)
	jsonResponse(w, http.StatusOK, newEventResponse(*e))
}

// Delete handles DELETE /api/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	e, err := h.Calendar.Delete(r.Context(), id, actorFrom(r))
	if err != nil {
		writeError(w, err, "delete event")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("event deleted", "user", claims.Username, "event_id", e.ID, "title", e.Title)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "event deleted"})
}

// Options handles GET /api/calendar/options.
func (h *EventsHandler) Options(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, calendarOptions{
		Categories:      calendar.Categories,
		DefaultCategory: calendar.DefaultCategory,
		CategoryColors:  calendar.CategoryColors,
		Palette:         calendar.Palette,
	})
}
