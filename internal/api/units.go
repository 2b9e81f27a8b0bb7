package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/store"
	"github.com/erazemk/teamdesk/internal/tracker"
)

// UnitsHandler handles equipment unit and inventory endpoints.
type UnitsHandler struct {
	Tracker *tracker.Service
	Metrics *Metrics
}

var errUnknownTypeFilter = errors.New("unknown equipment type")

// List handles GET /api/units.
func (h *UnitsHandler) List(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ != "" && !model.ValidType(typ) {
		writeError(w, model.Invalid("type", errUnknownTypeFilter), "list units")
		return
	}

	units, err := store.ListUnits(r.Context(), h.Tracker.DB, typ)
	if err != nil {
		writeError(w, err, "list units")
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	jsonResponse(w, http.StatusOK, units)
}

// Create handles POST /api/units.
func (h *UnitsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tracker.AddUnitsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	units, err := h.Tracker.AddUnits(r.Context(), req)
	if err != nil {
		writeError(w, err, "add units")
		return
	}
	h.Metrics.unitAdded(req.Type, len(units))

	claims := GetClaims(r.Context())
	slog.Info("units added", "user", claims.Username, "type", req.Type,
		"model", units[0].Model, "quantity", len(units),
		"first_tag", units[0].Tag, "last_tag", units[len(units)-1].Tag)
	jsonResponse(w, http.StatusCreated, units)
}

// Models handles GET /api/models.
func (h *UnitsHandler) Models(w http.ResponseWriter, r *http.Request) {
	models, err := store.ListModels(r.Context(), h.Tracker.DB)
	if err != nil {
		writeError(w, err, "list models")
		return
	}
	if models == nil {
		models = []model.ModelSummary{}
	}
	jsonResponse(w, http.StatusOK, models)
}

// Inventory handles GET /api/inventory.
func (h *UnitsHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, err, "load inventory")
		return
	}
	jsonResponse(w, http.StatusOK, snap.Inventory())
}
