package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/teamdesk/internal/export"
	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/store"
	"github.com/erazemk/teamdesk/internal/tracker"
)

// LoansHandler handles loan, return and history endpoints.
type LoansHandler struct {
	Tracker *tracker.Service
	Metrics *Metrics
}

type returnRequest struct {
	UnitID  int64 `json:"unit_id"`
	Confirm bool  `json:"confirm"`
}

// List handles GET /api/loans.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.LoanFilter

	if v := q.Get("unit_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid unit_id")
			return
		}
		f.UnitID = id
	}
	if v := q.Get("open"); v != "" {
		open, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid open")
			return
		}
		f.Open = &open
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid since")
			return
		}
		f.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = limit
	}

	loans, err := store.ListLoans(r.Context(), h.Tracker.DB, f)
	if err != nil {
		writeError(w, err, "list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Create handles POST /api/loans.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tracker.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Tracker.Assign(r.Context(), req)
	if err != nil {
		writeError(w, err, "assign unit")
		return
	}
	h.Metrics.loanCreated()

	claims := GetClaims(r.Context())
	slog.Info("unit assigned", "user", claims.Username, "unit_id", loan.UnitID,
		"loan_id", loan.ID, "employee", loan.EmployeeName)
	jsonResponse(w, http.StatusCreated, tracker.NewAssignResponse(loan))
}

// Return handles POST /api/loans/{id}/return.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Tracker.Return(r.Context(), tracker.ReturnRequest{
		LoanID:    id,
		UnitID:    req.UnitID,
		Confirmed: req.Confirm,
	})
	if err != nil {
		writeError(w, err, "return unit")
		return
	}
	h.Metrics.loanReturned()

	claims := GetClaims(r.Context())
	slog.Info("unit returned", "user", claims.Username, "unit_id", loan.UnitID,
		"loan_id", loan.ID, "employee", loan.EmployeeName)
	jsonResponse(w, http.StatusOK, loan)
}

func historyFilter(r *http.Request) tracker.HistoryFilter {
	q := r.URL.Query()
	return tracker.HistoryFilter{Type: q.Get("type"), Query: q.Get("q")}
}

// History handles GET /api/history.
func (h *LoansHandler) History(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, err, "load history")
		return
	}
	jsonResponse(w, http.StatusOK, snap.History(historyFilter(r)))
}

// Export handles GET /api/history/export.
func (h *LoansHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Tracker.Snapshot(r.Context())
	if err != nil {
		writeError(w, err, "export history")
		return
	}

	// Render fully before writing headers so a failure can still be a 500.
	var buf bytes.Buffer
	if err := export.WriteHistory(&buf, snap.History(historyFilter(r))); err != nil {
		writeError(w, err, "export history")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.HistoryFilename(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write export", "error", err)
	}
}
