package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/teamdesk/internal/auth"
	"github.com/erazemk/teamdesk/internal/calendar"
	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/store"
	"github.com/erazemk/teamdesk/internal/tracker"
)

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(model.RoleManager)(ok)

	tests := []struct {
		name   string
		claims *auth.Claims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"user", &auth.Claims{Role: model.RoleUser}, http.StatusForbidden},
		{"manager", &auth.Claims{Role: model.RoleManager}, http.StatusNoContent},
		{"admin", &auth.Claims{Role: model.RoleAdmin}, http.StatusNoContent},
		{"unknown role", &auth.Claims{Role: "owner"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), claimsKey, tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusTeapot, "short and stout")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/brew", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.Invalid("employee_name", tracker.ErrNameRequired), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", store.ErrUnitUnavailable), http.StatusConflict},
		{store.ErrLoanReturned, http.StatusConflict},
		{store.ErrUsernameTaken, http.StatusConflict},
		{store.ErrLoanNotFound, http.StatusNotFound},
		{store.ErrEventNotFound, http.StatusNotFound},
		{calendar.ErrNotCreator, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err, "do things")
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}
