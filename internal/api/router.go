package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/teamdesk/internal/calendar"
	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
	"github.com/erazemk/teamdesk/internal/tracker"
)

// Options configures NewRouter. The zero value is usable: it gets a private
// hub, no metrics and default limits.
type Options struct {
	// Hub feeds the change stream. Changes, when set, is where services
	// publish (for example a realtime.Bridge wrapping Hub); it defaults to Hub.
	Hub     *realtime.Hub
	Changes realtime.Publisher
	Metrics *Metrics

	HistoryLimit int
	RecoveryTTL  time.Duration
	KeepAlive    time.Duration
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) http.Handler {
	if opts.Hub == nil {
		opts.Hub = realtime.NewHub(realtime.DefaultBuffer)
	}
	if opts.Changes == nil {
		opts.Changes = opts.Hub
	}

	mux := http.NewServeMux()

	trackerSvc := &tracker.Service{DB: db, Changes: opts.Changes, HistoryLimit: opts.HistoryLimit}
	calendarSvc := &calendar.Service{DB: db, Changes: opts.Changes}

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, RecoveryTTL: opts.RecoveryTTL}
	usersHandler := &UsersHandler{DB: db}
	unitsHandler := &UnitsHandler{Tracker: trackerSvc, Metrics: opts.Metrics}
	loansHandler := &LoansHandler{Tracker: trackerSvc, Metrics: opts.Metrics}
	eventsHandler := &EventsHandler{Calendar: calendarSvc}
	changesHandler := &ChangesHandler{Hub: opts.Hub, KeepAlive: opts.KeepAlive}

	authMW := AuthMiddleware(jwtSecret, db)
	streamAuthMW := StreamAuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/reset/verify", authHandler.VerifyReset)
	mux.HandleFunc("POST /api/auth/reset", authHandler.Reset)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /api/auth/recovery", authMW(requireAdmin(http.HandlerFunc(authHandler.IssueRecovery))))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Units: read (all roles), add (manager+).
	mux.Handle("GET /api/units", authMW(http.HandlerFunc(unitsHandler.List)))
	mux.Handle("POST /api/units", authMW(requireManager(http.HandlerFunc(unitsHandler.Create))))
	mux.Handle("GET /api/models", authMW(http.HandlerFunc(unitsHandler.Models)))
	mux.Handle("GET /api/inventory", authMW(http.HandlerFunc(unitsHandler.Inventory)))

	// Loans and history (all roles).
	mux.Handle("GET /api/loans", authMW(http.HandlerFunc(loansHandler.List)))
	mux.Handle("POST /api/loans", authMW(http.HandlerFunc(loansHandler.Create)))
	mux.Handle("POST /api/loans/{id}/return", authMW(http.HandlerFunc(loansHandler.Return)))
	mux.Handle("GET /api/history", authMW(http.HandlerFunc(loansHandler.History)))
	mux.Handle("GET /api/history/export", authMW(http.HandlerFunc(loansHandler.Export)))

	// Calendar (all roles; edits limited to the creator or an admin).
	mux.Handle("GET /api/events", authMW(http.HandlerFunc(eventsHandler.List)))
	mux.Handle("POST /api/events", authMW(http.HandlerFunc(eventsHandler.Create)))
	mux.Handle("PUT /api/events/{id}", authMW(http.HandlerFunc(eventsHandler.Update)))
	mux.Handle("DELETE /api/events/{id}", authMW(http.HandlerFunc(eventsHandler.Delete)))
	mux.Handle("GET /api/calendar/options", authMW(http.HandlerFunc(eventsHandler.Options)))

	// Live changes.
	mux.Handle("GET /api/changes", streamAuthMW(http.HandlerFunc(changesHandler.Stream)))

	if opts.Metrics != nil {
		return opts.Metrics.Middleware(mux)
	}
	return mux
}
