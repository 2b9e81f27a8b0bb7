package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/teamdesk/internal/auth"
	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/store"
)

// AuthHandler handles authentication and password recovery endpoints.
type AuthHandler struct {
	DB          *sql.DB
	JWTSecret   string
	RecoveryTTL time.Duration
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type recoveryRequest struct {
	UserID int64 `json:"user_id"`
}

type recoveryResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type resetResponse struct {
	State auth.ResetState `json:"state"`
	Error string          `json:"error,omitempty"`
	Field string          `json:"field,omitempty"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Username, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout by revoking the caller's token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt); err != nil {
		writeError(w, err, "log out")
		return
	}

	slog.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, model.Invalid("new_password", err), "change password")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		writeError(w, err, "update password")
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// IssueRecovery handles POST /api/auth/recovery. The raw token is returned
// once to the admin, who passes the link on; only its hash is stored.
func (h *AuthHandler) IssueRecovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, req.UserID)
	if err != nil {
		writeError(w, err, "issue recovery link")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	token, hash, err := auth.NewRecoveryToken()
	if err != nil {
		writeError(w, err, "issue recovery link")
		return
	}

	ttl := h.RecoveryTTL
	if ttl <= 0 {
		ttl = auth.DefaultRecoveryTTL
	}
	expiresAt := time.Now().Add(ttl).UTC()
	if err := store.CreateRecoveryToken(r.Context(), h.DB, hash, user.ID, expiresAt); err != nil {
		writeError(w, err, "issue recovery link")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("recovery link issued", "user", claims.Username, "target_user", user.Username, "expires_at", expiresAt)
	jsonResponse(w, http.StatusCreated, recoveryResponse{Token: token, Type: auth.RecoveryType, ExpiresAt: expiresAt})
}

// verifyLink runs the verifying step of a reset flow.
func (h *AuthHandler) verifyLink(r *http.Request, flow *auth.ResetFlow, token, linkType string) error {
	ok := false
	if auth.CheckRecoveryLink(token, linkType) == nil {
		grant, err := store.GetRecoveryToken(r.Context(), h.DB, auth.HashRecoveryToken(token))
		if err != nil {
			return err
		}
		ok = auth.UsableRecoveryToken(grant, time.Now())
	}
	return flow.Verified(ok)
}

// VerifyReset handles POST /api/auth/reset/verify.
func (h *AuthHandler) VerifyReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flow := auth.NewResetFlow()
	if err := h.verifyLink(r, flow, req.Token, req.Type); err != nil {
		writeError(w, err, "verify link")
		return
	}
	if flow.State() == auth.StateInvalid {
		jsonResponse(w, http.StatusBadRequest, resetResponse{State: flow.State(), Error: auth.ErrInvalidLink.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, resetResponse{State: flow.State()})
}

// Reset handles POST /api/auth/reset. On success every step of the flow has
// run: verifying, ready, done.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flow := auth.NewResetFlow()
	if err := h.verifyLink(r, flow, req.Token, req.Type); err != nil {
		writeError(w, err, "reset password")
		return
	}
	if flow.State() == auth.StateInvalid {
		jsonResponse(w, http.StatusBadRequest, resetResponse{State: flow.State(), Error: auth.ErrInvalidLink.Error()})
		return
	}

	if err := auth.ValidateNewPassword(req.Password, req.Confirm); err != nil {
		var verr *model.ValidationError
		errors.As(err, &verr)
		jsonResponse(w, http.StatusBadRequest, resetResponse{State: flow.State(), Error: verr.Error(), Field: verr.Field})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	userID, err := store.ConsumeRecoveryToken(r.Context(), h.DB, auth.HashRecoveryToken(req.Token), string(hash), time.Now())
	switch {
	case errors.Is(err, store.ErrTokenNotFound), errors.Is(err, store.ErrTokenUsed),
		errors.Is(err, store.ErrTokenExpired), errors.Is(err, store.ErrUserNotFound):
		// Lost a race with another redemption or the user was deleted.
		jsonResponse(w, http.StatusBadRequest, resetResponse{State: auth.StateInvalid, Error: auth.ErrInvalidLink.Error()})
		return
	case err != nil:
		writeError(w, err, "reset password")
		return
	}

	if err := flow.Completed(); err != nil {
		writeError(w, err, "reset password")
		return
	}
	slog.Info("password reset via recovery link", "user_id", userID)
	jsonResponse(w, http.StatusOK, resetResponse{State: flow.State()})
}
