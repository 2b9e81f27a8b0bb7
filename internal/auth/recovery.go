package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
)

// DefaultRecoveryTTL is how long a recovery token stays usable.
const DefaultRecoveryTTL = time.Hour

// RecoveryType is the only link type the reset flow accepts.
const RecoveryType = "recovery"

// Reset flow errors.
var (
	ErrInvalidLink      = errors.New("invalid or expired link")
	ErrPasswordMismatch = errors.New("passwords don't match")
	ErrBadTransition    = errors.New("invalid reset state transition")
)

// NewRecoveryToken returns a random token for the user and the hash to store.
func NewRecoveryToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating recovery token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashRecoveryToken(token), nil
}

// HashRecoveryToken returns the stored form of a recovery token.
func HashRecoveryToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CheckRecoveryLink rejects links without a token or of the wrong type
// before anything is looked up.
func CheckRecoveryLink(token, linkType string) error {
	if token == "" || linkType != RecoveryType {
		return ErrInvalidLink
	}
	return nil
}

// UsableRecoveryToken reports whether a stored grant can still be redeemed at now.
func UsableRecoveryToken(t *model.RecoveryToken, now time.Time) bool {
	return t != nil && t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// ValidateNewPassword checks a new password and its confirmation.
func ValidateNewPassword(password, confirm string) error {
	if err := model.ValidatePassword(password); err != nil {
		return model.Invalid("password", err)
	}
	if password != confirm {
		return model.Invalid("confirm", ErrPasswordMismatch)
	}
	return nil
}

// ResetState is a step of the password reset flow.
type ResetState string

// Reset flow states. Invalid and done are terminal.
const (
	StateVerifying ResetState = "verifying"
	StateReady     ResetState = "ready"
	StateInvalid   ResetState = "invalid"
	StateDone      ResetState = "done"
)

// ResetFlow tracks one password reset attempt.
type ResetFlow struct {
	state ResetState
}

// NewResetFlow starts a flow in StateVerifying.
func NewResetFlow() *ResetFlow {
	return &ResetFlow{state: StateVerifying}
}

// State returns the current state.
func (f *ResetFlow) State() ResetState {
	return f.state
}

// Verified records the outcome of link verification.
func (f *ResetFlow) Verified(ok bool) error {
	if f.state != StateVerifying {
		return ErrBadTransition
	}
	if ok {
		f.state = StateReady
	} else {
		f.state = StateInvalid
	}
	return nil
}

// Completed records a successful password change.
func (f *ResetFlow) Completed() error {
	if f.state != StateReady {
		return ErrBadTransition
	}
	f.state = StateDone
	return nil
}
