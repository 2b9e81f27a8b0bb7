package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
)

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}

// CreateRecoveryToken stores a password recovery grant for userID.
func CreateRecoveryToken(ctx context.Context, db *sql.DB, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO recovery_tokens (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		tokenHash, userID, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating recovery token: %w", err)
	}
	return nil
}

// GetRecoveryToken returns the grant stored under tokenHash, or nil.
func GetRecoveryToken(ctx context.Context, db *sql.DB, tokenHash string) (*model.RecoveryToken, error) {
	return getRecoveryToken(ctx, db, tokenHash)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecoveryToken(ctx context.Context, q queryRower, tokenHash string) (*model.RecoveryToken, error) {
	t := &model.RecoveryToken{}
	err := q.QueryRowContext(ctx,
		`SELECT token_hash, user_id, expires_at, used_at FROM recovery_tokens WHERE token_hash = ?`,
		tokenHash,
	).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.UsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting recovery token: %w", err)
	}
	return t, nil
}

// ConsumeRecoveryToken marks the grant used and sets the user's password hash
// in one transaction. It returns the ID of the user whose password changed.
// The claim is the transaction's first statement, so concurrent redemptions
// queue on the write lock and all but one see ErrTokenUsed.
func ConsumeRecoveryToken(ctx context.Context, db *sql.DB, tokenHash, passwordHash string, now time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx,
		`UPDATE recovery_tokens SET used_at = ?
		 WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
		 RETURNING user_id`,
		now.UTC(), tokenHash, now.UTC(),
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, unusableToken(ctx, tx, tokenHash)
	}
	if err != nil {
		return 0, fmt.Errorf("claiming recovery token: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating user password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return 0, ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing password reset: %w", err)
	}
	return userID, nil
}

// unusableToken explains why a grant could not be claimed.
func unusableToken(ctx context.Context, q queryRower, tokenHash string) error {
	token, err := getRecoveryToken(ctx, q, tokenHash)
	switch {
	case err != nil:
		return err
	case token == nil:
		return ErrTokenNotFound
	case token.UsedAt != nil:
		return ErrTokenUsed
	default:
		return ErrTokenExpired
	}
}
