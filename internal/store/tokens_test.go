package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/teamdesk/internal/db"
	"github.com/erazemk/teamdesk/internal/model"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// Token should not be revoked initially.
	revoked, err := IsTokenRevoked(ctx, database, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	// Revoke the token.
	err = RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	// Now it should be revoked.
	revoked, err = IsTokenRevoked(ctx, database, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	// Different JTI should not be revoked.
	revoked, err = IsTokenRevoked(ctx, database, "test-jti-2")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected different token not to be revoked")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// Revoking the same token twice should not error (INSERT OR IGNORE).
	err := RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("first RevokeToken: %v", err)
	}

	err = RevokeToken(ctx, database, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}
}

func TestConsumeRecoveryToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, _ := CreateUser(ctx, database, "dora", "oldhash", model.RoleUser)
	if err := CreateRecoveryToken(ctx, database, "hash-1", user.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateRecoveryToken: %v", err)
	}

	userID, err := ConsumeRecoveryToken(ctx, database, "hash-1", "newhash", now)
	if err != nil {
		t.Fatalf("ConsumeRecoveryToken: %v", err)
	}
	if userID != user.ID {
		t.Errorf("expected user %d, got %d", user.ID, userID)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}

	token, err := GetRecoveryToken(ctx, database, "hash-1")
	if err != nil {
		t.Fatalf("GetRecoveryToken: %v", err)
	}
	if token == nil || token.UsedAt == nil {
		t.Fatal("expected token to be marked used")
	}

	if _, err := ConsumeRecoveryToken(ctx, database, "hash-1", "again", now); !errors.Is(err, ErrTokenUsed) {
		t.Errorf("expected ErrTokenUsed on reuse, got %v", err)
	}
}

func TestConsumeRecoveryTokenRejects(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, _ := CreateUser(ctx, database, "eve", "oldhash", model.RoleUser)
	CreateRecoveryToken(ctx, database, "expired", user.ID, now.Add(-time.Minute))

	if _, err := ConsumeRecoveryToken(ctx, database, "expired", "x", now); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := ConsumeRecoveryToken(ctx, database, "missing", "x", now); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "oldhash" {
		t.Errorf("password must not change on rejected reset, got %q", got.PasswordHash)
	}
}

func TestConsumeRecoveryTokenConcurrent(t *testing.T) {
	// A file database gets a real connection pool, unlike :memory:.
	database, err := db.Open(filepath.Join(t.TempDir(), "tokens.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	user, _ := CreateUser(ctx, database, "fay", "oldhash", model.RoleUser)
	if err := CreateRecoveryToken(ctx, database, "shared", user.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateRecoveryToken: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ConsumeRecoveryToken(ctx, database, "shared", "newhash", now)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrTokenUsed):
		default:
			t.Errorf("expected nil or ErrTokenUsed, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one redemption, got %d", succeeded)
	}
}
