package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/teamdesk/internal/store"
)

func TestLevelRouterSplitsByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr))

	logger.Debug("hidden")
	logger.Info("hello", "user", "alice")
	logger.Warn("careful")
	logger.Error("broken")

	assert.Contains(t, stdout.String(), "msg=hello user=alice")
	assert.Contains(t, stdout.String(), "msg=careful")
	assert.NotContains(t, stdout.String(), "broken")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stderr.String(), "msg=broken")
	assert.NotContains(t, stderr.String(), "hello")
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	require.NoError(t, err)
	b, err := generatePassword(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamdesk.sqlite3")

	database, password, err := initDatabase(path, "Admin")
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	user, err := store.GetUserByUsername(ctx, database, "Admin")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "admin", user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))

	_, ok, err := store.GetSetting(ctx, database, "initialized_at")
	require.NoError(t, err)
	assert.True(t, ok)

	var out bytes.Buffer
	printInitResult(&out, path, "Admin", password)
	assert.True(t, strings.Contains(out.String(), "Password: "+password))
}

func TestInitCommandRefusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.sqlite3")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"init", "--db", path, "--env", ""})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "teamdesk dev\n", out.String())
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.sqlite3")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "--db", path, "--env", ""})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Schema version: 4 (dirty: false)\n", out.String())
}
