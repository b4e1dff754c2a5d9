package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/featureboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
log:
  level: error
database:
  driver: sqlite
  dsn: %q
storage:
  attachments_dir: %q
`, filepath.Join(dir, "board.db"), filepath.Join(dir, "attachments"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, cfg, "user", "create", "--email", "Root@Example.com", "--password", "secret123", "--role", "admin")
	require.NoError(t, err, out)
	assert.Contains(t, out, "root@example.com")

	_, err = run(t, cfg, "user", "create", "--email", "alice@example.com", "--password", "secret123")
	require.NoError(t, err)

	_, err = run(t, cfg, "user", "create", "--email", "bad@example.com", "--password", "123")
	assert.Error(t, err, "short passwords are rejected")

	out, err = run(t, cfg, "--format", "json", "user", "list")
	require.NoError(t, err)
	var users []models.User
	require.NoError(t, json.Unmarshal([]byte(out), &users), out)
	require.Len(t, users, 2)

	out, err = run(t, cfg, "user", "set-role", "alice@example.com", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com is now ADMIN")

	_, err = run(t, cfg, "user", "set-role", "nobody@example.com", "ADMIN")
	assert.Error(t, err)

	_, err = run(t, cfg, "user", "set-role", "alice@example.com", "OWNER")
	assert.Error(t, err)
}

func TestFeaturesReset(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "migrate")
	require.NoError(t, err)
	_, err = run(t, cfg, "user", "create", "--email", "root@example.com", "--password", "secret123", "--role", "ADMIN")
	require.NoError(t, err)
	_, err = run(t, cfg, "user", "create", "--email", "alice@example.com", "--password", "secret123")
	require.NoError(t, err)

	_, err = run(t, cfg, "features", "reset", "--as", "root@example.com")
	assert.ErrorContains(t, err, "--yes")

	out, err := run(t, cfg, "features", "reset", "--as", "alice@example.com", "--yes")
	assert.Error(t, err, "non-admins cannot reset: %s", out)

	out, err = run(t, cfg, "--format", "json", "features", "reset", "--as", "root@example.com", "--yes")
	require.NoError(t, err, out)
	var result struct {
		Features int64 `json:"features"`
		Votes    int64 `json:"votes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Features)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, writeConfig(t), "--format", "xml", "migrate")
	assert.Error(t, err)
}
