package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/sumup/internal/config"
	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/powerup"
)

const testBoard = `board: {id: b1, name: Sprint}
lists:
  - id: todo
    name: To Do
    cards:
      - {id: A, name: Summary}
      - {id: B, name: Login page}
      - {id: C, name: Signup page}
  - id: done
    name: Done
    cards:
      - {id: D, name: Setup}
`

// createTestConfig writes a board file and a config using sqlite storage so
// that state survives between invocations.
func createTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	boardPath := filepath.Join(dir, "board.yml")
	require.NoError(t, os.WriteFile(boardPath, []byte(testBoard), 0o644))

	cfg := fmt.Sprintf(`storage:
  driver: sqlite
  sqlite:
    path: %s
source:
  kind: local
  board_file: %s
log:
  level: error
`, filepath.Join(dir, "sumup.db"), boardPath)
	path := filepath.Join(dir, "sumup.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{}
	cmd := newRootCmd(c)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	c.teardown()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestFieldsCommands(t *testing.T) {
	cfg := createTestConfig(t)

	out := mustRun(t, "--config", cfg, "fields", "list")
	assert.Contains(t, out, "No fields")

	out = mustRun(t, "--config", cfg, "fields", "add", "Points")
	assert.Contains(t, out, "Added Points")

	out = mustRun(t, "--config", cfg, "fields", "rename", "points", "Story points")
	assert.Contains(t, out, "Renamed Points to Story points")

	out = mustRun(t, "--config", cfg, "fields", "list")
	assert.Contains(t, out, "Story points")

	_, err := runCLI(t, "--config", cfg, "fields", "rm", "Hours")
	assert.Error(t, err)

	out = mustRun(t, "--config", cfg, "fields", "rm", "Story points")
	assert.Contains(t, out, "Deleted Story points")
	out = mustRun(t, "--config", cfg, "fields", "list")
	assert.Contains(t, out, "No fields")
}

func TestValuesAndSum(t *testing.T) {
	cfg := createTestConfig(t)
	mustRun(t, "--config", cfg, "fields", "add", "Points")

	mustRun(t, "--config", cfg, "values", "set", "B", "Points", "5")
	mustRun(t, "--config", cfg, "values", "set", "C", "Points", "3")
	out := mustRun(t, "--config", cfg, "values", "set", "A", "Points", "lots")
	assert.Contains(t, out, "counts as 0")

	out = mustRun(t, "--config", cfg, "values", "get", "B")
	assert.Contains(t, out, "Points: 5\n")
	assert.Contains(t, out, "Updated ", "sqlite records write times")

	out = mustRun(t, "--config", cfg, "values", "get", "D")
	assert.Equal(t, "Points: -\n", out, "a card never written has no write time")

	t.Run("live totals skip the first card", func(t *testing.T) {
		out := mustRun(t, "--config", cfg, "sum", "todo")
		assert.Equal(t, "∑ Points: 8\n", out)
	})

	t.Run("cache", func(t *testing.T) {
		_, err := runCLI(t, "--config", cfg, "sum", "todo", "--cached")
		assert.Error(t, err, "nothing saved yet")

		out := mustRun(t, "--config", cfg, "sum", "todo", "--persist")
		assert.Contains(t, out, "Saved totals of 2 cards")

		out = mustRun(t, "--config", cfg, "sum", "todo", "--cached")
		assert.Equal(t, "∑ Points: 8\n", out)
	})

	t.Run("single card list", func(t *testing.T) {
		out := mustRun(t, "--config", cfg, "sum", "done")
		assert.Equal(t, "∑ Points: 0\n", out)
	})

	t.Run("clear value", func(t *testing.T) {
		mustRun(t, "--config", cfg, "values", "set", "C", "Points", "")
		out := mustRun(t, "--config", cfg, "values", "get", "C")
		assert.Contains(t, out, "Points: -\n")
	})
}

func TestBoardFlag(t *testing.T) {
	cfg := createTestConfig(t)

	_, err := runCLI(t, "--config", cfg, "--board", "other", "fields", "list")
	assert.ErrorContains(t, err, "board other is not in")

	mustRun(t, "--config", cfg, "--board", "b1", "fields", "list")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumup.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: postgres\n"), 0o644))

	_, err := runCLI(t, "--config", path, "fields", "list")
	assert.ErrorContains(t, err, "invalid storage driver")
}

func TestRequestSourceNeedsBoard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumup.yml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  kind: request\nlog:\n  level: error\n"), 0o644))

	_, err := runCLI(t, "--config", path, "fields", "list")
	assert.ErrorIs(t, err, errNoBoard)

	_, err = runCLI(t, "--config", path, "--board", "b1", "sum", "todo")
	assert.ErrorIs(t, err, errNoCardSource)
}

func TestPolicyFor(t *testing.T) {
	cfg := config.Default()
	cfg.Badges.SumColor = string(domain.ColorRed)
	cfg.Badges.ShowFirstCardValues = false

	policy := policyFor(cfg.Badges)

	assert.Equal(t, domain.ColorBlue, policy.ValueColor)
	assert.Equal(t, domain.ColorRed, policy.SumColor)
	assert.False(t, policy.ShowFirstCardValues)
	assert.Equal(t, powerup.DefaultBudget, policy.Budget)
	assert.Equal(t, cfg.Badges.Concurrency, policy.Concurrency)
}
