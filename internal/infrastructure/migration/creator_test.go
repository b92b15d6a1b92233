package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add webhook registrations", "add_webhook_registrations"},
		{"Add-Order-Items", "add_order_items"},
		{"CREATE_CREDENTIALS_TABLE", "create_credentials_table"},
		{"add__sync__runs", "add_sync_runs"},
		{"inventory ledger v2", "inventory_ledger_v2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeName(tt.input), "input %q", tt.input)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "Add Webhook Registrations", "callback token storage")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Contains(t, mf.UpPath, "add_webhook_registrations.up.sql")
	assert.Contains(t, mf.DownPath, "add_webhook_registrations.down.sql")

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Add Webhook Registrations")
	assert.Contains(t, string(up), "callback token storage")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "rollback")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "initial schema", "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	names := []string{"add orders", "add credentials", "add sync runs"}
	for _, name := range names {
		_, err := CreateMigration(dir, name, "")
		require.NoError(t, err)
	}

	listed, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Len(t, listed, len(names), "one entry per pair, down files not double counted")
	for _, base := range listed {
		assert.NotContains(t, base, ".sql")
	}
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	listed, err := ListMigrations(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, listed)
}
