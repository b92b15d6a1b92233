package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const upHeader = `-- Migration: %s
-- Created: %s
-- Description: %s

`

const downHeader = `-- Migration: %s (rollback)
-- Created: %s
-- Description: rollback for %s

`

// MigrationFile describes a generated up/down migration pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration scaffolds an empty up/down migration pair. Versions are
// second-resolution timestamps so files sort in creation order, which is the
// order golang-migrate applies them in.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return nil, fmt.Errorf("migration: failed to create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102150405")
	created := now.Format(time.RFC3339)

	baseName := version + "_" + sanitizeName(name)
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		UpPath:      filepath.Join(migrationsDir, baseName+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, baseName+".down.sql"),
	}

	up := fmt.Sprintf(upHeader, name, created, description)
	if err := os.WriteFile(mf.UpPath, []byte(up), 0644); err != nil {
		return nil, fmt.Errorf("migration: failed to create up migration: %w", err)
	}

	down := fmt.Sprintf(downHeader, name, created, description)
	if err := os.WriteFile(mf.DownPath, []byte(down), 0644); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("migration: failed to create down migration: %w", err)
	}

	return mf, nil
}

// sanitizeName lowercases a migration name and collapses separators, so
// "Add Webhook Registrations" becomes add_webhook_registrations
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + 'a' - 'A')
		case c == ' ' || c == '-' || c == '_':
			s := b.String()
			if len(s) > 0 && s[len(s)-1] != '_' {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the base names of the migration pairs in a
// directory. A missing directory is an empty list, not an error.
func ListMigrations(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("migration: failed to read migrations directory: %w", err)
	}

	migrations := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok {
			migrations = append(migrations, base)
		}
	}
	return migrations, nil
}
