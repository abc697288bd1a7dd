package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationFiles lists the "*.<direction>.sql" files of dir in the order
// they must run: ascending for up, descending for down.
func MigrationFiles(dir string, direction Direction) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("direction must be %q or %q, got %q", Up, Down, direction)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == Down {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}

// Migrate executes every migration of dir in direction and returns the
// names of the files it ran.
func Migrate(ctx context.Context, db *sql.DB, dir string, direction Direction) ([]string, error) {
	files, err := MigrationFiles(dir, direction)
	if err != nil {
		return nil, err
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return files, nil
}
