package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// ErrInProgress reports that another instance is applying the same
// revision right now. The caller may retry the whole run.
var ErrInProgress = errors.New("migration already in progress")

// revision is one entry of the embedded history, parsed from a filename
// of the form NNNN_name.sql.
type revision struct {
	version  int
	name     string
	filename string
}

// Run applies all unapplied revisions from the embedded FS to the
// database, in ascending version order. Each revision executes inside
// its own transaction together with the recording of its version row,
// so an interrupted run never leaves a half-applied revision. Running
// against an already-migrated database is a no-op.
func Run(ctx context.Context, db *sql.DB) error {
	return runFS(ctx, db, FS)
}

func runFS(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	history, err := loadHistory(fsys)
	if err != nil {
		return fmt.Errorf("load migration history: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("read applied versions: %w", err)
	}

	if err := checkConsistency(history, applied); err != nil {
		return err
	}

	for _, rev := range history {
		if _, ok := applied[rev.version]; ok {
			slog.Debug("revision already applied", "version", rev.version, "name", rev.name)
			continue
		}
		if err := applyRevision(ctx, db, fsys, rev); err != nil {
			return fmt.Errorf("apply revision %04d_%s: %w", rev.version, rev.name, err)
		}
		slog.Info("revision applied", "version", rev.version, "name", rev.name)
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, name FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var name string
		if err := rows.Scan(&version, &name); err != nil {
			return nil, err
		}
		applied[version] = name
	}
	return applied, rows.Err()
}

func loadHistory(fsys fs.FS) ([]revision, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string)
	var history []revision
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		rev, err := parseFilename(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[rev.version]; ok {
			return nil, fmt.Errorf("duplicate version %d: %s and %s", rev.version, prev, rev.filename)
		}
		seen[rev.version] = rev.filename
		history = append(history, rev)
	}

	sort.Slice(history, func(i, j int) bool { return history[i].version < history[j].version })
	return history, nil
}

func parseFilename(filename string) (revision, error) {
	base := strings.TrimSuffix(filename, ".sql")
	idx := strings.Index(base, "_")
	if idx < 1 {
		return revision{}, fmt.Errorf("malformed migration filename %q", filename)
	}
	version, err := strconv.Atoi(base[:idx])
	if err != nil || version < 1 {
		return revision{}, fmt.Errorf("malformed migration version in %q", filename)
	}
	return revision{version: version, name: base[idx+1:], filename: filename}, nil
}

// checkConsistency refuses to proceed when the recorded state does not
// match the history: a recorded version the history does not know, or a
// gap below the highest recorded version. Both indicate the database was
// migrated by a different history than the one this binary carries.
func checkConsistency(history []revision, applied map[int]string) error {
	known := make(map[int]bool, len(history))
	highest := 0
	for _, rev := range history {
		known[rev.version] = true
	}
	for version := range applied {
		if !known[version] {
			return fmt.Errorf("database records unknown revision %d (name %q)", version, applied[version])
		}
		if version > highest {
			highest = version
		}
	}
	for _, rev := range history {
		if rev.version >= highest {
			break
		}
		if _, ok := applied[rev.version]; !ok {
			return fmt.Errorf("database is missing revision %d but has revision %d", rev.version, highest)
		}
	}
	return nil
}

func applyRevision(ctx context.Context, db *sql.DB, fsys fs.FS, rev revision) error {
	content, err := fs.ReadFile(fsys, rev.filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %v", ErrInProgress, err)
		}
		return fmt.Errorf("execute sql: %w", err)
	}

	// The version row commits atomically with the revision's effect. If a
	// concurrent instance got here first, the primary key rejects us.
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", rev.version, rev.name); err != nil {
		if isBusy(err) || isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrInProgress, err)
		}
		return fmt.Errorf("record revision: %w", err)
	}

	return tx.Commit()
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
