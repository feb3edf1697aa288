// Package migrations holds the PostgreSQL schema for the ledger and the
// runner that applies it.
//
// The runner records one schema_migrations row per applied version, with a
// dirty flag set while a file is running. The column layout resembles
// golang-migrate's, but that tool keeps a single current-version row, so
// the two must not manage the same database.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// FS contains every *.up.sql file, applied in filename order.
//
//go:embed *.sql
var FS embed.FS

// File is one migration.
type File struct {
	Version int64
	Name    string
}

// List returns the migrations in fsys sorted by version.
func List(fsys fs.FS) ([]File, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	var files []File
	seen := make(map[int64]string)
	for _, name := range names {
		ver, err := versionFromFile(name)
		if err != nil {
			return nil, fmt.Errorf("parse version from %s: %w", name, err)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("version %d used by both %s and %s", ver, prev, name)
		}
		seen[ver] = name
		files = append(files, File{Version: ver, Name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// execer is the subset of *pgxpool.Pool the runner needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ execer = (*pgxpool.Pool)(nil)

// Apply runs every migration in fsys not yet recorded as clean in
// schema_migrations. It returns the number applied.
func Apply(ctx context.Context, db *pgxpool.Pool, fsys fs.FS, logger *zap.Logger) (int, error) {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := List(fsys)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, f := range files {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			f.Version,
		).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check %s: %w", f.Name, err)
		}
		if exists {
			logger.Debug("migration already applied", zap.String("file", f.Name))
			continue
		}

		sql, err := fs.ReadFile(fsys, f.Name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if err := apply(ctx, db, f, string(sql)); err != nil {
			return applied, err
		}
		logger.Info("migration applied", zap.String("file", f.Name), zap.Int64("version", f.Version))
		applied++
	}
	return applied, nil
}

// apply marks the version dirty before running it so a crash is visible.
func apply(ctx context.Context, db execer, f File, sql string) error {
	if _, err := db.Exec(ctx,
		`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
		 ON CONFLICT (version) DO UPDATE SET dirty = true`, f.Version,
	); err != nil {
		return fmt.Errorf("mark dirty %s: %w", f.Name, err)
	}
	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply %s: %w", f.Name, err)
	}
	if _, err := db.Exec(ctx,
		`UPDATE schema_migrations SET dirty = false WHERE version = $1`, f.Version,
	); err != nil {
		return fmt.Errorf("mark clean %s: %w", f.Name, err)
	}
	return nil
}

// versionFromFile extracts the leading integer from a migration filename.
// "001_ledger.up.sql" → 1
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("unexpected filename format")
	}
	return strconv.ParseInt(prefix, 10, 64)
}
