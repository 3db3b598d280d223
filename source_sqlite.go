package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type sqliteSourceDB struct{}

func (s *sqliteSourceDB) Name() string { return "SQLite" }

func (s *sqliteSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	uri, err := sqliteReadOnlyURI(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// ExtractDBName returns the database file name without directory or extension.
func (s *sqliteSourceDB) ExtractDBName(dsn string) (string, error) {
	path := dsn
	if strings.HasPrefix(dsn, "file:") {
		path = strings.TrimPrefix(dsn, "file:")
		if u, err := url.Parse(dsn); err == nil {
			if u.Path != "" {
				path = u.Path
			} else if u.Opaque != "" {
				path = u.Opaque
			}
		}
		if idx := strings.IndexByte(path, '?'); idx >= 0 {
			path = path[:idx]
		}
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if base == "" || base == "." || base == "/" {
		return "sqlite", nil
	}
	return base, nil
}

// ExtractTables reads CREATE TABLE statements as SQLite stored them in
// sqlite_master. Internal sqlite_* tables are skipped.
func (s *sqliteSourceDB) ExtractTables(ctx context.Context, db *sql.DB, _ string) ([]RawTableDDL, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var raws []RawTableDDL
	for rows.Next() {
		var name string
		var ddl sql.NullString
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if !ddl.Valid {
			return nil, fmt.Errorf("table %s has no stored CREATE statement", name)
		}
		raws = append(raws, RawTableDDL{Name: name, DDL: ddl.String})
	}
	return raws, rows.Err()
}

func (s *sqliteSourceDB) IntrospectSourceObjects(ctx context.Context, db *sql.DB, _ string) (*SourceObjects, error) {
	objs := &SourceObjects{}
	if err := collectStringRows(ctx, db, "SELECT name FROM sqlite_master WHERE type = 'view' ORDER BY name", &objs.Views); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}
	if err := collectStringRows(ctx, db, "SELECT name FROM sqlite_master WHERE type = 'trigger' ORDER BY name", &objs.Triggers); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}
	return objs, nil
}

func (s *sqliteSourceDB) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *sqliteSourceDB) Dialect() sourceDialect { return dialectSQLite }

// MaxWorkers is 1: the read-only handle holds a single connection.
func (s *sqliteSourceDB) MaxWorkers() int { return 1 }

func (s *sqliteSourceDB) ValidateTranslation(cfg TranslationConfig) error {
	if cfg.TinyInt1AsBoolean {
		return fmt.Errorf("invalid translation for SQLite source: tinyint1_as_boolean is a MySQL-only option")
	}
	return nil
}

func (s *sqliteSourceDB) SetCharset(string) {}

func sqliteReadOnlyURI(dsn string) (string, error) {
	if dsn == ":memory:" || dsn == "file::memory:" || strings.Contains(dsn, "mode=memory") {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each sql.Open gets a separate DB)")
	}

	if !strings.HasPrefix(dsn, "file:") {
		return "file:" + dsn + "?mode=ro", nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
