package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SourceDB abstracts the source engines ddlferry reads schemas and rows from.
type SourceDB interface {
	// Name returns a human-readable name for the source ("MySQL", "SQLite").
	Name() string

	// OpenDB opens a database connection with driver-specific options.
	OpenDB(dsn string) (*sql.DB, error)

	// ExtractDBName extracts a logical database name from the DSN.
	ExtractDBName(dsn string) (string, error)

	// ExtractTables returns the CREATE TABLE statement of every base table,
	// ordered by table name.
	ExtractTables(ctx context.Context, db *sql.DB, dbName string) ([]RawTableDDL, error)

	// IntrospectSourceObjects discovers views, routines, triggers that need manual migration.
	IntrospectSourceObjects(ctx context.Context, db *sql.DB, dbName string) (*SourceObjects, error)

	// QuoteIdentifier quotes a source identifier for use in queries.
	QuoteIdentifier(name string) string

	// Dialect selects how the translator reads the extracted DDL.
	Dialect() sourceDialect

	// MaxWorkers returns the maximum number of parallel workers.
	// 0 means use the config value; >0 caps workers to this value.
	MaxWorkers() int

	// ValidateTranslation rejects translation options that make no sense for the source.
	ValidateTranslation(cfg TranslationConfig) error

	// SetCharset sets the character set for the source connection.
	// For MySQL, this is injected into the DSN. For SQLite, this is a no-op.
	SetCharset(charset string)
}

// newSourceDB returns a SourceDB implementation for the given source type.
func newSourceDB(sourceType string) (SourceDB, error) {
	switch sourceType {
	case "mysql":
		return &mysqlSourceDB{}, nil
	case "sqlite":
		return &sqliteSourceDB{}, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q (must be mysql, sqlite or dump)", sourceType)
	}
}

// selectColumnsQuery builds the export query for one table. Only columns that
// receive data in the target are read.
func selectColumnsQuery(src SourceDB, t TranslatedTable) (string, []TranslatedColumn) {
	cols := insertableColumns(t)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = src.QuoteIdentifier(c.SourceName)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), src.QuoteIdentifier(t.SourceName)), cols
}
