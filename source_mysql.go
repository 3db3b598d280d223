package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

type mysqlSourceDB struct {
	charset string
}

func (m *mysqlSourceDB) Name() string { return "MySQL" }

func (m *mysqlSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	readDSN, err := mysqlDSNWithReadOptions(dsn, m.charset)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", readDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

func (m *mysqlSourceDB) ExtractDBName(dsn string) (string, error) {
	return extractMySQLDBName(dsn)
}

func (m *mysqlSourceDB) ExtractTables(ctx context.Context, db *sql.DB, dbName string) ([]RawTableDDL, error) {
	var names []string
	if err := collectStringRows(ctx, db, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, &names, dbName); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	raws := make([]RawTableDDL, 0, len(names))
	for _, name := range names {
		var table, ddl string
		q := "SHOW CREATE TABLE " + m.QuoteIdentifier(name)
		if err := db.QueryRowContext(ctx, q).Scan(&table, &ddl); err != nil {
			return nil, fmt.Errorf("show create table %s: %w", name, err)
		}
		raws = append(raws, RawTableDDL{Name: name, DDL: ddl})
	}
	return raws, nil
}

func (m *mysqlSourceDB) IntrospectSourceObjects(ctx context.Context, db *sql.DB, dbName string) (*SourceObjects, error) {
	objs := &SourceObjects{}

	if err := collectStringRows(ctx, db, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, &objs.Views, dbName); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT ROUTINE_TYPE, ROUTINE_NAME
		FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_TYPE, ROUTINE_NAME
	`, dbName)
	if err != nil {
		return nil, fmt.Errorf("introspect routines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var routineType, routineName string
		if err := rows.Scan(&routineType, &routineName); err != nil {
			return nil, fmt.Errorf("scan routines: %w", err)
		}
		objs.Routines = append(objs.Routines, fmt.Sprintf("%s %s", strings.ToUpper(routineType), routineName))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routines: %w", err)
	}

	if err := collectStringRows(ctx, db, `
		SELECT TRIGGER_NAME
		FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME
	`, &objs.Triggers, dbName); err != nil {
		return nil, fmt.Errorf("introspect triggers: %w", err)
	}

	if err := collectStringRows(ctx, db, `
		SELECT EVENT_NAME
		FROM INFORMATION_SCHEMA.EVENTS
		WHERE EVENT_SCHEMA = ?
		ORDER BY EVENT_NAME
	`, &objs.Events, dbName); err != nil {
		return nil, fmt.Errorf("introspect events: %w", err)
	}

	return objs, nil
}

func (m *mysqlSourceDB) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *mysqlSourceDB) Dialect() sourceDialect { return dialectMySQL }

func (m *mysqlSourceDB) MaxWorkers() int { return 0 }

func (m *mysqlSourceDB) ValidateTranslation(_ TranslationConfig) error { return nil }

func (m *mysqlSourceDB) SetCharset(charset string) { m.charset = charset }
