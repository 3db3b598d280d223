package main

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSNWithReadOptions rewrites a MySQL DSN for row export: DATETIME values
// scan into time.Time in UTC and the connection uses the given charset.
func mysqlDSNWithReadOptions(baseDSN, charset string) (string, error) {
	cfg, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	if charset != "" {
		if err := cfg.Apply(mysql.Charset(charset, "")); err != nil {
			return "", fmt.Errorf("set mysql charset: %w", err)
		}
	}
	return cfg.FormatDSN(), nil
}

// extractMySQLDBName returns the database named in a MySQL DSN.
func extractMySQLDBName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return cfg.DBName, nil
}
