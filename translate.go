package main

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RawTableDDL is one source table and its CREATE TABLE statement.
type RawTableDDL struct {
	Name string
	DDL  string
}

// sourceDialect selects how DDL that MySQL and SQLite both accept is read.
// SQLite enforces inline REFERENCES and makes a lone INTEGER PRIMARY KEY an
// alias of the rowid; MySQL does neither.
type sourceDialect int

const (
	dialectMySQL sourceDialect = iota
	dialectSQLite
)

func (d sourceDialect) String() string {
	if d == dialectSQLite {
		return "sqlite"
	}
	return "mysql"
}

func parseSourceDialect(s string) (sourceDialect, error) {
	switch strings.ToLower(s) {
	case "mysql", "":
		return dialectMySQL, nil
	case "sqlite":
		return dialectSQLite, nil
	}
	return dialectMySQL, fmt.Errorf("unknown source dialect %q (must be mysql or sqlite)", s)
}

// TranslateOptions controls the lossy parts of the DDL translation.
type TranslateOptions struct {
	TinyInt1AsBoolean     bool
	WidenUnsignedIntegers bool
	SerialNotNull         bool
	UnrecognizedClauses   string // skip|error
	Dialect               sourceDialect
	Workers               int
}

func defaultTranslateOptions() TranslateOptions {
	return TranslateOptions{
		WidenUnsignedIntegers: true,
		UnrecognizedClauses:   "skip",
		Workers:               defaultWorkers(),
	}
}

// TableError is a translation failure for one table.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// TranslationResult is the outcome of translateSchema. Tables keeps input
// order and never contains a table listed in Errors.
type TranslationResult struct {
	Tables   []TranslatedTable
	Pruned   []PrunedForeignKey
	Warnings []string
	Errors   []error
}

// DDL returns the translated CREATE TABLE statement for every table, keyed
// by input table name.
func (r *TranslationResult) DDL() map[string]string {
	out := make(map[string]string, len(r.Tables))
	for _, t := range r.Tables {
		out[t.Name] = t.DDL()
	}
	return out
}

// Err joins all per-table errors, or returns nil.
func (r *TranslationResult) Err() error {
	return errors.Join(r.Errors...)
}

// translateSchema runs the table translator over every input table, then the
// foreign-key validator over the complete set of translated tables.
func translateSchema(raws []RawTableDDL, opts TranslateOptions) *TranslationResult {
	type slot struct {
		table TranslatedTable
		err   error
	}
	slots := make([]slot, len(raws))

	seen := make(map[string]string, len(raws))
	for i, raw := range raws {
		key := strings.ToLower(raw.Name)
		if prev, dup := seen[key]; dup {
			slots[i].err = &TableError{Table: raw.Name, Err: fmt.Errorf("duplicate table name (already defined as %s)", prev)}
			continue
		}
		seen[key] = raw.Name
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, raw := range raws {
		if slots[i].err != nil {
			continue
		}
		g.Go(func() error {
			t, err := translateTable(raw, opts)
			if err != nil {
				slots[i].err = &TableError{Table: raw.Name, Err: err}
				return nil
			}
			slots[i].table = t
			return nil
		})
	}
	_ = g.Wait() // workers report through slots

	res := &TranslationResult{}
	var translated []TranslatedTable
	for _, s := range slots {
		if s.err != nil {
			res.Errors = append(res.Errors, s.err)
			continue
		}
		translated = append(translated, s.table)
		res.Warnings = append(res.Warnings, s.table.Warnings...)
	}

	validated, pruned := validateForeignKeys(translated)
	aligned, warnings := alignForeignKeyTypes(validated)
	res.Tables, res.Pruned = aligned, pruned
	res.Warnings = append(res.Warnings, warnings...)
	return res
}
