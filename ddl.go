package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// duplicateTableCode is SQLSTATE duplicate_table.
const duplicateTableCode = "42P07"

// sqlExecutor is the Exec surface shared by pgx pools, pooled connections and
// transactions.
type sqlExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func isDuplicateTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == duplicateTableCode
}

// deferredForeignKey is a foreign key held back at creation time because the
// referenced table did not exist yet. It is added after the data copy.
type deferredForeignKey struct {
	Table      string // source table name
	TargetName string // PostgreSQL table identifier
	FK         KeyConstraint
}

func (d deferredForeignKey) alterStatement(schema string) string {
	name := d.TargetName
	if schema != "" {
		name = pgIdent(schema) + "." + name
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", name, d.FK.String())
}

// creationResult summarizes createTables.
type creationResult struct {
	Created  []string
	Existing []string
	Deferred []deferredForeignKey
}

// creationLevels groups tables so that each table comes after every table its
// foreign keys reference. Tables of one level do not reference each other and
// can be handled in parallel. Tables caught in a reference cycle, and tables
// depending on them, form the final level in input order and are also
// returned by name.
func creationLevels(tables []TranslatedTable) (levels [][]TranslatedTable, cyclic []string) {
	pos := make(map[string]int, len(tables))
	for i, t := range tables {
		pos[strings.ToLower(t.SourceName)] = i
	}
	deps := make([][]int, len(tables))
	for i, t := range tables {
		for _, fk := range t.foreignKeys() {
			if j, ok := pos[strings.ToLower(fk.RefTable)]; ok && j != i {
				deps[i] = append(deps[i], j)
			}
		}
	}

	placed := make([]bool, len(tables))
	remaining := len(tables)
	for remaining > 0 {
		var ready []int
		for i := range tables {
			if placed[i] {
				continue
			}
			ok := true
			for _, j := range deps[i] {
				if !placed[j] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			break
		}
		level := make([]TranslatedTable, len(ready))
		for k, i := range ready {
			placed[i] = true
			level[k] = tables[i]
		}
		remaining -= len(ready)
		levels = append(levels, level)
	}

	if remaining > 0 {
		var rest []TranslatedTable
		for i, t := range tables {
			if !placed[i] {
				rest = append(rest, t)
				cyclic = append(cyclic, t.Name)
			}
		}
		levels = append(levels, rest)
	}
	return levels, cyclic
}

// creationOrder flattens creationLevels.
func creationOrder(tables []TranslatedTable) []TranslatedTable {
	levels, _ := creationLevels(tables)
	out := make([]TranslatedTable, 0, len(tables))
	for _, l := range levels {
		out = append(out, l...)
	}
	return out
}

// createTables creates every table in dependency order, each in its own
// transaction together with its COMMENT ON statements. A table that already
// exists (SQLSTATE 42P07) is rolled back, logged and skipped. Any other failure
// rolls back that table and stops; tables created before it stay committed.
// Foreign keys pointing at a table that does not exist yet are deferred.
func createTables(ctx context.Context, exec sqlExecutor, tables []TranslatedTable, schema string) (*creationResult, error) {
	levels, cyclic := creationLevels(tables)
	if len(cyclic) > 0 {
		log.Printf("  WARN: foreign-key cycle among %s; keys to tables not yet created are added after the data copy",
			strings.Join(cyclic, ", "))
	}

	res := &creationResult{}
	exists := make(map[string]bool, len(tables))
	for _, level := range levels {
		for _, t := range level {
			t, deferred := splitPendingForeignKeys(t, exists)

			stmts := append([]string{t.createStatement(schema)}, t.commentStatements(schema)...)
			err := execInSchema(ctx, exec, schema, stmts...)
			switch {
			case err == nil:
				log.Printf("  created %s", t.qualifiedName(schema))
				res.Created = append(res.Created, t.Name)
				res.Deferred = append(res.Deferred, deferred...)
			case isDuplicateTable(err):
				log.Printf("  skipped %s: already exists", t.qualifiedName(schema))
				res.Existing = append(res.Existing, t.Name)
			default:
				return res, fmt.Errorf("create table %s: %w", t.Name, err)
			}
			exists[strings.ToLower(t.SourceName)] = true
		}
	}
	return res, nil
}

// splitPendingForeignKeys removes the foreign keys of t whose referenced table
// is not in exists. Self references stay inline.
func splitPendingForeignKeys(t TranslatedTable, exists map[string]bool) (TranslatedTable, []deferredForeignKey) {
	var deferred []deferredForeignKey
	kept := make([]KeyConstraint, 0, len(t.Constraints))
	for _, k := range t.Constraints {
		ref := strings.ToLower(k.RefTable)
		if k.Kind == constraintForeignKey && ref != strings.ToLower(t.SourceName) && !exists[ref] {
			deferred = append(deferred, deferredForeignKey{Table: t.Name, TargetName: t.TargetName, FK: k})
			continue
		}
		kept = append(kept, k)
	}
	t.Constraints = kept
	return t, deferred
}

// execInSchema runs stmts in one transaction with the target schema first on
// the search_path, so unqualified REFERENCES resolve inside it. On failure the
// transaction is rolled back and the statement error is returned.
func execInSchema(ctx context.Context, exec sqlExecutor, schema string, stmts ...string) error {
	if _, err := exec.Exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if schema != "" {
		stmts = append([]string{"SET LOCAL search_path TO " + pgIdent(schema)}, stmts...)
	}
	for _, stmt := range stmts {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			if _, rbErr := exec.Exec(ctx, "ROLLBACK"); rbErr != nil {
				return errors.Join(fmt.Errorf("%w\nSQL: %s", err, stmt), fmt.Errorf("rollback: %w", rbErr))
			}
			return fmt.Errorf("%w\nSQL: %s", err, stmt)
		}
	}
	if _, err := exec.Exec(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
