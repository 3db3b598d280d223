package main

import (
	"context"
	"fmt"
	"log"
)

// postMigrate runs the steps that need the copied data, in order:
// 1. deferred foreign keys, 2. sequences, 3. after_all hooks
func postMigrate(ctx context.Context, exec sqlExecutor, tables []TranslatedTable, deferred []deferredForeignKey, cfg *MigrationConfig) error {
	log.Printf("  foreign keys...")
	if failed := addForeignKeys(ctx, exec, deferred, cfg.Schema); failed > 0 {
		log.Printf("  WARN: %d deferred foreign key(s) could not be added", failed)
	}

	if cfg.Translation.ResetSequences {
		log.Printf("  sequences...")
		if err := resetSequences(ctx, exec, tables, cfg.Schema); err != nil {
			return fmt.Errorf("sequences: %w", err)
		}
	}

	if err := loadAndExecSQLFiles(ctx, exec, cfg, cfg.Hooks.AfterAll, "after_all"); err != nil {
		return fmt.Errorf("after_all hooks: %w", err)
	}
	return nil
}

// execSQL is a helper that runs a single statement and logs errors with context.
func execSQL(ctx context.Context, exec sqlExecutor, desc, query string) error {
	if _, err := exec.Exec(ctx, query); err != nil {
		return fmt.Errorf("%s: %w\nSQL: %s", desc, err, query)
	}
	return nil
}

// addForeignKeys adds the foreign keys held back during table creation. A key
// the copied data violates is reported and skipped. It returns the number of
// keys that could not be added.
func addForeignKeys(ctx context.Context, exec sqlExecutor, deferred []deferredForeignKey, schema string) int {
	failed := 0
	for _, d := range deferred {
		if err := execInSchema(ctx, exec, schema, d.alterStatement(schema)); err != nil {
			log.Printf("    WARN: %s: foreign key %s not added: %v", d.Table, d.FK.String(), err)
			failed++
			continue
		}
		log.Printf("    %s: %s", d.Table, d.FK.String())
	}
	return failed
}

// resetSequences moves the sequence behind every serial column past the
// largest copied value.
func resetSequences(ctx context.Context, exec sqlExecutor, tables []TranslatedTable, schema string) error {
	for _, t := range tables {
		for _, col := range t.Columns {
			if !col.Serial {
				continue
			}
			q := resetSequenceStatement(t, col, schema)
			if err := execSQL(ctx, exec, t.Name+"."+col.Name, q); err != nil {
				return err
			}
			log.Printf("    sequence for %s.%s reset", t.qualifiedName(schema), pgIdent(col.Name))
		}
	}
	return nil
}

func resetSequenceStatement(t TranslatedTable, col TranslatedColumn, schema string) string {
	table := t.qualifiedName(schema)
	return fmt.Sprintf("SELECT setval(pg_get_serial_sequence(%s, %s), COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
		pgLiteral(table), pgLiteral(col.Name), pgIdent(col.Name), table)
}
