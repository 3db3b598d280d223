package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// maxLoggedRowFailures caps the per-table row failure log lines.
const maxLoggedRowFailures = 10

// rowSource is the streaming side of a table export. *sql.Rows satisfies it.
type rowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// tableCopyStats summarizes the copy of one table.
type tableCopyStats struct {
	Table    string
	Copied   int64
	Failed   int64
	Duration time.Duration
}

// copyOptions carries the settings copyTables needs from the config.
type copyOptions struct {
	Schema    string
	Workers   int
	BatchSize int
}

// copyTables copies every table from the source into the target. Tables are
// processed level by level in foreign-key order so parent rows exist before
// child rows; tables within one level run in parallel. Tables caught in a
// reference cycle are copied one at a time in creation order.
func copyTables(ctx context.Context, pool *pgxpool.Pool, srcDB *sql.DB, src SourceDB, tables []TranslatedTable, opts copyOptions) ([]tableCopyStats, error) {
	levels, cyclic := creationLevels(tables)

	var (
		mu    sync.Mutex
		stats []tableCopyStats
	)
	for li, level := range levels {
		limit := opts.Workers
		if len(cyclic) > 0 && li == len(levels)-1 {
			limit = 1
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(limit, 1))
		for _, t := range level {
			g.Go(func() error {
				st, err := copyTable(gctx, pool, srcDB, src, t, opts)
				mu.Lock()
				stats = append(stats, st)
				mu.Unlock()
				if err != nil {
					return fmt.Errorf("copy %s: %w", t.Name, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// copyTable exports one table with a streaming SELECT and imports it on a
// dedicated pooled connection.
func copyTable(ctx context.Context, pool *pgxpool.Pool, srcDB *sql.DB, src SourceDB, t TranslatedTable, opts copyOptions) (tableCopyStats, error) {
	query, cols := selectColumnsQuery(src, t)
	if len(cols) == 0 {
		return tableCopyStats{Table: t.Name}, nil
	}

	rows, err := srcDB.QueryContext(ctx, query)
	if err != nil {
		return tableCopyStats{Table: t.Name}, fmt.Errorf("export: %w", err)
	}
	defer rows.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return tableCopyStats{Table: t.Name}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return copyRows(ctx, conn, rows, t, cols, opts.Schema, opts.BatchSize)
}

// insertStatement renders the parameterized INSERT for cols.
func insertStatement(t TranslatedTable, cols []TranslatedColumn, schema string) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pgIdent(c.Name)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.qualifiedName(schema), strings.Join(names, ", "), strings.Join(params, ", "))
}

// copyRows inserts every row of rows into t inside a transaction. Each row is
// guarded by a savepoint: a row the target rejects is rolled back, logged and
// counted while the rest of the table continues. The transaction is committed
// every batchSize copied rows, so a later fatal error keeps earlier batches.
// Source read errors and failures of the transaction itself are fatal.
func copyRows(ctx context.Context, exec sqlExecutor, rows rowSource, t TranslatedTable, cols []TranslatedColumn, schema string, batchSize int) (tableCopyStats, error) {
	start := time.Now()
	st := tableCopyStats{Table: t.Name}
	insert := insertStatement(t, cols, schema)

	fail := func(err error) (tableCopyStats, error) {
		if _, rbErr := exec.Exec(ctx, "ROLLBACK"); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		st.Duration = time.Since(start)
		return st, err
	}
	rowFailed := func(n int64, err error) {
		st.Failed++
		if st.Failed <= maxLoggedRowFailures {
			log.Printf("    WARN: %s row %d skipped: %v", t.Name, n, err)
		}
	}

	if _, err := exec.Exec(ctx, "BEGIN"); err != nil {
		return st, fmt.Errorf("begin: %w", err)
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var n int64
	inBatch := 0
	for rows.Next() {
		n++
		if err := rows.Scan(ptrs...); err != nil {
			return fail(fmt.Errorf("read row %d: %w", n, err))
		}
		if err := transformRow(vals, cols); err != nil {
			rowFailed(n, err)
			continue
		}

		if _, err := exec.Exec(ctx, "SAVEPOINT row_copy"); err != nil {
			return fail(fmt.Errorf("savepoint: %w", err))
		}
		if _, err := exec.Exec(ctx, insert, vals...); err != nil {
			if _, rbErr := exec.Exec(ctx, "ROLLBACK TO SAVEPOINT row_copy"); rbErr != nil {
				return fail(fmt.Errorf("row %d: %w (rollback to savepoint: %v)", n, err, rbErr))
			}
			rowFailed(n, err)
			continue
		}
		if _, err := exec.Exec(ctx, "RELEASE SAVEPOINT row_copy"); err != nil {
			return fail(fmt.Errorf("release savepoint: %w", err))
		}

		st.Copied++
		inBatch++
		if batchSize > 0 && inBatch >= batchSize {
			if _, err := exec.Exec(ctx, "COMMIT"); err != nil {
				return fail(fmt.Errorf("commit: %w", err))
			}
			if _, err := exec.Exec(ctx, "BEGIN"); err != nil {
				st.Duration = time.Since(start)
				return st, fmt.Errorf("begin: %w", err)
			}
			inBatch = 0
		}
	}
	if err := rows.Err(); err != nil {
		return fail(fmt.Errorf("read rows: %w", err))
	}
	if _, err := exec.Exec(ctx, "COMMIT"); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	st.Duration = time.Since(start)
	if st.Failed > maxLoggedRowFailures {
		log.Printf("    WARN: %s: %d more row failures not shown", t.Name, st.Failed-maxLoggedRowFailures)
	}
	log.Printf("  %s: %d rows copied, %d failed (%s)", t.Name, st.Copied, st.Failed, st.Duration.Round(time.Millisecond))
	return st, nil
}

// copySummary totals per-table copy stats.
func copySummary(stats []tableCopyStats) (copied, failed int64) {
	for _, s := range stats {
		copied += s.Copied
		failed += s.Failed
	}
	return copied, failed
}
