package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExec records every statement. Statements containing failOn return err
// (a generic error when err is nil); failIf can reject by arguments too.
type fakeExec struct {
	mu     sync.Mutex
	stmts  []string
	args   [][]any
	failOn string
	err    error
	failIf func(sql string, args []any) error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, sql)
	f.args = append(f.args, append([]any(nil), args...))
	if f.failIf != nil {
		if err := f.failIf(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		if f.err != nil {
			return pgconn.CommandTag{}, f.err
		}
		return pgconn.CommandTag{}, errors.New("syntax error at or near")
	}
	return pgconn.CommandTag{}, nil
}

func levelNames(levels [][]TranslatedTable) [][]string {
	out := make([][]string, len(levels))
	for i, l := range levels {
		for _, t := range l {
			out[i] = append(out[i], t.Name)
		}
	}
	return out
}

func TestCreationLevels(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE orders (id INT PRIMARY KEY, customer_id INT, FOREIGN KEY (customer_id) REFERENCES customers(id))",
		"CREATE TABLE customers (id INT PRIMARY KEY, manager_id INT, FOREIGN KEY (manager_id) REFERENCES customers(id))",
		"CREATE TABLE items (id INT PRIMARY KEY, order_id INT, FOREIGN KEY (order_id) REFERENCES Orders(id))",
		"CREATE TABLE audit (id INT)",
	)

	levels, cyclic := creationLevels(tables)
	want := [][]string{{"customers", "audit"}, {"orders"}, {"items"}}
	if diff := cmp.Diff(want, levelNames(levels)); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if len(cyclic) != 0 {
		t.Errorf("cyclic = %v, want none", cyclic)
	}

	var order []string
	for _, tbl := range creationOrder(tables) {
		order = append(order, tbl.Name)
	}
	if diff := cmp.Diff([]string{"customers", "audit", "orders", "items"}, order); diff != "" {
		t.Errorf("creationOrder mismatch (-want +got):\n%s", diff)
	}
}

func TestCreationLevels_Cycle(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE a (id INT PRIMARY KEY, b_id INT, FOREIGN KEY (b_id) REFERENCES b(id))",
		"CREATE TABLE b (id INT PRIMARY KEY, a_id INT, FOREIGN KEY (a_id) REFERENCES a(id))",
		"CREATE TABLE c (id INT PRIMARY KEY, a_id INT, FOREIGN KEY (a_id) REFERENCES a(id))",
		"CREATE TABLE d (id INT)",
	)

	levels, cyclic := creationLevels(tables)
	if diff := cmp.Diff([][]string{{"d"}, {"a", "b", "c"}}, levelNames(levels)); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, cyclic); diff != "" {
		t.Errorf("cyclic mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateTables(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE orders (id INT PRIMARY KEY, customer_id INT, FOREIGN KEY (customer_id) REFERENCES customers(id))",
		"CREATE TABLE customers (id INT PRIMARY KEY) COMMENT='people'",
	)
	exec := &fakeExec{}

	res, err := createTables(context.Background(), exec, tables, "app")
	if err != nil {
		t.Fatalf("createTables() error: %v", err)
	}

	want := []string{
		"BEGIN",
		"SET LOCAL search_path TO app",
		"CREATE TABLE app.customers (\n    id INT PRIMARY KEY\n);",
		"COMMENT ON TABLE app.customers IS 'people'",
		"COMMIT",
		"BEGIN",
		"SET LOCAL search_path TO app",
		"CREATE TABLE app.orders (\n    id INT PRIMARY KEY,\n    customer_id INT,\n    FOREIGN KEY (customer_id) REFERENCES customers (id)\n);",
		"COMMIT",
	}
	if diff := cmp.Diff(want, exec.stmts); diff != "" {
		t.Errorf("executed statements mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"customers", "orders"}, res.Created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if len(res.Deferred) != 0 {
		t.Errorf("deferred = %v, want none", res.Deferred)
	}
}

func TestCreateTables_CycleDefersForeignKeys(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE a (id INT PRIMARY KEY, b_id INT, CONSTRAINT fk_b FOREIGN KEY (b_id) REFERENCES b(id))",
		"CREATE TABLE b (id INT PRIMARY KEY, a_id INT, CONSTRAINT fk_a FOREIGN KEY (a_id) REFERENCES a(id))",
	)
	exec := &fakeExec{}

	res, err := createTables(context.Background(), exec, tables, "app")
	if err != nil {
		t.Fatalf("createTables() error: %v", err)
	}

	if !containsSubstring(exec.stmts, "CREATE TABLE app.a (\n    id INT PRIMARY KEY,\n    b_id INT\n);") {
		t.Errorf("a should be created without its foreign key, got %v", exec.stmts)
	}
	if !containsSubstring(exec.stmts, "CONSTRAINT fk_a FOREIGN KEY (a_id) REFERENCES a (id)") {
		t.Errorf("b should keep its foreign key to the existing table a, got %v", exec.stmts)
	}
	if len(res.Deferred) != 1 {
		t.Fatalf("deferred = %d, want 1", len(res.Deferred))
	}
	want := "ALTER TABLE app.a ADD CONSTRAINT fk_b FOREIGN KEY (b_id) REFERENCES b (id)"
	if got := res.Deferred[0].alterStatement("app"); got != want {
		t.Errorf("alterStatement() = %q, want %q", got, want)
	}
}

func TestCreateTables_ExistingTableSkipped(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE a (id INT PRIMARY KEY)",
		"CREATE TABLE b (id INT PRIMARY KEY)",
	)
	exec := &fakeExec{failOn: "CREATE TABLE app.a", err: &pgconn.PgError{Code: "42P07", Message: `relation "a" already exists`}}

	res, err := createTables(context.Background(), exec, tables, "app")
	if err != nil {
		t.Fatalf("createTables() error: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, res.Existing); diff != "" {
		t.Errorf("existing mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, res.Created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if exec.stmts[3] != "ROLLBACK" {
		t.Errorf("statement after the failed CREATE = %q, want ROLLBACK", exec.stmts[3])
	}
}

func TestCreateTables_HaltsOnError(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE a (id INT PRIMARY KEY)",
		"CREATE TABLE b (id INT PRIMARY KEY)",
		"CREATE TABLE c (id INT PRIMARY KEY)",
	)
	exec := &fakeExec{failOn: "CREATE TABLE app.b"}

	res, err := createTables(context.Background(), exec, tables, "app")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "create table b") {
		t.Errorf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, res.Created); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}
	if containsSubstring(exec.stmts, "CREATE TABLE app.c") {
		t.Error("no table should be attempted after a failure")
	}
	if last := exec.stmts[len(exec.stmts)-1]; last != "ROLLBACK" {
		t.Errorf("last statement = %q, want ROLLBACK", last)
	}
}

func TestIsDuplicateTable(t *testing.T) {
	dup := &pgconn.PgError{Code: "42P07"}
	if !isDuplicateTable(dup) {
		t.Error("42P07 should be a duplicate table")
	}
	if !isDuplicateTable(errors.Join(errors.New("wrapped"), dup)) {
		t.Error("joined 42P07 should be a duplicate table")
	}
	if isDuplicateTable(&pgconn.PgError{Code: "42601"}) {
		t.Error("42601 is not a duplicate table")
	}
	if isDuplicateTable(errors.New("plain")) {
		t.Error("plain errors are not duplicate tables")
	}
}
