package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTranslateSchema(t *testing.T) {
	raws := []RawTableDDL{
		{Name: "orders", DDL: ordersDDL},
		{Name: "customers", DDL: "CREATE TABLE `customers` (`id` int NOT NULL AUTO_INCREMENT, `email` varchar(120) NOT NULL, PRIMARY KEY (`id`), UNIQUE KEY `uk_email` (`email`))"},
		{Name: "audit", DDL: "CREATE TABLE audit (id INT, order_id BIGINT, FOREIGN KEY (order_id) REFERENCES orders (id), FOREIGN KEY (id) REFERENCES ghosts (id))"},
	}
	res := translateSchema(raws, defaultTranslateOptions())

	if err := res.Err(); err != nil {
		t.Fatalf("translateSchema() error: %v", err)
	}

	var names []string
	for _, tbl := range res.Tables {
		names = append(names, tbl.Name)
	}
	if diff := cmp.Diff([]string{"orders", "customers", "audit"}, names); diff != "" {
		t.Errorf("table order mismatch (-want +got):\n%s", diff)
	}

	ddl := res.DDL()
	if len(ddl) != 3 {
		t.Fatalf("DDL() has %d entries, want 3", len(ddl))
	}
	if !strings.Contains(ddl["orders"], "REFERENCES customers (id)") {
		t.Errorf("orders should keep its foreign key to customers:\n%s", ddl["orders"])
	}
	if !strings.Contains(ddl["audit"], "REFERENCES orders (id)") {
		t.Errorf("audit should keep its foreign key to orders:\n%s", ddl["audit"])
	}
	if strings.Contains(ddl["audit"], "ghosts") {
		t.Errorf("foreign key to unknown table should be removed:\n%s", ddl["audit"])
	}

	if len(res.Pruned) != 1 || res.Pruned[0].RefTable != "ghosts" {
		t.Errorf("Pruned = %+v, want one record for ghosts", res.Pruned)
	}
	if !containsSubstring(res.Warnings, "orders: index idx_customer dropped") {
		t.Errorf("warnings should be prefixed with the table name, got %q", res.Warnings)
	}
}

func TestTranslateSchema_TableErrorsAreIsolated(t *testing.T) {
	raws := []RawTableDDL{
		{Name: "good", DDL: "CREATE TABLE good (id INT PRIMARY KEY)"},
		{Name: "bad", DDL: "CREATE TABLE bad (id INT"},
		{Name: "child", DDL: "CREATE TABLE child (good_id INT, bad_id INT, FOREIGN KEY (good_id) REFERENCES good (id), FOREIGN KEY (bad_id) REFERENCES bad (id))"},
	}
	res := translateSchema(raws, defaultTranslateOptions())

	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", res.Errors)
	}
	var te *TableError
	if !errors.As(res.Err(), &te) || te.Table != "bad" {
		t.Fatalf("Err() = %v, want a TableError for bad", res.Err())
	}
	if !strings.HasPrefix(te.Error(), "table bad: ") {
		t.Errorf("TableError.Error() = %q", te.Error())
	}

	ddl := res.DDL()
	if _, ok := ddl["bad"]; ok {
		t.Error("failed table should not appear in DDL()")
	}
	if _, ok := ddl["good"]; !ok {
		t.Error("good table missing from DDL()")
	}
	if strings.Contains(ddl["child"], "REFERENCES bad") || !strings.Contains(ddl["child"], "REFERENCES good") {
		t.Errorf("child DDL:\n%s", ddl["child"])
	}
}

func TestTranslateSchema_DuplicateNames(t *testing.T) {
	raws := []RawTableDDL{
		{Name: "Users", DDL: "CREATE TABLE Users (id INT)"},
		{Name: "users", DDL: "CREATE TABLE users (id INT)"},
	}
	res := translateSchema(raws, defaultTranslateOptions())
	if len(res.Tables) != 1 || res.Tables[0].Name != "Users" {
		t.Errorf("Tables = %+v, want only the first definition", res.Tables)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error(), "duplicate table name") {
		t.Errorf("Errors = %v, want a duplicate-name error", res.Errors)
	}
}

func TestTranslateSchema_WorkerCountDoesNotChangeOutput(t *testing.T) {
	var raws []RawTableDDL
	for i := 0; i < 40; i++ {
		ddl := fmt.Sprintf("CREATE TABLE t%d (id INT AUTO_INCREMENT PRIMARY KEY, prev_id INT, FOREIGN KEY (prev_id) REFERENCES t%d (id))", i, (i+1)%40)
		raws = append(raws, RawTableDDL{Name: fmt.Sprintf("t%d", i), DDL: ddl})
	}

	serial := defaultTranslateOptions()
	serial.Workers = 1
	parallel := defaultTranslateOptions()
	parallel.Workers = 16
	unset := defaultTranslateOptions()
	unset.Workers = 0

	want := translateSchema(raws, serial)
	if err := want.Err(); err != nil {
		t.Fatalf("translateSchema() error: %v", err)
	}
	if len(want.Pruned) != 0 {
		t.Fatalf("cyclic references should all be kept, pruned %v", want.Pruned)
	}
	for _, opts := range []TranslateOptions{parallel, unset} {
		got := translateSchema(raws, opts)
		if diff := cmp.Diff(want.DDL(), got.DDL()); diff != "" {
			t.Errorf("workers=%d output differs (-serial +parallel):\n%s", opts.Workers, diff)
		}
	}
}

func TestTranslateSchema_Empty(t *testing.T) {
	res := translateSchema(nil, defaultTranslateOptions())
	if len(res.Tables) != 0 || res.Err() != nil || len(res.DDL()) != 0 {
		t.Errorf("translateSchema(nil) = %+v", res)
	}
}

func TestTranslateSchema_UnsignedKeyTypesMatch(t *testing.T) {
	raws := []RawTableDDL{
		{Name: "users", DDL: "CREATE TABLE users (id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT, PRIMARY KEY (id))"},
		{Name: "posts", DDL: "CREATE TABLE posts (id INT UNSIGNED NOT NULL AUTO_INCREMENT, user_id BIGINT UNSIGNED NOT NULL, PRIMARY KEY (id), CONSTRAINT fk_user FOREIGN KEY (user_id) REFERENCES users (id))"},
		{Name: "tags", DDL: "CREATE TABLE tags (post_id INT UNSIGNED NOT NULL, name VARCHAR(20), CONSTRAINT fk_post FOREIGN KEY (post_id) REFERENCES posts (id))"},
		{Name: "accounts", DDL: "CREATE TABLE accounts (id BIGINT UNSIGNED PRIMARY KEY)"},
		{Name: "ledger", DDL: "CREATE TABLE ledger (account_id BIGINT UNSIGNED, FOREIGN KEY (account_id) REFERENCES accounts (id))"},
	}
	res := translateSchema(raws, defaultTranslateOptions())
	if err := res.Err(); err != nil {
		t.Fatalf("translateSchema() error: %v", err)
	}
	if len(res.Pruned) != 0 {
		t.Fatalf("Pruned = %v, want none", res.Pruned)
	}

	got := make(map[string]string)
	for _, tbl := range res.Tables {
		for _, c := range tbl.Columns {
			got[tbl.Name+"."+c.Name] = c.TargetType
		}
	}
	want := map[string]string{
		"users.id":          "BIGSERIAL",
		"posts.id":          "BIGSERIAL",
		"posts.user_id":     "BIGINT",
		"tags.post_id":      "BIGINT",
		"tags.name":         "VARCHAR(20)",
		"accounts.id":       "NUMERIC(20)",
		"ledger.account_id": "NUMERIC(20)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("column types mismatch (-want +got):\n%s", diff)
	}

	ddl := res.DDL()
	if !strings.Contains(ddl["posts"], "    user_id BIGINT NOT NULL,\n") {
		t.Errorf("posts DDL:\n%s", ddl["posts"])
	}
	if !containsSubstring(res.Warnings, "posts.user_id: BIGINT UNSIGNED mapped to BIGINT to match users.id (BIGSERIAL)") {
		t.Errorf("warnings = %q, want the narrowed posts.user_id", res.Warnings)
	}
	if !containsSubstring(res.Warnings, "users.id: BIGINT UNSIGNED AUTO_INCREMENT mapped to BIGSERIAL") {
		t.Errorf("warnings = %q, want the users.id range warning", res.Warnings)
	}
}

func TestTranslateSchema_UnsignedKeysWithoutWidening(t *testing.T) {
	raws := []RawTableDDL{
		{Name: "users", DDL: "CREATE TABLE users (id INT UNSIGNED AUTO_INCREMENT PRIMARY KEY)"},
		{Name: "posts", DDL: "CREATE TABLE posts (user_id INT UNSIGNED, FOREIGN KEY (user_id) REFERENCES users (id))"},
	}
	opts := defaultTranslateOptions()
	opts.WidenUnsignedIntegers = false
	res := translateSchema(raws, opts)

	want := map[string]string{
		"users": "CREATE TABLE users (\n    id SERIAL PRIMARY KEY\n);",
		"posts": "CREATE TABLE posts (\n    user_id INT,\n    FOREIGN KEY (user_id) REFERENCES users (id)\n);",
	}
	if diff := cmp.Diff(want, res.DDL()); diff != "" {
		t.Errorf("DDL mismatch (-want +got):\n%s", diff)
	}
}
