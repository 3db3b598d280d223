package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollectCollationWarnings(t *testing.T) {
	tables := mustTranslateTables(t,
		"CREATE TABLE users (name VARCHAR(50) CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci, code CHAR(2) COLLATE ascii_bin)",
		"CREATE TABLE posts (title TEXT COLLATE utf8mb4_general_ci, body TEXT)",
		"CREATE TABLE tags (label VARCHAR(20) COLLATE latin1_swedish_ci)",
	)

	want := []string{
		"column charsets/collations dropped: ascii_bin (1), latin1_swedish_ci (1), utf8mb4 (1), utf8mb4_general_ci (2)",
		"latin1_swedish_ci is case-insensitive; PostgreSQL text comparisons are case-sensitive by default (tables: tags)",
		"utf8mb4_general_ci is case-insensitive; PostgreSQL text comparisons are case-sensitive by default (tables: posts, users)",
	}
	if diff := cmp.Diff(want, collectCollationWarnings(tables)); diff != "" {
		t.Errorf("collectCollationWarnings() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectCollationWarnings_None(t *testing.T) {
	tables := mustTranslateTables(t, "CREATE TABLE t (id INT, name TEXT)")
	if got := collectCollationWarnings(tables); got != nil {
		t.Errorf("collectCollationWarnings() = %v, want nil", got)
	}
}

func TestSortedKeys(t *testing.T) {
	got := sortedKeys(map[string]bool{"b": true, "a": true, "c": false})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("sortedKeys() mismatch (-want +got):\n%s", diff)
	}
}
