package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const generatedDDL = "CREATE TABLE `orders` (\n" +
	"  `id` int NOT NULL AUTO_INCREMENT,\n" +
	"  `qty` int NOT NULL,\n" +
	"  `price` decimal(10,2) NOT NULL,\n" +
	"  `total` decimal(12,2) GENERATED ALWAYS AS ((`qty` * `price`)) STORED,\n" +
	"  `note` varchar(20),\n" +
	"  PRIMARY KEY (`id`)\n" +
	")"

func TestInsertableColumns(t *testing.T) {
	table, err := translateTable(RawTableDDL{Name: "orders", DDL: generatedDDL}, defaultTranslateOptions())
	if err != nil {
		t.Fatalf("translateTable: %v", err)
	}

	var names []string
	for _, c := range insertableColumns(table) {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"id", "qty", "price", "note"}, names); diff != "" {
		t.Errorf("insertable columns mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectGeneratedColumnWarnings(t *testing.T) {
	table, err := translateTable(RawTableDDL{Name: "orders", DDL: generatedDDL}, defaultTranslateOptions())
	if err != nil {
		t.Fatalf("translateTable: %v", err)
	}

	want := []string{"generated column orders.total is recomputed by PostgreSQL; source values are not copied"}
	if diff := cmp.Diff(want, collectGeneratedColumnWarnings([]TranslatedTable{table})); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if got := collectGeneratedColumnWarnings(nil); got != nil {
		t.Errorf("collectGeneratedColumnWarnings(nil) = %v, want nil", got)
	}
}
