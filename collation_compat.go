package main

import (
	"fmt"
	"sort"
	"strings"
)

// collectCollationWarnings summarizes the column CHARACTER SET and COLLATE
// attributes dropped by the translation. Translated columns use the database
// collation, so case-insensitive (_ci) collations are reported per table.
func collectCollationWarnings(tables []TranslatedTable) []string {
	counts := make(map[string]int)
	// _ci collation → tables using it
	ciTables := make(map[string][]string)

	for _, t := range tables {
		for name, n := range t.Collations {
			counts[name] += n
			if strings.HasSuffix(name, "_ci") {
				ciTables[name] = append(ciTables[name], t.SourceName)
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	found := make([]string, 0, len(counts))
	for _, name := range sortedKeys(counts) {
		found = append(found, fmt.Sprintf("%s (%d)", name, counts[name]))
	}
	warnings := []string{"column charsets/collations dropped: " + strings.Join(found, ", ")}

	for _, coll := range sortedKeys(ciTables) {
		names := ciTables[coll]
		sort.Strings(names)
		warnings = append(warnings, fmt.Sprintf(
			"%s is case-insensitive; PostgreSQL text comparisons are case-sensitive by default (tables: %s)",
			coll, strings.Join(names, ", ")))
	}
	return warnings
}

// sortedKeys returns the keys of a map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
