package main

import "fmt"

// insertableColumns returns the columns that receive copied rows. Generated
// columns are computed by PostgreSQL and reject explicit values.
func insertableColumns(t TranslatedTable) []TranslatedColumn {
	cols := make([]TranslatedColumn, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Generated {
			cols = append(cols, c)
		}
	}
	return cols
}

func collectGeneratedColumnWarnings(tables []TranslatedTable) []string {
	var warnings []string
	for _, t := range tables {
		for _, col := range t.Columns {
			if !col.Generated {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s is recomputed by PostgreSQL; source values are not copied",
				t.SourceName, col.SourceName,
			))
		}
	}
	return warnings
}
