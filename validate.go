package main

import (
	"fmt"
	"math"
	"strings"
)

// PrunedForeignKey records one foreign key removed by validateForeignKeys.
type PrunedForeignKey struct {
	Table      string
	Constraint string // rendered clause as it would have been emitted
	RefTable   string
	Column     string // referenced column that failed the check, empty for an unknown table
	Reason     string
}

func (p PrunedForeignKey) String() string {
	return fmt.Sprintf("%s: foreign key removed (%s): %s", p.Table, p.Constraint, p.Reason)
}

// uniqueColumnIndex maps a folded table name to the folded names of columns
// that alone make up some PRIMARY KEY or UNIQUE constraint of that table.
// Columns that are unique only inside a composite key are never recorded.
type uniqueColumnIndex map[string]map[string]bool

func buildUniqueColumnIndex(tables []TranslatedTable) uniqueColumnIndex {
	idx := make(uniqueColumnIndex, len(tables))
	for _, t := range tables {
		set := make(map[string]bool)
		for _, c := range t.Columns {
			if c.PrimaryKey || c.Unique {
				set[c.Name] = true
			}
		}
		for _, k := range t.Constraints {
			if (k.Kind == constraintPrimaryKey || k.Kind == constraintUnique) && len(k.Columns) == 1 {
				set[strings.ToLower(k.Columns[0])] = true
			}
		}
		idx[strings.ToLower(t.SourceName)] = set
	}
	return idx
}

func (idx uniqueColumnIndex) has(table string) bool {
	_, ok := idx[strings.ToLower(table)]
	return ok
}

func (idx uniqueColumnIndex) solelyUnique(table, column string) bool {
	return idx[strings.ToLower(table)][strings.ToLower(column)]
}

// validateForeignKeys removes every foreign key whose referenced table is
// unknown or whose referenced columns are not each solely unique in that
// table. A foreign key that names no referenced columns points at the primary
// key of the referenced table. The index is built from the whole snapshot
// before any table is rewritten; the input tables are not modified.
func validateForeignKeys(snapshot []TranslatedTable) ([]TranslatedTable, []PrunedForeignKey) {
	idx := buildUniqueColumnIndex(snapshot)
	byName := make(map[string]TranslatedTable, len(snapshot))
	for _, t := range snapshot {
		byName[strings.ToLower(t.SourceName)] = t
	}

	var pruned []PrunedForeignKey
	out := make([]TranslatedTable, len(snapshot))
	for i, t := range snapshot {
		kept := make([]KeyConstraint, 0, len(t.Constraints))
		for _, k := range t.Constraints {
			if k.Kind != constraintForeignKey {
				kept = append(kept, k)
				continue
			}
			if len(k.RefColumns) == 0 {
				if cols := primaryKeyColumns(byName[strings.ToLower(k.RefTable)]); len(cols) == len(k.Columns) {
					k.RefColumns = cols
				}
			}
			if p, bad := checkForeignKey(idx, t, k); bad {
				pruned = append(pruned, p)
				continue
			}
			kept = append(kept, k)
		}
		t.Constraints = kept
		out[i] = t
	}
	return out, pruned
}

func checkForeignKey(idx uniqueColumnIndex, t TranslatedTable, fk KeyConstraint) (PrunedForeignKey, bool) {
	p := PrunedForeignKey{Table: t.Name, Constraint: fk.String(), RefTable: fk.RefTable}
	if !idx.has(fk.RefTable) {
		p.Reason = fmt.Sprintf("referenced table %s is not part of the schema", fk.RefTable)
		return p, true
	}
	if len(fk.RefColumns) != len(fk.Columns) {
		p.Reason = fmt.Sprintf("%s has no primary key matching %d column(s)", fk.RefTable, len(fk.Columns))
		return p, true
	}
	for _, col := range fk.RefColumns {
		if !idx.solelyUnique(fk.RefTable, col) {
			p.Column = col
			p.Reason = fmt.Sprintf("%s.%s is not covered by a single-column PRIMARY KEY or UNIQUE constraint", fk.RefTable, col)
			return p, true
		}
	}
	return PrunedForeignKey{}, false
}

// primaryKeyColumns returns the primary key of t in key order.
func primaryKeyColumns(t TranslatedTable) []string {
	for _, k := range t.Constraints {
		if k.Kind == constraintPrimaryKey {
			return k.Columns
		}
	}
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return []string{c.SourceName}
		}
	}
	return nil
}

// alignForeignKeyTypes narrows widened BIGINT UNSIGNED columns that reference
// a BIGINT or BIGSERIAL key back to BIGINT. PostgreSQL rejects a foreign key
// between numeric and bigint. It runs over validated tables only, and repeats
// until no column changes so chains of references settle on one type.
func alignForeignKeyTypes(tables []TranslatedTable) ([]TranslatedTable, []string) {
	out := make([]TranslatedTable, len(tables))
	byName := make(map[string]int, len(tables))
	for i, t := range tables {
		t.Columns = append([]TranslatedColumn(nil), t.Columns...)
		out[i] = t
		byName[strings.ToLower(t.SourceName)] = i
	}

	var warnings []string
	for changed := true; changed; {
		changed = false
		for ti := range out {
			for _, fk := range out[ti].foreignKeys() {
				ri, ok := byName[strings.ToLower(fk.RefTable)]
				if !ok {
					continue
				}
				for k, name := range fk.Columns {
					if k >= len(fk.RefColumns) {
						break
					}
					ci := out[ti].columnIndex(name)
					ref, ok := out[ri].column(fk.RefColumns[k])
					if ci < 0 || !ok {
						continue
					}
					col := &out[ti].Columns[ci]
					if col.SourceType != "bigint" || col.TargetType != "NUMERIC(20)" || keyType(ref) != "BIGINT" {
						continue
					}
					col.retype("BIGINT")
					changed = true
					warnings = append(warnings, fmt.Sprintf("%s.%s: BIGINT UNSIGNED mapped to BIGINT to match %s.%s (%s): values above %d do not fit",
						out[ti].SourceName, col.SourceName, out[ri].SourceName, ref.SourceName, ref.TargetType, int64(math.MaxInt64)))
				}
			}
		}
	}
	return out, warnings
}

// keyType is the plain PostgreSQL type a referencing column must match.
func keyType(c TranslatedColumn) string {
	if t, ok := serialKeyTypes[c.TargetType]; ok {
		return t
	}
	return c.TargetType
}
