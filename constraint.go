package main

import (
	"fmt"
	"strings"
)

type constraintKind int

const (
	constraintPrimaryKey constraintKind = iota
	constraintUnique
	constraintForeignKey
	constraintCheck
)

// KeyConstraint is a table-level constraint that survives translation.
// Plain and FULLTEXT/SPATIAL indexes never become a KeyConstraint.
type KeyConstraint struct {
	Kind       constraintKind
	Name       string // kept for FOREIGN KEY and CHECK only
	Columns    []string
	RefTable   string
	RefColumns []string
	Actions    []string // e.g. "ON DELETE CASCADE"
	Check      string   // rendered CHECK expression, parentheses included
	Enforced   bool
}

// String renders the constraint as a PostgreSQL table constraint clause.
func (c KeyConstraint) String() string {
	switch c.Kind {
	case constraintPrimaryKey:
		return fmt.Sprintf("PRIMARY KEY (%s)", quotedColumnList(c.Columns))
	case constraintUnique:
		return fmt.Sprintf("UNIQUE (%s)", quotedColumnList(c.Columns))
	case constraintForeignKey:
		var b strings.Builder
		if c.Name != "" {
			fmt.Fprintf(&b, "CONSTRAINT %s ", identName(c.Name))
		}
		fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s", quotedColumnList(c.Columns), identName(c.RefTable))
		if len(c.RefColumns) > 0 {
			fmt.Fprintf(&b, " (%s)", quotedColumnList(c.RefColumns))
		}
		for _, a := range c.Actions {
			b.WriteByte(' ')
			b.WriteString(a)
		}
		return b.String()
	case constraintCheck:
		if c.Name != "" {
			return fmt.Sprintf("CONSTRAINT %s CHECK %s", identName(c.Name), c.Check)
		}
		return "CHECK " + c.Check
	default:
		return ""
	}
}

// parseConstraint parses a PRIMARY KEY, UNIQUE, FOREIGN KEY or CHECK clause.
func parseConstraint(clause string) (KeyConstraint, error) {
	toks, err := tokenize(clause)
	if err != nil {
		return KeyConstraint{}, err
	}
	kind, i := classifyTokens(toks)

	var name string
	if i == 2 {
		name = toks[1].text
	}

	switch kind {
	case clausePrimaryKey:
		cols, _, err := parseKeyColumns(toks, nextParen(toks, i+2))
		if err != nil {
			return KeyConstraint{}, fmt.Errorf("primary key: %w", err)
		}
		return KeyConstraint{Kind: constraintPrimaryKey, Columns: cols}, nil

	case clauseUniqueKey:
		cols, _, err := parseKeyColumns(toks, nextParen(toks, i+1))
		if err != nil {
			return KeyConstraint{}, fmt.Errorf("unique key: %w", err)
		}
		return KeyConstraint{Kind: constraintUnique, Columns: cols}, nil

	case clauseForeignKey:
		return parseForeignKey(toks, i, name)

	case clauseCheck:
		open := i + 1
		if open >= len(toks) || toks[open].kind != tokLParen {
			return KeyConstraint{}, fmt.Errorf("CHECK without a parenthesized expression")
		}
		end := matchParen(toks, open)
		if end < 0 {
			return KeyConstraint{}, fmt.Errorf("unbalanced CHECK expression")
		}
		c := KeyConstraint{Kind: constraintCheck, Name: name, Check: renderTokens(toks[open : end+1]), Enforced: true}
		if peekIs(toks, end+1, "NOT") && peekIs(toks, end+2, "ENFORCED") {
			c.Enforced = false
		}
		return c, nil
	}
	return KeyConstraint{}, fmt.Errorf("not a key constraint: %q", clause)
}

func parseForeignKey(toks []token, i int, name string) (KeyConstraint, error) {
	cols, next, err := parseKeyColumns(toks, nextParen(toks, i+2))
	if err != nil {
		return KeyConstraint{}, fmt.Errorf("foreign key: %w", err)
	}
	if !peekIs(toks, next, "REFERENCES") {
		return KeyConstraint{}, fmt.Errorf("foreign key: missing REFERENCES")
	}
	fk, _, err := parseReferences(toks, next)
	if err != nil {
		return KeyConstraint{}, fmt.Errorf("foreign key: %w", err)
	}
	if len(fk.RefColumns) > 0 && len(fk.RefColumns) != len(cols) {
		return KeyConstraint{}, fmt.Errorf("foreign key: %d local columns but %d referenced columns", len(cols), len(fk.RefColumns))
	}
	fk.Name = name
	fk.Columns = cols
	return fk, nil
}

// parseReferences reads REFERENCES [db.]table [(cols)] followed by MATCH,
// ON DELETE|UPDATE and [NOT] DEFERRABLE [INITIALLY DEFERRED|IMMEDIATE]
// attributes, starting at the REFERENCES keyword. RefColumns is empty when
// the column list is omitted, which means the referenced primary key. It
// returns the index after the last consumed token.
func parseReferences(toks []token, i int) (KeyConstraint, int, error) {
	fk := KeyConstraint{Kind: constraintForeignKey}
	j := i + 1
	for j < len(toks) && toks[j].isName() {
		fk.RefTable = toks[j].text // db.table keeps the last part
		j++
		if j < len(toks) && toks[j].kind == tokOp && toks[j].text == "." {
			j++
			continue
		}
		break
	}
	if fk.RefTable == "" {
		return KeyConstraint{}, 0, fmt.Errorf("missing referenced table")
	}
	if j < len(toks) && toks[j].kind == tokLParen {
		refCols, next, err := parseKeyColumns(toks, j)
		if err != nil {
			return KeyConstraint{}, 0, fmt.Errorf("references %s: %w", fk.RefTable, err)
		}
		fk.RefColumns = refCols
		j = next
	}

	for j < len(toks) {
		if toks[j].is("MATCH") && j+1 < len(toks) {
			j += 2
			continue
		}
		action, next := parseReferentialAction(toks, j)
		if next == j {
			break
		}
		fk.Actions = append(fk.Actions, action)
		j = next
	}

	k := j
	if peekIs(toks, k, "NOT") {
		k++
	}
	if peekIs(toks, k, "DEFERRABLE") {
		k++
		if peekIs(toks, k, "INITIALLY") && (peekIs(toks, k+1, "DEFERRED") || peekIs(toks, k+1, "IMMEDIATE")) {
			k += 2
		}
		words := make([]string, 0, k-j)
		for _, t := range toks[j:k] {
			words = append(words, strings.ToUpper(t.text))
		}
		fk.Actions = append(fk.Actions, strings.Join(words, " "))
		j = k
	}
	return fk, j, nil
}

// inlineForeignKeys lifts column-level REFERENCES clauses into table-level
// foreign keys, named after a preceding CONSTRAINT name when there is one.
func inlineForeignKeys(specs []ColumnSpec) ([]KeyConstraint, error) {
	var fks []KeyConstraint
	for _, s := range specs {
		for mi, m := range s.Modifiers {
			if m.kind != modReferences {
				continue
			}
			fk, _, err := parseReferences(m.toks, 0)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", s.Name, err)
			}
			if len(fk.RefColumns) > 1 {
				return nil, fmt.Errorf("column %s: references %d columns", s.Name, len(fk.RefColumns))
			}
			if mi > 0 && s.Modifiers[mi-1].kind == modConstraintName {
				fk.Name = s.Modifiers[mi-1].word
			}
			fk.Columns = []string{s.Name}
			fks = append(fks, fk)
		}
	}
	return fks, nil
}

// parseReferentialAction parses ON DELETE|UPDATE <action> at toks[i]. next == i
// when there is no action there.
func parseReferentialAction(toks []token, i int) (string, int) {
	if !peekIs(toks, i, "ON") || !(peekIs(toks, i+1, "DELETE") || peekIs(toks, i+1, "UPDATE")) {
		return "", i
	}
	event := strings.ToUpper(toks[i+1].text)
	j := i + 2
	var action string
	switch {
	case peekIs(toks, j, "CASCADE"), peekIs(toks, j, "RESTRICT"):
		action = strings.ToUpper(toks[j].text)
		j++
	case peekIs(toks, j, "SET") && (peekIs(toks, j+1, "NULL") || peekIs(toks, j+1, "DEFAULT")):
		action = "SET " + strings.ToUpper(toks[j+1].text)
		j += 2
	case peekIs(toks, j, "NO") && peekIs(toks, j+1, "ACTION"):
		action = "NO ACTION"
		j += 2
	default:
		return "", i
	}
	return fmt.Sprintf("ON %s %s", event, action), j
}

// nextParen returns the index of the first '(' at or after i, skipping an
// index name and USING BTREE|HASH.
func nextParen(toks []token, i int) int {
	for i < len(toks) && toks[i].kind != tokLParen {
		i++
	}
	return i
}

// parseKeyColumns reads a key column list starting at toks[open]. Length
// qualifiers such as name(20) and ASC/DESC are dropped. It returns the column
// names and the index after the closing parenthesis.
func parseKeyColumns(toks []token, open int) ([]string, int, error) {
	if open >= len(toks) || toks[open].kind != tokLParen {
		return nil, 0, fmt.Errorf("missing column list")
	}
	end := matchParen(toks, open)
	if end < 0 {
		return nil, 0, fmt.Errorf("unbalanced column list")
	}

	var cols []string
	j := open + 1
	for j < end {
		if !toks[j].isName() {
			return nil, 0, fmt.Errorf("expression key part %q is not supported", renderTokens(toks[j:end]))
		}
		cols = append(cols, toks[j].text)
		j++
		for j < end && toks[j].kind != tokComma {
			if toks[j].kind == tokLParen {
				j = matchParen(toks, j)
			}
			j++
		}
		j++
	}
	if len(cols) == 0 {
		return nil, 0, fmt.Errorf("empty column list")
	}
	return cols, end + 1, nil
}
