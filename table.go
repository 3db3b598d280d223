package main

import (
	"fmt"
	"strings"
)

// createTableStmt is the structural split of one CREATE TABLE statement.
type createTableStmt struct {
	Name    string
	Body    string
	Comment string
	// HasComment distinguishes COMMENT='' from no table comment at all.
	HasComment   bool
	WithoutRowid bool // SQLite WITHOUT ROWID table
}

// parseCreateTable matches CREATE [TEMPORARY] TABLE [IF NOT EXISTS] [db.]name
// ( body ) [table options].
func parseCreateTable(ddl string) (createTableStmt, error) {
	toks, err := tokenize(ddl)
	if err != nil {
		return createTableStmt{}, err
	}

	i := 0
	if !peekIs(toks, i, "CREATE") {
		return createTableStmt{}, fmt.Errorf("statement does not start with CREATE")
	}
	i++
	if peekIs(toks, i, "TEMPORARY") {
		i++
	}
	if !peekIs(toks, i, "TABLE") {
		return createTableStmt{}, fmt.Errorf("not a CREATE TABLE statement")
	}
	i++
	if peekIs(toks, i, "IF") && peekIs(toks, i+1, "NOT") && peekIs(toks, i+2, "EXISTS") {
		i += 3
	}

	var stmt createTableStmt
	for i < len(toks) && toks[i].isName() {
		stmt.Name = toks[i].text
		i++
		if i < len(toks) && toks[i].kind == tokOp && toks[i].text == "." {
			i++
			continue
		}
		break
	}
	if stmt.Name == "" {
		return createTableStmt{}, fmt.Errorf("missing table name")
	}

	if i >= len(toks) || toks[i].kind != tokLParen {
		return createTableStmt{}, fmt.Errorf("table %s: expected '(' after the table name", stmt.Name)
	}
	end := matchParen(toks, i)
	if end < 0 {
		return createTableStmt{}, fmt.Errorf("table %s: unbalanced parentheses", stmt.Name)
	}
	stmt.Body = ddl[toks[i].end:toks[end].start]

	// Table options: ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='...'
	for j := end + 1; j < len(toks); j++ {
		if toks[j].is("WITHOUT") && peekIs(toks, j+1, "ROWID") {
			stmt.WithoutRowid = true
			continue
		}
		if !toks[j].is("COMMENT") {
			continue
		}
		k := j + 1
		if k < len(toks) && toks[k].kind == tokOp && toks[k].text == "=" {
			k++
		}
		if k >= len(toks) {
			continue
		}
		if lit, ok := asStringLiteral(toks[k]); ok {
			stmt.Comment = lit.text
			stmt.HasComment = true
		}
	}
	return stmt, nil
}

// TranslatedTable is one table in PostgreSQL form. Columns and constraints
// stay structured until DDL renders them, so removing a constraint can never
// leave a dangling comma behind.
type TranslatedTable struct {
	Name        string // key of the input schema map
	SourceName  string // name as written in the CREATE TABLE statement
	TargetName  string // PostgreSQL identifier, folded and quoted as needed
	Columns     []TranslatedColumn
	Constraints []KeyConstraint
	Comment     string
	HasComment  bool
	Collations  map[string]int
	Warnings    []string
}

// DDL renders the CREATE TABLE statement.
func (t TranslatedTable) DDL() string {
	return t.createStatement("")
}

func (t TranslatedTable) createStatement(schema string) string {
	lines := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		lines = append(lines, c.Line)
	}
	for _, k := range t.Constraints {
		lines = append(lines, k.String())
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n);", t.qualifiedName(schema), strings.Join(lines, ",\n    "))
}

func (t TranslatedTable) qualifiedName(schema string) string {
	if schema == "" {
		return t.TargetName
	}
	return pgIdent(schema) + "." + t.TargetName
}

// commentStatements returns COMMENT ON statements for the table and its columns.
func (t TranslatedTable) commentStatements(schema string) []string {
	var stmts []string
	name := t.qualifiedName(schema)
	if t.HasComment {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", name, pgLiteral(t.Comment)))
	}
	for _, c := range t.Columns {
		if c.HasComment {
			stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", name, pgIdent(c.Name), pgLiteral(c.Comment)))
		}
	}
	return stmts
}

// foreignKeys returns the FOREIGN KEY constraints of the table.
func (t TranslatedTable) foreignKeys() []KeyConstraint {
	var fks []KeyConstraint
	for _, k := range t.Constraints {
		if k.Kind == constraintForeignKey {
			fks = append(fks, k)
		}
	}
	return fks
}

// column looks up a column by its folded PostgreSQL name.
func (t TranslatedTable) column(name string) (TranslatedColumn, bool) {
	if i := t.columnIndex(name); i >= 0 {
		return t.Columns[i], true
	}
	return TranslatedColumn{}, false
}

func (t TranslatedTable) columnIndex(name string) int {
	name = strings.ToLower(name)
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// translateTable turns one source CREATE TABLE statement into its PostgreSQL
// form. Column lines keep declaration order and precede every constraint.
func translateTable(raw RawTableDDL, opts TranslateOptions) (TranslatedTable, error) {
	stmt, err := parseCreateTable(raw.DDL)
	if err != nil {
		return TranslatedTable{}, err
	}
	clauses, err := splitClauses(stmt.Body)
	if err != nil {
		return TranslatedTable{}, err
	}

	name := raw.Name
	if name == "" {
		name = stmt.Name
	}
	out := TranslatedTable{
		Name:       name,
		SourceName: stmt.Name,
		TargetName: identName(stmt.Name),
		Comment:    stmt.Comment,
		HasComment: stmt.HasComment,
	}
	warnf := func(format string, args ...any) {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: ", stmt.Name)+fmt.Sprintf(format, args...))
	}

	var specs []ColumnSpec
	for _, clause := range clauses {
		switch kind := classifyClause(clause); kind {
		case clauseColumn:
			spec, err := parseColumn(clause)
			if err != nil {
				return TranslatedTable{}, err
			}
			specs = append(specs, spec)

		case clausePrimaryKey, clauseUniqueKey, clauseForeignKey, clauseCheck:
			kc, err := parseConstraint(clause)
			if err != nil {
				return TranslatedTable{}, fmt.Errorf("%s %q: %w", kind, clause, err)
			}
			if kind != clauseCheck {
				for _, part := range prefixKeyParts(clause) {
					warnf("%s part %s: prefix length ignored, the whole value is constrained", kind, part)
				}
			}
			if kc.Kind == constraintCheck && !kc.Enforced {
				warnf("CHECK %s dropped: NOT ENFORCED in source", kc.Check)
				continue
			}
			out.Constraints = append(out.Constraints, kc)

		case clausePlainIndex, clauseTextIndex:
			warnf("index %s dropped: %s", indexName(clause), indexDropReason(kind))

		default:
			if opts.UnrecognizedClauses == "error" {
				return TranslatedTable{}, fmt.Errorf("unrecognized clause %q", clause)
			}
			warnf("unrecognized clause skipped: %s", clause)
		}
	}
	if len(specs) == 0 {
		return TranslatedTable{}, fmt.Errorf("table %s has no columns", stmt.Name)
	}

	if opts.Dialect == dialectSQLite {
		fks, err := inlineForeignKeys(specs)
		if err != nil {
			return TranslatedTable{}, err
		}
		out.Constraints = append(out.Constraints, fks...)
		if !stmt.WithoutRowid {
			specs = markRowidAlias(specs, out.Constraints)
		}
	}
	specs, out.Constraints = foldSerialPrimaryKey(specs, out.Constraints)

	ct := newColumnTranslator(stmt.Name, opts)
	for _, spec := range specs {
		col, err := ct.translate(spec)
		if err != nil {
			return TranslatedTable{}, err
		}
		out.Columns = append(out.Columns, col)
	}
	out.Warnings = append(out.Warnings, ct.warnings...)
	out.Collations = ct.collations
	return out, nil
}

// foldSerialPrimaryKey moves a single-column table-level PRIMARY KEY onto its
// auto-increment column, giving "id SERIAL PRIMARY KEY".
func foldSerialPrimaryKey(specs []ColumnSpec, constraints []KeyConstraint) ([]ColumnSpec, []KeyConstraint) {
	for _, s := range specs {
		if s.PrimaryKey {
			return specs, constraints
		}
	}
	for ci, k := range constraints {
		if k.Kind != constraintPrimaryKey || len(k.Columns) != 1 {
			continue
		}
		for si, s := range specs {
			if !s.AutoIncrement || !strings.EqualFold(s.Name, k.Columns[0]) {
				continue
			}
			folded := make([]ColumnSpec, len(specs))
			copy(folded, specs)
			folded[si].PrimaryKey = true

			rest := make([]KeyConstraint, 0, len(constraints)-1)
			rest = append(rest, constraints[:ci]...)
			rest = append(rest, constraints[ci+1:]...)
			return folded, rest
		}
		break
	}
	return specs, constraints
}

// markRowidAlias makes the primary key column auto-increment when it is the
// only key column and declared exactly INTEGER. SQLite fills such a column
// from the rowid whenever an insert leaves it out.
func markRowidAlias(specs []ColumnSpec, constraints []KeyConstraint) []ColumnSpec {
	var keyCols []string
	for _, s := range specs {
		if s.PrimaryKey {
			keyCols = append(keyCols, s.Name)
		}
	}
	for _, k := range constraints {
		if k.Kind == constraintPrimaryKey {
			keyCols = append(keyCols, k.Columns...)
		}
	}
	if len(keyCols) != 1 {
		return specs
	}
	for i, s := range specs {
		if !strings.EqualFold(s.Name, keyCols[0]) || s.TypeName != "integer" || s.TypeArgs != "" || s.AutoIncrement {
			continue
		}
		marked := make([]ColumnSpec, len(specs))
		copy(marked, specs)
		marked[i].AutoIncrement = true
		return marked
	}
	return specs
}
