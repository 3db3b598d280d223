package main

import (
	"fmt"
	"math"
	"strings"
)

type modifierKind int

const (
	modOther modifierKind = iota
	modNotNull
	modNull
	modDefault
	modOnUpdate
	modComment
	modCharset
	modCollate
	modAutoIncrement
	modPrimaryKey
	modUnique
	modGenerated
	modCheck
	modReferences
	modConstraintName
	modStripped // UNSIGNED, ZEROFILL, VISIBLE, SRID n, STORAGE x, ...
)

// columnModifier is one attribute that follows the column type, kept in
// declaration order. toks holds every token of the modifier; expr holds the
// operand of DEFAULT, ON UPDATE, GENERATED and CHECK.
type columnModifier struct {
	kind modifierKind
	toks []token
	expr []token
	word string
}

// ColumnSpec is one parsed column definition.
type ColumnSpec struct {
	Name          string
	TypeName      string // lower case, e.g. "varchar", "double precision"
	TypeArgs      string // bracketed modifier as written, e.g. "(10,2)"
	Unsigned      bool
	Modifiers     []columnModifier
	AutoIncrement bool
	PrimaryKey    bool
	Unique        bool
	Generated     bool
	GeneratedExpr string
	Comment       string
	HasComment    bool

	typeArgToks   []token
	generatedToks []token
}

// parseColumn parses a column-definition clause.
func parseColumn(clause string) (ColumnSpec, error) {
	toks, err := tokenize(clause)
	if err != nil {
		return ColumnSpec{}, err
	}
	if len(toks) < 2 || !toks[0].isName() || toks[1].kind != tokIdent {
		return ColumnSpec{}, fmt.Errorf("not a column definition: %q", clause)
	}

	col := ColumnSpec{Name: toks[0].text}
	if col.Name == "" {
		return ColumnSpec{}, fmt.Errorf("empty column name in %q", clause)
	}
	col.TypeName = strings.ToLower(toks[1].text)
	i := 2
	if col.TypeName == "double" && peekIs(toks, i, "PRECISION") {
		col.TypeName = "double precision"
		i++
	}
	if i < len(toks) && toks[i].kind == tokLParen {
		end := matchParen(toks, i)
		if end < 0 {
			return ColumnSpec{}, fmt.Errorf("column %s: unbalanced type arguments", col.Name)
		}
		col.typeArgToks = toks[i : end+1]
		col.TypeArgs = renderTokens(col.typeArgToks)
		i = end + 1
	}

	for i < len(toks) {
		m, next, err := parseModifier(toks, i)
		if err != nil {
			return ColumnSpec{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		switch m.kind {
		case modAutoIncrement:
			col.AutoIncrement = true
		case modPrimaryKey:
			col.PrimaryKey = true
		case modUnique:
			col.Unique = true
		case modGenerated:
			col.Generated = true
			col.generatedToks = m.expr
			col.GeneratedExpr = renderTokens(m.expr)
		case modComment:
			col.Comment = m.word
			col.HasComment = true
		case modStripped:
			if m.toks[0].is("UNSIGNED") {
				col.Unsigned = true
			}
		}
		col.Modifiers = append(col.Modifiers, m)
		i = next
	}
	return col, nil
}

func parseModifier(toks []token, i int) (columnModifier, int, error) {
	t := toks[i]
	mod := func(kind modifierKind, n int) (columnModifier, int, error) {
		return columnModifier{kind: kind, toks: toks[i : i+n]}, i + n, nil
	}

	switch {
	case t.is("NOT") && peekIs(toks, i+1, "NULL"):
		return mod(modNotNull, 2)
	case t.is("NULL"):
		return mod(modNull, 1)
	case t.is("DEFAULT"):
		m, next, err := parseOperandModifier(modDefault, toks, i, i+1)
		if err == nil && len(m.expr) == 1 {
			if lit, ok := asStringLiteral(m.expr[0]); ok {
				m.expr = []token{lit}
			}
		}
		return m, next, err
	case t.is("ON") && peekIs(toks, i+1, "UPDATE"):
		return parseOperandModifier(modOnUpdate, toks, i, i+2)
	case t.is("COMMENT"):
		if i+1 >= len(toks) {
			return columnModifier{}, 0, fmt.Errorf("COMMENT without a string literal")
		}
		lit, ok := asStringLiteral(toks[i+1])
		if !ok {
			return columnModifier{}, 0, fmt.Errorf("COMMENT without a string literal")
		}
		return columnModifier{kind: modComment, toks: toks[i : i+2], word: lit.text}, i + 2, nil
	case t.is("CHARACTER") && peekIs(toks, i+1, "SET"):
		return parseWordModifier(modCharset, toks, i, i+2)
	case t.is("CHARSET"):
		return parseWordModifier(modCharset, toks, i, i+1)
	case t.is("COLLATE"):
		return parseWordModifier(modCollate, toks, i, i+1)
	case t.is("AUTO_INCREMENT"), t.is("AUTOINCREMENT"):
		return mod(modAutoIncrement, 1)
	case t.is("PRIMARY") && peekIs(toks, i+1, "KEY"):
		return mod(modPrimaryKey, 2)
	case t.is("KEY"):
		return mod(modPrimaryKey, 1)
	case t.is("UNIQUE"):
		if peekIs(toks, i+1, "KEY") {
			return mod(modUnique, 2)
		}
		return mod(modUnique, 1)
	case t.is("GENERATED") && peekIs(toks, i+1, "ALWAYS") && peekIs(toks, i+2, "AS"):
		return parseGenerated(toks, i, i+3)
	case t.is("AS") && i+1 < len(toks) && toks[i+1].kind == tokLParen:
		return parseGenerated(toks, i, i+1)
	case t.is("CHECK"):
		if i+1 >= len(toks) || toks[i+1].kind != tokLParen {
			return columnModifier{}, 0, fmt.Errorf("CHECK without a parenthesized expression")
		}
		end := matchParen(toks, i+1)
		if end < 0 {
			return columnModifier{}, 0, fmt.Errorf("unbalanced CHECK expression")
		}
		return columnModifier{kind: modCheck, toks: toks[i : end+1], expr: toks[i+1 : end+1]}, end + 1, nil
	case t.is("REFERENCES"):
		_, next, err := parseReferences(toks, i)
		if err != nil {
			return columnModifier{}, 0, fmt.Errorf("REFERENCES: %w", err)
		}
		return columnModifier{kind: modReferences, toks: toks[i:next]}, next, nil
	case t.is("CONSTRAINT"):
		if i+1 < len(toks) && toks[i+1].isName() && !isConstraintKeyword(toks[i+1]) && !toks[i+1].is("REFERENCES") && !toks[i+1].is("NOT") {
			return columnModifier{kind: modConstraintName, toks: toks[i : i+2], word: toks[i+1].text}, i + 2, nil
		}
		return mod(modConstraintName, 1)
	case t.is("UNSIGNED"), t.is("SIGNED"), t.is("ZEROFILL"), t.is("VISIBLE"), t.is("INVISIBLE"), t.is("ENFORCED"):
		return mod(modStripped, 1)
	case t.is("NOT") && peekIs(toks, i+1, "ENFORCED"):
		return mod(modStripped, 2)
	case t.is("SRID"), t.is("COLUMN_FORMAT"), t.is("STORAGE"), t.is("ENGINE_ATTRIBUTE"), t.is("SECONDARY_ENGINE_ATTRIBUTE"):
		if i+1 >= len(toks) {
			return mod(modStripped, 1)
		}
		n := 2
		if toks[i+1].kind == tokOp && toks[i+1].text == "=" {
			n = 3
		}
		if i+n > len(toks) {
			n = len(toks) - i
		}
		return mod(modStripped, n)
	default:
		return mod(modOther, 1)
	}
}

func parseWordModifier(kind modifierKind, toks []token, i, operand int) (columnModifier, int, error) {
	if operand >= len(toks) || !toks[operand].isName() && toks[operand].kind != tokString {
		return columnModifier{}, 0, fmt.Errorf("%s without a name", strings.ToUpper(toks[i].text))
	}
	return columnModifier{kind: kind, toks: toks[i : operand+1], word: toks[operand].text}, operand + 1, nil
}

func parseOperandModifier(kind modifierKind, toks []token, i, operand int) (columnModifier, int, error) {
	end, err := operandEnd(toks, operand)
	if err != nil {
		return columnModifier{}, 0, fmt.Errorf("%s: %w", strings.ToUpper(toks[i].text), err)
	}
	return columnModifier{kind: kind, toks: toks[i:end], expr: toks[operand:end]}, end, nil
}

// operandEnd returns the index just past a DEFAULT / ON UPDATE operand: a
// parenthesized expression, a signed number, a function call, or one token.
func operandEnd(toks []token, i int) (int, error) {
	if i >= len(toks) {
		return 0, fmt.Errorf("missing value")
	}
	t := toks[i]
	switch {
	case t.kind == tokLParen:
		end := matchParen(toks, i)
		if end < 0 {
			return 0, fmt.Errorf("unbalanced expression")
		}
		return end + 1, nil
	case t.kind == tokOp && (t.text == "-" || t.text == "+") && i+1 < len(toks) && toks[i+1].kind == tokNumber:
		return i + 2, nil
	case t.kind == tokIdent && i+1 < len(toks) && toks[i+1].kind == tokLParen && toks[i+1].start == t.end:
		end := matchParen(toks, i+1)
		if end < 0 {
			return 0, fmt.Errorf("unbalanced function call")
		}
		return end + 1, nil
	case t.kind == tokComma || t.kind == tokRParen:
		return 0, fmt.Errorf("missing value")
	}
	return i + 1, nil
}

func parseGenerated(toks []token, i, open int) (columnModifier, int, error) {
	if open >= len(toks) || toks[open].kind != tokLParen {
		return columnModifier{}, 0, fmt.Errorf("generated column without a parenthesized expression")
	}
	end := matchParen(toks, open)
	if end < 0 {
		return columnModifier{}, 0, fmt.Errorf("unbalanced generated expression")
	}
	m := columnModifier{kind: modGenerated, expr: toks[open : end+1], word: "VIRTUAL"}
	next := end + 1
	if next < len(toks) && (toks[next].is("VIRTUAL") || toks[next].is("STORED") || toks[next].is("PERSISTENT")) {
		m.word = strings.ToUpper(toks[next].text)
		next++
	}
	m.toks = toks[i:next]
	return m, next, nil
}

// TranslatedColumn is one column rendered for PostgreSQL.
type TranslatedColumn struct {
	Name       string // PostgreSQL column name (folded)
	SourceName string
	SourceType string
	TargetType string
	Line       string
	Serial     bool
	Generated  bool
	PrimaryKey bool
	Unique     bool
	Comment    string
	HasComment bool
}

// retype swaps the PostgreSQL type of an already rendered column.
func (c *TranslatedColumn) retype(typ string) {
	prefix := identName(c.SourceName) + " " + c.TargetType
	c.Line = identName(c.SourceName) + " " + typ + strings.TrimPrefix(c.Line, prefix)
	c.TargetType = typ
}

// columnTranslator renders the columns of one table in declaration order. It
// remembers which earlier columns stayed generated so chained generated
// columns can be flattened.
type columnTranslator struct {
	table      string
	opts       TranslateOptions
	generated  map[string]bool
	collations map[string]int
	warnings   []string
}

func newColumnTranslator(table string, opts TranslateOptions) *columnTranslator {
	return &columnTranslator{
		table:      table,
		opts:       opts,
		generated:  make(map[string]bool),
		collations: make(map[string]int),
	}
}

func (ct *columnTranslator) warnf(col, format string, args ...any) {
	ct.warnings = append(ct.warnings, fmt.Sprintf("%s.%s: ", ct.table, col)+fmt.Sprintf(format, args...))
}

func (ct *columnTranslator) translate(col ColumnSpec) (TranslatedColumn, error) {
	if col.Generated {
		if dep, ok := referencesAny(col.generatedToks, ct.generated); ok {
			ct.warnf(col.Name, "generated expression depends on generated column %s; emitted as a plain column", dep)
			col = flattenGenerated(col)
		} else {
			ct.generated[strings.ToLower(col.Name)] = true
		}
	}

	name := identName(col.Name)
	out := TranslatedColumn{
		Name:       strings.ToLower(col.Name),
		SourceName: col.Name,
		SourceType: col.TypeName,
		Generated:  col.Generated,
		PrimaryKey: col.PrimaryKey,
		Unique:     col.Unique,
		Comment:    col.Comment,
		HasComment: col.HasComment,
	}

	var parts []string
	switch {
	case col.TypeName == "enum":
		out.TargetType = "TEXT"
		parts = append(parts, name, out.TargetType)
		parts = append(parts, ct.renderModifiers(col, out.TargetType, nil)...)
		if values := innerTokens(col.typeArgToks); len(values) > 0 {
			parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", name, renderTokens(values)))
		}

	case col.TypeName == "set":
		out.TargetType = "TEXT[]"
		parts = append(parts, name, out.TargetType)
		parts = append(parts, ct.renderModifiers(col, out.TargetType, nil)...)
		if col.TypeArgs != "" {
			values, err := enumSetValues(col.typeArgToks)
			if err != nil {
				return TranslatedColumn{}, fmt.Errorf("column %s: %w", col.Name, err)
			}
			parts = append(parts, fmt.Sprintf("CHECK (%s <@ ARRAY[%s])", name, literalList(values, ",")))
		}

	case col.AutoIncrement:
		out.TargetType = serialType(col, ct.opts)
		out.Serial = true
		parts = append(parts, name, out.TargetType)
		switch {
		case !isIntegerType(col.TypeName):
			ct.warnf(col.Name, "AUTO_INCREMENT on %s column mapped to %s", col.TypeName, out.TargetType)
		case col.TypeName == "bigint" && col.Unsigned && ct.opts.WidenUnsignedIntegers:
			ct.warnf(col.Name, "BIGINT UNSIGNED AUTO_INCREMENT mapped to BIGSERIAL: ids above %d do not fit", int64(math.MaxInt64))
		}
		if col.PrimaryKey {
			if ct.opts.SerialNotNull && hasModifier(col, modNotNull) {
				parts = append(parts, "NOT NULL")
			}
			parts = append(parts, "PRIMARY KEY")
			break
		}
		skip := map[modifierKind]bool{modDefault: true}
		if !ct.opts.SerialNotNull {
			skip[modNotNull] = true
		}
		parts = append(parts, ct.renderModifiers(col, out.TargetType, skip)...)

	default:
		typ, known := mapScalarType(col, ct.opts)
		if !known {
			ct.warnf(col.Name, "unknown type %s%s mapped to TEXT", col.TypeName, col.TypeArgs)
		} else if rule := typeMap[col.TypeName]; rule.lossy != "" && typ == rule.target {
			ct.warnf(col.Name, "%s mapped to %s: %s", col.TypeName, typ, rule.lossy)
		}
		out.TargetType = typ
		parts = append(parts, name, typ)
		parts = append(parts, ct.renderModifiers(col, typ, nil)...)
	}

	out.Line = strings.Join(parts, " ")
	return out, nil
}

// renderModifiers emits the modifiers PostgreSQL understands, in source order.
// MySQL-only attributes are dropped; dropped behavior is reported.
func (ct *columnTranslator) renderModifiers(col ColumnSpec, targetType string, skip map[modifierKind]bool) []string {
	var out []string
	for _, m := range col.Modifiers {
		if skip[m.kind] {
			continue
		}
		switch m.kind {
		case modCharset, modCollate:
			ct.collations[strings.ToLower(m.word)]++
		case modOnUpdate:
			ct.warnf(col.Name, "ON UPDATE %s dropped; the value is not refreshed on update", renderTokens(m.expr))
		case modReferences:
			if ct.opts.Dialect == dialectMySQL {
				ct.warnf(col.Name, "inline %s ignored (not enforced by MySQL)", renderTokens(m.toks))
			}
		case modComment, modStripped, modAutoIncrement, modConstraintName:
		case modPrimaryKey:
			out = append(out, "PRIMARY KEY")
		case modUnique:
			out = append(out, "UNIQUE")
		case modDefault:
			if d := ct.renderDefault(col, targetType, m); d != "" {
				out = append(out, d)
			}
		case modGenerated:
			out = append(out, "GENERATED ALWAYS AS "+renderTokens(m.expr)+" STORED")
		default:
			out = append(out, renderTokens(m.toks))
		}
	}
	return out
}

func (ct *columnTranslator) renderDefault(col ColumnSpec, targetType string, m columnModifier) string {
	expr := m.expr
	if len(expr) == 1 {
		t := expr[0]
		literal := t.kind == tokString || t.kind == tokNumber
		switch {
		case t.kind == tokString && isTemporalType(col.TypeName) && strings.HasPrefix(t.text, "0000-00-00"):
			ct.warnf(col.Name, "zero-date default %s dropped", pgLiteral(t.text))
			return ""
		case t.kind == tokString && targetType == "TEXT[]":
			vals := parseMySQLSetDefault(t.text)
			if len(vals) == 0 {
				return "DEFAULT ARRAY[]::text[]"
			}
			return fmt.Sprintf("DEFAULT ARRAY[%s]::text[]", literalList(vals, ", "))
		case literal && targetType == "BOOLEAN":
			switch t.text {
			case "0":
				return "DEFAULT FALSE"
			case "1":
				return "DEFAULT TRUE"
			}
		}
	}
	return "DEFAULT " + renderTokens(expr)
}

func hasModifier(col ColumnSpec, kind modifierKind) bool {
	for _, m := range col.Modifiers {
		if m.kind == kind {
			return true
		}
	}
	return false
}

// flattenGenerated turns a generated column into an ordinary typed column.
func flattenGenerated(col ColumnSpec) ColumnSpec {
	mods := make([]columnModifier, 0, len(col.Modifiers))
	for _, m := range col.Modifiers {
		if m.kind != modGenerated {
			mods = append(mods, m)
		}
	}
	col.Modifiers = mods
	col.Generated = false
	col.GeneratedExpr = ""
	col.generatedToks = nil
	return col
}

// referencesAny reports the first identifier in toks naming a column in names.
func referencesAny(toks []token, names map[string]bool) (string, bool) {
	for _, t := range toks {
		if t.isName() && names[strings.ToLower(t.text)] {
			return t.text, true
		}
	}
	return "", false
}

// innerTokens strips the outer parentheses of a parenthesized token run.
func innerTokens(toks []token) []token {
	if len(toks) < 2 {
		return nil
	}
	return toks[1 : len(toks)-1]
}

func literalList(values []string, sep string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = pgLiteral(v)
	}
	return strings.Join(quoted, sep)
}
