package main

import (
	"fmt"
	"os"
	"strings"
)

// readDumpFile reads a mysqldump-style SQL file and returns its CREATE TABLE
// statements in file order, plus the views, routines, triggers and events it
// defines. Keys added by a later ALTER TABLE are folded into the table; any
// other ALTER TABLE action is recorded as not applied. Data statements are
// ignored.
func readDumpFile(path string) ([]RawTableDDL, *SourceObjects, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dump: %w", err)
	}
	raws, objs := parseDump(string(data))
	return raws, objs, nil
}

// parseDump splits dump text into statements and sorts out the CREATE
// statements. A CREATE TABLE statement is kept verbatim even when it cannot
// be tokenized, so the translator reports the failure for that table.
func parseDump(sql string) ([]RawTableDDL, *SourceObjects) {
	var raws []RawTableDDL
	objs := &SourceObjects{}
	views := make(map[string]bool)
	tables := make(map[string]int)

	for i, stmt := range splitStatements(sql, mysqlDialect) {
		if isDumpAlterStatement(stmt) {
			applyDumpAlter(stmt, raws, tables, objs)
			continue
		}
		if isDumpDataStatement(stmt) {
			continue
		}
		kind, name, versioned := dumpCreateTarget(stmt)
		switch kind {
		case "TABLE":
			// mysqldump writes a placeholder table inside /*!50001 ... */
			// for every view before the real view definition.
			if versioned {
				continue
			}
			if name == "" {
				name = fmt.Sprintf("statement %d", i+1)
			}
			tables[strings.ToLower(name)] = len(raws)
			raws = append(raws, RawTableDDL{Name: name, DDL: stmt})
		case "VIEW":
			if !views[name] {
				views[name] = true
				objs.Views = append(objs.Views, name)
			}
		case "PROCEDURE":
			objs.Routines = append(objs.Routines, name+" (PROCEDURE)")
		case "FUNCTION":
			objs.Routines = append(objs.Routines, name+" (FUNCTION)")
		case "TRIGGER":
			objs.Triggers = append(objs.Triggers, name)
		case "EVENT":
			objs.Events = append(objs.Events, name)
		}
	}
	return raws, objs
}

// isDumpDataStatement reports statements that never define schema objects,
// checked on the leading keyword so large INSERTs are not tokenized.
func isDumpDataStatement(stmt string) bool {
	head := strings.ToUpper(skipLineComments(stmt))
	for _, kw := range []string{"INSERT", "REPLACE", "LOCK", "UNLOCK", "DROP", "USE", "SET"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

// isDumpAlterStatement reports ALTER statements, including the
// /*!40000 ALTER TABLE t DISABLE KEYS */ lines mysqldump writes.
func isDumpAlterStatement(stmt string) bool {
	head := strings.ToUpper(skipLineComments(stmt))
	if strings.HasPrefix(head, "/*!") {
		head = strings.TrimLeft(head[3:], "0123456789 \t\r\n")
	}
	return strings.HasPrefix(head, "ALTER")
}

// applyDumpAlter folds the key clauses of an ALTER TABLE into the CREATE TABLE
// statement read earlier for the same table. Actions that cannot be folded,
// and every action on a table the dump has not defined yet, are recorded in
// objs.Unapplied.
func applyDumpAlter(stmt string, raws []RawTableDDL, tables map[string]int, objs *SourceObjects) {
	table, clauses, rest, err := parseDumpAlter(stmt)
	if err != nil {
		objs.Unapplied = append(objs.Unapplied, fmt.Sprintf("%s (%v)", firstLine(stmt), err))
		return
	}
	if table == "" {
		return
	}
	for _, action := range rest {
		objs.Unapplied = append(objs.Unapplied, "ALTER TABLE "+table+" "+action)
	}
	if len(clauses) == 0 {
		return
	}

	idx, ok := tables[strings.ToLower(table)]
	if ok {
		ddl, err := appendTableClauses(raws[idx].DDL, clauses)
		if err == nil {
			raws[idx].DDL = ddl
			return
		}
	}
	for _, c := range clauses {
		objs.Unapplied = append(objs.Unapplied, "ALTER TABLE "+table+" ADD "+c)
	}
}

// parseDumpAlter splits ALTER TABLE name action[, action]... into ADD key
// clauses (PRIMARY KEY, UNIQUE, FOREIGN KEY, CHECK and indexes) and the
// remaining actions, both as source text. DISABLE KEYS and ENABLE KEYS are
// dropped. table is empty for ALTER statements on anything but a table.
func parseDumpAlter(stmt string) (table string, clauses, rest []string, err error) {
	toks, err := tokenize(stmt)
	if err != nil {
		return "", nil, nil, err
	}
	i := 1
	for peekIs(toks, i, "ONLINE") || peekIs(toks, i, "IGNORE") {
		i++
	}
	if !peekIs(toks, i, "TABLE") {
		return "", nil, nil, nil
	}
	i++
	for i < len(toks) && toks[i].isName() {
		table = toks[i].text
		i++
		if isOpToken(toks, i, ".") {
			i++
			continue
		}
		break
	}
	if table == "" {
		return "", nil, nil, fmt.Errorf("missing table name")
	}

	for _, action := range splitTopLevel(toks[i:]) {
		text := stmt[action[0].start:action[len(action)-1].end]
		switch {
		case len(action) == 2 && (action[0].is("DISABLE") || action[0].is("ENABLE")) && action[1].is("KEYS"):
		case action[0].is("ADD") && len(action) > 1 && isKeyClause(action[1:]):
			clauses = append(clauses, stmt[action[1].start:action[len(action)-1].end])
		default:
			rest = append(rest, text)
		}
	}
	return table, clauses, rest, nil
}

func isKeyClause(toks []token) bool {
	switch kind, _ := classifyTokens(toks); kind {
	case clausePrimaryKey, clauseUniqueKey, clauseForeignKey, clauseCheck, clausePlainIndex, clauseTextIndex:
		return true
	}
	return false
}

// splitTopLevel splits toks on commas outside parentheses. Empty runs are
// dropped.
func splitTopLevel(toks []token) [][]token {
	var parts [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokComma:
			if depth == 0 {
				if i > start {
					parts = append(parts, toks[start:i])
				}
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts
}

// appendTableClauses adds clauses at the end of a CREATE TABLE body.
func appendTableClauses(ddl string, clauses []string) (string, error) {
	toks, err := tokenize(ddl)
	if err != nil {
		return "", err
	}
	for i, t := range toks {
		if t.kind != tokLParen {
			continue
		}
		end := matchParen(toks, i)
		if end < 0 {
			return "", fmt.Errorf("unbalanced parentheses")
		}
		head := strings.TrimRight(ddl[:toks[end].start], " \t\r\n")
		return head + ",\n  " + strings.Join(clauses, ",\n  ") + "\n" + ddl[toks[end].start:], nil
	}
	return "", fmt.Errorf("no table body")
}

func firstLine(s string) string {
	s = skipLineComments(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func skipLineComments(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if !strings.HasPrefix(s, "--") && !strings.HasPrefix(s, "#") {
			return s
		}
		end := strings.IndexByte(s, '\n')
		if end < 0 {
			return ""
		}
		s = s[end+1:]
	}
}

// dumpCreateTarget returns the object kind and name of a CREATE statement,
// skipping OR REPLACE, ALGORITHM, DEFINER and SQL SECURITY attributes. kind is
// empty for anything else. versioned reports that CREATE appears inside a
// /*!NNNNN ... */ comment.
func dumpCreateTarget(stmt string) (kind, name string, versioned bool) {
	toks, err := tokenize(stmt)
	if err != nil {
		if strings.HasPrefix(strings.ToUpper(skipLineComments(stmt)), "CREATE TABLE") {
			return "TABLE", "", false
		}
		return "", "", false
	}
	if len(toks) == 0 || !toks[0].is("CREATE") {
		return "", "", false
	}
	versioned = strings.HasPrefix(skipLineComments(stmt), "/*!")

	for i := 1; i < len(toks); i++ {
		if toks[i].kind != tokIdent {
			continue
		}
		switch word := strings.ToUpper(toks[i].text); word {
		case "TABLE", "VIEW", "PROCEDURE", "FUNCTION", "TRIGGER", "EVENT":
			return word, objectName(toks, i+1), versioned
		case "DATABASE", "SCHEMA", "INDEX", "UNIQUE", "FULLTEXT", "SPATIAL", "USER", "ROLE":
			return "", "", false
		case "DEFINER":
			// DEFINER = user[@host]; SQL SECURITY DEFINER has no operand.
			if !isOpToken(toks, i+1, "=") {
				continue
			}
			i += 2
			if isOpToken(toks, i+1, "@") {
				i += 2
			}
		}
	}
	return "", "", false
}

// objectName reads [IF NOT EXISTS] [db.]name starting at toks[i].
func objectName(toks []token, i int) string {
	if peekIs(toks, i, "IF") && peekIs(toks, i+1, "NOT") && peekIs(toks, i+2, "EXISTS") {
		i += 3
	}
	name := ""
	for i < len(toks) && toks[i].isName() {
		name = toks[i].text
		i++
		if i < len(toks) && toks[i].kind == tokOp && toks[i].text == "." {
			i++
			continue
		}
		break
	}
	return name
}

func isOpToken(toks []token, i int, op string) bool {
	return i < len(toks) && toks[i].kind == tokOp && toks[i].text == op
}
