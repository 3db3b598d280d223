package main

import (
	"fmt"
	"strings"
)

type clauseKind int

const (
	clauseUnknown clauseKind = iota
	clauseColumn
	clausePrimaryKey
	clauseUniqueKey
	clauseForeignKey
	clausePlainIndex
	clauseTextIndex
	clauseCheck
)

func (k clauseKind) String() string {
	switch k {
	case clauseColumn:
		return "column"
	case clausePrimaryKey:
		return "primary key"
	case clauseUniqueKey:
		return "unique key"
	case clauseForeignKey:
		return "foreign key"
	case clausePlainIndex:
		return "index"
	case clauseTextIndex:
		return "fulltext/spatial index"
	case clauseCheck:
		return "check constraint"
	default:
		return "unknown"
	}
}

// splitClauses splits the body of a CREATE TABLE statement into its top-level
// clauses. Commas only separate clauses at parenthesis depth zero, so type
// arguments, ENUM/SET value lists and key column lists stay intact; commas in
// string literals and comments never split either. Empty clauses are dropped.
func splitClauses(body string) ([]string, error) {
	toks, err := tokenize(body)
	if err != nil {
		return nil, err
	}

	var clauses []string
	depth := 0
	first := -1
	flush := func(last int) {
		if first >= 0 && last >= first {
			clauses = append(clauses, strings.TrimSpace(body[toks[first].start:toks[last].end]))
		}
		first = -1
	}
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ')' at offset %d", t.start)
			}
		case tokComma:
			if depth == 0 {
				flush(i - 1)
				continue
			}
		}
		if first < 0 {
			first = i
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '(' in table body")
	}
	flush(len(toks) - 1)
	return clauses, nil
}

// classifyClause labels one top-level clause. It is a pure function of the
// clause text.
func classifyClause(clause string) clauseKind {
	toks, err := tokenize(clause)
	if err != nil {
		return clauseUnknown
	}
	kind, _ := classifyTokens(toks)
	return kind
}

// classifyTokens returns the clause kind and the index of the first token
// after an optional CONSTRAINT [name] prefix.
func classifyTokens(toks []token) (clauseKind, int) {
	if len(toks) == 0 {
		return clauseUnknown, 0
	}

	i := 0
	named := false
	if toks[0].is("CONSTRAINT") {
		named = true
		i = 1
		if i < len(toks) && toks[i].isName() && !isConstraintKeyword(toks[i]) {
			i++
		}
		if i >= len(toks) {
			return clauseUnknown, i
		}
	}

	t := toks[i]
	switch {
	case t.is("PRIMARY") && peekIs(toks, i+1, "KEY"):
		return clausePrimaryKey, i
	case t.is("UNIQUE"):
		return clauseUniqueKey, i
	case t.is("FOREIGN") && peekIs(toks, i+1, "KEY"):
		return clauseForeignKey, i
	case t.is("CHECK"):
		return clauseCheck, i
	case named:
		return clauseUnknown, i
	case t.is("KEY"), t.is("INDEX"):
		return clausePlainIndex, i
	case (t.is("FULLTEXT") || t.is("SPATIAL")) && startsIndexBody(toks, i+1):
		return clauseTextIndex, i
	}

	if t.isName() && len(toks) > 1 && toks[1].kind == tokIdent {
		return clauseColumn, 0
	}
	return clauseUnknown, 0
}

func isConstraintKeyword(t token) bool {
	return t.is("PRIMARY") || t.is("UNIQUE") || t.is("FOREIGN") || t.is("CHECK")
}

func peekIs(toks []token, i int, word string) bool {
	return i < len(toks) && toks[i].is(word)
}

// startsIndexBody reports whether toks[i:] continues a FULLTEXT or SPATIAL
// index: KEY or INDEX, the key part list, or an index name and then the list.
// SPATIAL is not reserved, so "spatial INT" stays a column.
func startsIndexBody(toks []token, i int) bool {
	if i >= len(toks) {
		return false
	}
	switch t := toks[i]; {
	case t.is("KEY"), t.is("INDEX"), t.kind == tokLParen:
		return true
	case t.kind == tokQuotedIdent:
		return i+1 < len(toks) && toks[i+1].kind == tokLParen
	case t.kind == tokIdent:
		return i+1 < len(toks) && toks[i+1].kind == tokLParen && !isColumnTypeName(t.text)
	}
	return false
}

// isColumnTypeName reports whether word names a source column type.
func isColumnTypeName(word string) bool {
	word = strings.ToLower(word)
	if _, ok := typeMap[word]; ok {
		return true
	}
	return word == "enum" || word == "set"
}
