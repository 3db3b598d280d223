package main

import (
	"fmt"
	"strings"
)

// indexDropReason explains why an index clause has no counterpart in the
// translated table.
func indexDropReason(kind clauseKind) string {
	if kind == clauseTextIndex {
		return "FULLTEXT/SPATIAL indexes have no PostgreSQL equivalent"
	}
	return "secondary indexes are not recreated"
}

// indexName returns the name of a plain or FULLTEXT/SPATIAL index clause.
func indexName(clause string) string {
	toks, err := tokenize(clause)
	if err != nil {
		return ""
	}
	for _, t := range toks {
		if t.kind == tokLParen {
			break
		}
		if t.kind == tokQuotedIdent || t.kind == tokIdent && !isIndexKeyword(t) {
			return t.text
		}
	}
	return ""
}

func isIndexKeyword(t token) bool {
	switch strings.ToUpper(t.text) {
	case "KEY", "INDEX", "FULLTEXT", "SPATIAL", "UNIQUE", "USING", "BTREE", "HASH":
		return true
	}
	return false
}

// prefixKeyParts returns the key parts of a key clause that index only a
// prefix of the column, rendered as name(n). PostgreSQL keys always cover the
// whole value.
func prefixKeyParts(clause string) []string {
	toks, err := tokenize(clause)
	if err != nil {
		return nil
	}
	open := nextParen(toks, 0)
	if open >= len(toks) {
		return nil
	}
	end := matchParen(toks, open)
	if end < 0 {
		return nil
	}

	var parts []string
	for j := open + 1; j < end; j++ {
		if !toks[j].isName() || j+3 >= len(toks) {
			continue
		}
		if toks[j+1].kind == tokLParen && toks[j+2].kind == tokNumber && toks[j+3].kind == tokRParen {
			parts = append(parts, fmt.Sprintf("%s(%s)", toks[j].text, toks[j+2].text))
			j += 3
		}
	}
	return parts
}
