package main

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokComma
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokIdent:
		return "IDENT"
	case tokQuotedIdent:
		return "QUOTED_IDENT"
	case tokString:
		return "STRING"
	case tokNumber:
		return "NUMBER"
	case tokLParen:
		return "LPAREN"
	case tokRParen:
		return "RPAREN"
	case tokComma:
		return "COMMA"
	case tokOp:
		return "OP"
	default:
		return "UNKNOWN"
	}
}

// token is one lexeme of MySQL/SQLite DDL. start and end are byte offsets into
// the tokenized source, so callers can slice verbatim text back out.
type token struct {
	kind   tokenKind
	text   string // identifier name (unquoted), decoded string value, or literal text
	raw    string
	prefix string // string introducer such as b, x or _utf8mb4
	start  int
	end    int
}

// is reports whether t is the bare keyword word (case-insensitive).
func (t token) is(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (t token) isName() bool {
	return t.kind == tokIdent || t.kind == tokQuotedIdent
}

// asStringLiteral returns t as a string literal when it is one, or when it is
// "..." text in a position that only takes a literal. MySQL reads "..." as a
// string outside ANSI_QUOTES mode, and SQLite treats a DEFAULT identifier as
// a string.
func asStringLiteral(t token) (token, bool) {
	switch {
	case t.kind == tokString:
		return t, true
	case t.kind == tokQuotedIdent && strings.HasPrefix(t.raw, `"`):
		t.kind = tokString
		return t, true
	}
	return t, false
}

type lexer struct {
	src       string
	pos       int
	toks      []token
	versioned bool // inside a /*!NNNNN ... */ comment
}

// tokenize splits src into tokens. Whitespace and comments are dropped. The
// body of a MySQL versioned comment (/*!80016 NOT ENFORCED */) is lexed as
// ordinary SQL, the way a current server reads it; a clause sliced out of
// one may lack the closing */.
func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if l.pos >= len(l.src) {
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '#', c == '-' && strings.HasPrefix(l.src[l.pos:], "--"):
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end + 1
			}
		case c == '/' && strings.HasPrefix(l.src[l.pos:], "/*!") && !l.versioned:
			l.pos += 3
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
			l.versioned = true
		case c == '*' && l.versioned && strings.HasPrefix(l.src[l.pos:], "*/"):
			l.pos += 2
			l.versioned = false
		case c == '/' && strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return fmt.Errorf("unterminated comment at offset %d", l.pos)
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) emit(kind tokenKind, text string, start int) {
	l.toks = append(l.toks, token{kind: kind, text: text, raw: l.src[start:l.pos], start: start, end: l.pos})
}

func (l *lexer) next() error {
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		l.emit(tokLParen, "(", start)
	case c == ')':
		l.pos++
		l.emit(tokRParen, ")", start)
	case c == ',':
		l.pos++
		l.emit(tokComma, ",", start)
	case c == '`' || c == '"':
		name, err := l.readQuoted(c)
		if err != nil {
			return err
		}
		l.emit(tokQuotedIdent, name, start)
	case c == '\'':
		val, err := l.readQuoted('\'')
		if err != nil {
			return err
		}
		l.emit(tokString, val, start)
	case isDigit(c) || c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		l.readNumber()
		l.emit(tokNumber, l.src[start:l.pos], start)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		// b'0101', x'ff', N'text' and _utf8mb4'text' are single literals.
		if l.pos < len(l.src) && l.src[l.pos] == '\'' && isStringIntroducer(word) {
			val, err := l.readQuoted('\'')
			if err != nil {
				return err
			}
			l.emit(tokString, val, start)
			l.toks[len(l.toks)-1].prefix = word
			return nil
		}
		l.emit(tokIdent, word, start)
	default:
		l.pos++
		l.emit(tokOp, string(c), start)
	}
	return nil
}

// readQuoted reads a quote-delimited run starting at l.pos and returns the
// decoded content. Doubled quotes are always an escape; backslash escapes are
// honored inside single-quoted strings only.
func (l *lexer) readQuoted(q byte) (string, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && q == '\'' {
			if l.pos+1 >= len(l.src) {
				break
			}
			b.WriteByte(unescapeMySQL(l.src[l.pos+1]))
			l.pos += 2
			continue
		}
		if c == q {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == q {
				b.WriteByte(q)
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return "", fmt.Errorf("unterminated %c-quoted text at offset %d", q, start)
}

func (l *lexer) readNumber() {
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		j := l.pos + 1
		if j < len(l.src) && (l.src[j] == '+' || l.src[j] == '-') {
			j++
		}
		if j < len(l.src) && isDigit(l.src[j]) {
			l.pos = j
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
}

func unescapeMySQL(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func isStringIntroducer(word string) bool {
	switch strings.ToLower(word) {
	case "b", "x", "n":
		return true
	}
	return len(word) > 1 && word[0] == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// matchParen returns the index of the token closing the parenthesis opened at
// toks[open], or -1 when it is never closed.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// renderTokens re-emits a token run in PostgreSQL syntax. Any gap between
// tokens in the source collapses to a single space; quoted identifiers are
// re-quoted for PostgreSQL and string literals are re-escaped.
func renderTokens(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.start > toks[i-1].end {
			b.WriteByte(' ')
		}
		b.WriteString(renderToken(t))
	}
	return b.String()
}

func renderToken(t token) string {
	switch t.kind {
	case tokQuotedIdent:
		return identName(t.text)
	case tokString:
		switch strings.ToLower(t.prefix) {
		case "b":
			return "B" + pgLiteral(t.text)
		case "x":
			return "X" + pgLiteral(t.text)
		}
		return pgLiteral(t.text)
	default:
		return t.raw
	}
}
