package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// loadAndExecSQLFiles reads each SQL file, expands {{schema}}, and executes every statement.
func loadAndExecSQLFiles(ctx context.Context, exec sqlExecutor, cfg *MigrationConfig, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		sql := strings.ReplaceAll(string(data), "{{schema}}", cfg.Schema)
		stmts := splitStatements(sql, postgresDialect)

		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// sqlDialect selects the lexical rules splitStatements honors.
type sqlDialect struct {
	backticks        bool // `quoted identifiers`
	hashComments     bool // # line comments
	backslashEscapes bool // 'it\'s'
	dollarQuotes     bool // $tag$ ... $tag$
	delimiterCommand bool // DELIMITER ;; (mysql client command)
}

var (
	postgresDialect = sqlDialect{dollarQuotes: true}
	mysqlDialect    = sqlDialect{backticks: true, hashComments: true, backslashEscapes: true, delimiterCommand: true}
)

// splitStatements splits SQL text on the statement delimiter, ignoring empty
// entries and delimiters inside quotes, comments and dollar-quoted blocks.
func splitStatements(sql string, d sqlDialect) []string {
	var stmts []string
	var current strings.Builder
	delim := ";"
	var quote byte // ', " or ` while inside a quoted run
	inLineComment := false
	blockCommentDepth := 0
	dollarTag := ""

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if inLineComment {
			current.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}
			continue
		}

		if blockCommentDepth > 0 {
			current.WriteByte(c)
			if c == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth++
				continue
			}
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				current.WriteByte(sql[i+1])
				i++
				blockCommentDepth--
			}
			continue
		}

		if quote != 0 {
			current.WriteByte(c)
			switch {
			case c == '\\' && quote == '\'' && d.backslashEscapes && i+1 < len(sql):
				current.WriteByte(sql[i+1])
				i++
			case c == quote:
				// A doubled quote character is an escaped quote.
				if i+1 < len(sql) && sql[i+1] == quote {
					current.WriteByte(sql[i+1])
					i++
				} else {
					quote = 0
				}
			}
			continue
		}

		if dollarTag != "" {
			if strings.HasPrefix(sql[i:], dollarTag) {
				current.WriteString(dollarTag)
				i += len(dollarTag) - 1
				dollarTag = ""
				continue
			}
			current.WriteByte(c)
			continue
		}

		if d.delimiterCommand && strings.TrimSpace(current.String()) == "" {
			if newDelim, next, ok := parseDelimiterCommand(sql, i); ok {
				delim = newDelim
				current.Reset()
				i = next - 1
				continue
			}
		}

		switch {
		case strings.HasPrefix(sql[i:], delim):
			flush()
			i += len(delim) - 1
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			current.WriteString("--")
			i++
			inLineComment = true
		case c == '#' && d.hashComments:
			current.WriteByte(c)
			inLineComment = true
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			current.WriteString("/*")
			i++
			blockCommentDepth = 1
		case c == '\'' || c == '"' || (c == '`' && d.backticks):
			current.WriteByte(c)
			quote = c
		case c == '$' && d.dollarQuotes:
			if tag, ok := parseDollarTag(sql, i); ok {
				current.WriteString(tag)
				i += len(tag) - 1
				dollarTag = tag
				continue
			}
			current.WriteByte(c)
		default:
			current.WriteByte(c)
		}
	}

	// Trailing statement without delimiter
	flush()
	return stmts
}

// parseDelimiterCommand recognizes a mysql client "DELIMITER x" line starting
// at i (leading blanks allowed). It returns the new delimiter and the index
// just past the line.
func parseDelimiterCommand(sql string, i int) (string, int, bool) {
	j := i
	for j < len(sql) && (sql[j] == ' ' || sql[j] == '\t' || sql[j] == '\r' || sql[j] == '\n') {
		j++
	}
	const kw = "DELIMITER"
	if len(sql)-j <= len(kw) || !strings.EqualFold(sql[j:j+len(kw)], kw) {
		return "", 0, false
	}
	if sql[j+len(kw)] != ' ' && sql[j+len(kw)] != '\t' {
		return "", 0, false
	}
	end := strings.IndexByte(sql[j:], '\n')
	if end < 0 {
		end = len(sql)
	} else {
		end += j
	}
	delim := strings.TrimSpace(sql[j+len(kw) : end])
	if delim == "" {
		return "", 0, false
	}
	return delim, end, true
}

func parseDollarTag(sql string, i int) (string, bool) {
	if i >= len(sql) || sql[i] != '$' {
		return "", false
	}
	// $$...$$
	if i+1 < len(sql) && sql[i+1] == '$' {
		return "$$", true
	}

	// $tag$...$tag$ where tag uses identifier chars.
	j := i + 1
	if j >= len(sql) || !isDollarTagStart(sql[j]) {
		return "", false
	}
	for j < len(sql) && isDollarTagChar(sql[j]) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isDollarTagStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDollarTagChar(c byte) bool {
	return isDollarTagStart(c) || (c >= '0' && c <= '9')
}
