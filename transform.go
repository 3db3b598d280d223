package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// transformValue converts one source row value to what the target column
// accepts. Byte slices are turned into strings for every non-BYTEA column so
// pgx sends them in text format and PostgreSQL parses them for the column type.
func transformValue(val any, col TranslatedColumn) (any, error) {
	if val == nil {
		return nil, nil
	}
	target := strings.ToUpper(col.TargetType)

	switch {
	// json → strip null bytes (MySQL allows \x00, PG doesn't)
	case target == "JSONB" || target == "JSON":
		switch v := val.(type) {
		case []byte:
			return strings.ReplaceAll(string(v), "\x00", ""), nil
		case string:
			return strings.ReplaceAll(v, "\x00", ""), nil
		}
		return val, nil

	// set → text[]
	case target == "TEXT[]":
		return setValueArray(val)

	case target == "BOOLEAN":
		return booleanValue(val)

	case target == "BYTEA":
		if s, ok := val.(string); ok {
			return []byte(s), nil
		}
		return val, nil

	case strings.HasPrefix(target, "BIT"):
		return bitString(val, bitWidth(target))

	case col.SourceType == "year":
		if b, ok := val.([]byte); ok {
			n, err := strconv.ParseInt(string(b), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce year value %q: %w", string(b), err)
			}
			return n, nil
		}
		return val, nil

	// date/datetime/timestamp → zero dates to null
	case isTemporalType(col.SourceType):
		switch v := val.(type) {
		case time.Time:
			if v.IsZero() {
				return nil, nil
			}
		case []byte:
			if isZeroDate(string(v)) {
				return nil, nil
			}
			return string(v), nil
		case string:
			if isZeroDate(v) {
				return nil, nil
			}
		}
		return val, nil
	}

	if b, ok := val.([]byte); ok {
		return strings.ReplaceAll(string(b), "\x00", ""), nil
	}
	if s, ok := val.(string); ok && isTextLikeType(target) {
		return strings.ReplaceAll(s, "\x00", ""), nil
	}
	return val, nil
}

// transformRow converts a scanned row in place.
func transformRow(vals []any, cols []TranslatedColumn) error {
	for i, col := range cols {
		v, err := transformValue(vals[i], col)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}
		vals[i] = v
	}
	return nil
}

func booleanValue(val any) (any, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, fmt.Errorf("cannot coerce tinyint(1) value %d to boolean", v)
	case []byte:
		switch string(v) {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return nil, fmt.Errorf("cannot coerce tinyint(1) value %q to boolean", string(v))
	}
	return nil, fmt.Errorf("cannot coerce value of type %T to boolean", val)
}

func isZeroDate(s string) bool {
	return strings.HasPrefix(s, "0000-00-00")
}

func isTextLikeType(target string) bool {
	return target == "TEXT" || strings.HasPrefix(target, "VARCHAR") || strings.HasPrefix(target, "CHAR")
}

// bitWidth reads n from BIT(n); plain BIT is BIT(1).
func bitWidth(target string) int {
	open := strings.IndexByte(target, '(')
	if open < 0 {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSuffix(target[open+1:], ")"))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// bitString renders a BIT value as the '0'/'1' string PostgreSQL expects.
// MySQL returns BIT(n) as big-endian bytes, SQLite as an integer.
func bitString(val any, width int) (string, error) {
	var b strings.Builder
	switch v := val.(type) {
	case []byte:
		for _, c := range v {
			fmt.Fprintf(&b, "%08b", c)
		}
	case int64:
		if v < 0 {
			return "", fmt.Errorf("cannot coerce negative value %d to bit", v)
		}
		b.WriteString(strconv.FormatInt(v, 2))
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("cannot coerce value of type %T to bit", val)
	}

	s := b.String()
	if len(s) > width {
		if strings.ContainsRune(s[:len(s)-width], '1') {
			return "", fmt.Errorf("bit value %s does not fit in BIT(%d)", s, width)
		}
		return s[len(s)-width:], nil
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
