package main

import (
	"fmt"
	"strings"
)

// enumSetValues reads the member list of an ENUM or SET type from its
// parenthesized argument tokens, e.g. ('a','it''s'). Values come back
// unescaped.
func enumSetValues(args []token) ([]string, error) {
	inner := innerTokens(args)
	var values []string
	for i, t := range inner {
		if i%2 == 1 {
			if t.kind != tokComma {
				return nil, fmt.Errorf("invalid enum/set value list %s", renderTokens(args))
			}
			continue
		}
		if t.kind != tokString {
			return nil, fmt.Errorf("invalid enum/set value %s in %s", t.raw, renderTokens(args))
		}
		values = append(values, t.text)
	}
	if len(inner) > 0 && len(inner)%2 == 0 {
		return nil, fmt.Errorf("trailing comma in enum/set value list %s", renderTokens(args))
	}
	return values, nil
}

// parseMySQLSetDefault splits a SET literal such as 'a,b' into its members.
func parseMySQLSetDefault(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// setValueArray converts a SET value read from the source into a text[]
// element list. The empty SET becomes an empty array, never NULL.
func setValueArray(val any) ([]string, error) {
	var raw string
	switch v := val.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return nil, fmt.Errorf("cannot coerce set value of type %T to text[]", val)
	}
	raw = strings.ReplaceAll(raw, "\x00", "")
	if raw == "" {
		return []string{}, nil
	}
	return strings.Split(raw, ","), nil
}
