package main

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTransformValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	col := func(source, target string) TranslatedColumn {
		return TranslatedColumn{Name: "c", SourceType: source, TargetType: target}
	}

	tests := []struct {
		name string
		val  any
		col  TranslatedColumn
		want any
	}{
		{"nil passthrough", nil, col("int", "INT"), nil},
		{"int passthrough", int64(42), col("int", "INT"), int64(42)},
		{"numeric bytes become text", []byte("12.50"), col("decimal", "NUMERIC(10,2)"), "12.50"},
		{"varchar bytes strip NUL", []byte("a\x00b"), col("varchar", "VARCHAR(10)"), "ab"},
		{"text string strips NUL", "x\x00", col("text", "TEXT"), "x"},
		{"json bytes strip NUL", []byte(`{"a":"b\u0000"}` + "\x00"), col("json", "JSONB"), `{"a":"b\u0000"}`},
		{"set to array", []byte("read,write"), col("set", "TEXT[]"), []string{"read", "write"}},
		{"empty set", []byte(""), col("set", "TEXT[]"), []string{}},
		{"tinyint(1) int to bool", int64(1), col("tinyint", "BOOLEAN"), true},
		{"tinyint(1) bytes to bool", []byte("0"), col("tinyint", "BOOLEAN"), false},
		{"bool passthrough", true, col("boolean", "BOOLEAN"), true},
		{"blob bytes untouched", []byte{0x00, 0xff}, col("blob", "BYTEA"), []byte{0x00, 0xff}},
		{"blob string to bytes", "ab", col("blob", "BYTEA"), []byte("ab")},
		{"bit bytes", []byte{0x05}, col("bit", "BIT(3)"), "101"},
		{"bit int", int64(2), col("bit", "BIT(4)"), "0010"},
		{"year bytes", []byte("2024"), col("year", "SMALLINT"), int64(2024)},
		{"year int", int64(1999), col("year", "SMALLINT"), int64(1999)},
		{"zero datetime", time.Time{}, col("datetime", "TIMESTAMP WITHOUT TIME ZONE"), nil},
		{"zero date bytes", []byte("0000-00-00"), col("date", "DATE"), nil},
		{"zero date string", "0000-00-00 00:00:00", col("timestamp", "TIMESTAMP WITHOUT TIME ZONE"), nil},
		{"datetime passthrough", ts, col("datetime", "TIMESTAMP WITHOUT TIME ZONE"), ts},
		{"date bytes", []byte("2024-03-01"), col("date", "DATE"), "2024-03-01"},
		{"time bytes", []byte("12:30:00"), col("time", "TIME WITHOUT TIME ZONE"), "12:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transformValue(tt.val, tt.col)
			if err != nil {
				t.Fatalf("transformValue(%v) error: %v", tt.val, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("transformValue(%v) mismatch (-want +got):\n%s", tt.val, diff)
			}
		})
	}
}

func TestTransformValue_Errors(t *testing.T) {
	tests := []struct {
		name string
		val  any
		col  TranslatedColumn
	}{
		{"tinyint out of range", int64(2), TranslatedColumn{SourceType: "tinyint", TargetType: "BOOLEAN"}},
		{"boolean from float", 1.5, TranslatedColumn{SourceType: "tinyint", TargetType: "BOOLEAN"}},
		{"set from int", int64(3), TranslatedColumn{SourceType: "set", TargetType: "TEXT[]"}},
		{"bit overflow", []byte{0xff}, TranslatedColumn{SourceType: "bit", TargetType: "BIT(4)"}},
		{"bad year", []byte("20x4"), TranslatedColumn{SourceType: "year", TargetType: "SMALLINT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := transformValue(tt.val, tt.col); err == nil {
				t.Fatalf("transformValue(%v) expected error", tt.val)
			}
		})
	}
}

func TestTransformRow(t *testing.T) {
	cols := []TranslatedColumn{
		{Name: "id", SourceType: "int", TargetType: "INT"},
		{Name: "active", SourceType: "tinyint", TargetType: "BOOLEAN"},
	}

	vals := []any{int64(7), int64(0)}
	if err := transformRow(vals, cols); err != nil {
		t.Fatalf("transformRow() error: %v", err)
	}
	if diff := cmp.Diff([]any{int64(7), false}, vals); diff != "" {
		t.Errorf("transformRow() mismatch (-want +got):\n%s", diff)
	}

	err := transformRow([]any{int64(1), int64(9)}, cols)
	if err == nil || !strings.Contains(err.Error(), "column active") {
		t.Fatalf("expected error naming the column, got %v", err)
	}
}

func TestBitWidth(t *testing.T) {
	tests := map[string]int{"BIT": 1, "BIT(8)": 8, "BIT(64)": 64, "BIT(x)": 1}
	for in, want := range tests {
		if got := bitWidth(in); got != want {
			t.Errorf("bitWidth(%q) = %d, want %d", in, got, want)
		}
	}
}
