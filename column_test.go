package main

import (
	"strings"
	"testing"
)

func translateColumnClause(t *testing.T, clause string, opts TranslateOptions) (TranslatedColumn, []string) {
	t.Helper()
	spec, err := parseColumn(clause)
	if err != nil {
		t.Fatalf("parseColumn(%q) error: %v", clause, err)
	}
	ct := newColumnTranslator("t", opts)
	col, err := ct.translate(spec)
	if err != nil {
		t.Fatalf("translate(%q) error: %v", clause, err)
	}
	return col, ct.warnings
}

func TestTranslateColumn(t *testing.T) {
	def := defaultTranslateOptions()
	serialNotNull := def
	serialNotNull.SerialNotNull = true
	boolOpt := def
	boolOpt.TinyInt1AsBoolean = true
	noWiden := def
	noWiden.WidenUnsignedIntegers = false

	tests := []struct {
		name   string
		clause string
		opts   TranslateOptions
		want   string
	}{
		// enum / set
		{"enum", "status ENUM('a','b','c') NOT NULL DEFAULT 'a'", def,
			"status TEXT NOT NULL DEFAULT 'a' CHECK (status IN ('a','b','c'))"},
		{"enum values verbatim", "`kind` enum('x y', 'it''s')", def,
			"kind TEXT CHECK (kind IN ('x y', 'it''s'))"},
		{"set", "tags SET('x','y') DEFAULT 'x,y'", def,
			"tags TEXT[] DEFAULT ARRAY['x', 'y']::text[] CHECK (tags <@ ARRAY['x','y'])"},
		{"set empty default", "tags SET('x','y') NOT NULL DEFAULT ''", def,
			"tags TEXT[] NOT NULL DEFAULT ARRAY[]::text[] CHECK (tags <@ ARRAY['x','y'])"},

		// auto-increment
		{"bigint serial pk", "id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY", def, "id BIGSERIAL PRIMARY KEY"},
		{"bigint serial pk keeps not null", "id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", serialNotNull, "id BIGSERIAL NOT NULL PRIMARY KEY"},
		{"int serial", "id INT AUTO_INCREMENT", def, "id SERIAL"},
		{"smallint serial", "id SMALLINT AUTO_INCREMENT", def, "id SMALLSERIAL"},
		{"tinyint serial", "id TINYINT(4) AUTO_INCREMENT", def, "id SMALLSERIAL"},
		{"not null dropped", "id INT NOT NULL AUTO_INCREMENT", def, "id SERIAL"},
		{"not null kept", "id INT NOT NULL AUTO_INCREMENT", serialNotNull, "id SERIAL NOT NULL"},
		{"serial unique", "id INT AUTO_INCREMENT UNIQUE", def, "id SERIAL UNIQUE"},
		{"sqlite autoincrement", "id INTEGER PRIMARY KEY AUTOINCREMENT", def, "id SERIAL PRIMARY KEY"},

		// scalar mapping and modifier stripping
		{"charset and collation stripped", "name VARCHAR(50) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci NOT NULL", def,
			"name VARCHAR(50) NOT NULL"},
		{"on update stripped", "updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP", def,
			"updated_at TIMESTAMP WITHOUT TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP"},
		{"function default", "ts DATETIME(3) DEFAULT CURRENT_TIMESTAMP(3)", def,
			"ts TIMESTAMP WITHOUT TIME ZONE DEFAULT CURRENT_TIMESTAMP(3)"},
		{"decimal keeps args", "price DECIMAL(10,2) UNSIGNED NOT NULL", def, "price NUMERIC(10,2) NOT NULL"},
		{"display width dropped", "n INT(11) DEFAULT -1", def, "n INT DEFAULT -1"},
		{"tinyint1 default", "flag TINYINT(1) NOT NULL DEFAULT 0", def, "flag SMALLINT NOT NULL DEFAULT 0"},
		{"tinyint1 boolean", "flag TINYINT(1) NOT NULL DEFAULT 1", boolOpt, "flag BOOLEAN NOT NULL DEFAULT TRUE"},
		{"tinyint1 boolean quoted default", "flag TINYINT(1) DEFAULT '0'", boolOpt, "flag BOOLEAN DEFAULT FALSE"},
		{"unsigned int widened", "u INT UNSIGNED", def, "u BIGINT"},
		{"unsigned bigint widened", "big BIGINT UNSIGNED", def, "big NUMERIC(20)"},
		{"unsigned not widened", "u INT UNSIGNED ZEROFILL", noWiden, "u INT"},
		{"json", "doc JSON", def, "doc JSONB"},
		{"longtext", "body LONGTEXT", def, "body TEXT"},
		{"mediumblob", "data MEDIUMBLOB", def, "data BYTEA"},
		{"double precision", "d DOUBLE PRECISION NOT NULL", def, "d DOUBLE PRECISION NOT NULL"},
		{"bit literal default", "b BIT(8) DEFAULT b'0'", def, "b BIT(8) DEFAULT B'0'"},
		{"charset introducer removed", "c VARCHAR(10) DEFAULT _utf8mb4'abc'", def, "c VARCHAR(10) DEFAULT 'abc'"},
		{"null default", "c VARCHAR(10) DEFAULT NULL", def, "c VARCHAR(10) DEFAULT NULL"},
		{"double-quoted default", `c VARCHAR(10) DEFAULT "abc"`, def, "c VARCHAR(10) DEFAULT 'abc'"},
		{"double-quoted default escaped", `c VARCHAR(10) DEFAULT "it's"`, def, "c VARCHAR(10) DEFAULT 'it''s'"},
		{"double-quoted set default", `tags SET('x','y') DEFAULT "x"`, def, "tags TEXT[] DEFAULT ARRAY['x']::text[] CHECK (tags <@ ARRAY['x','y'])"},
		{"double-quoted comment", `c INT COMMENT "note" NOT NULL`, def, "c INT NOT NULL"},
		{"reserved name folded", "`Order` INT", def, `"order" INT`},
		{"comment lifted", "c INT COMMENT 'hello'", def, "c INT"},
		{"invisible stripped", "c INT /*!80023 INVISIBLE */", def, "c INT"},
		{"inline check kept", "qty INT CHECK (qty > 0)", def, "qty INT CHECK (qty > 0)"},

		// generated columns
		{"virtual to stored", "total INT GENERATED ALWAYS AS ((price*qty)) VIRTUAL", def,
			"total INT GENERATED ALWAYS AS ((price*qty)) STORED"},
		{"short form", "total INT AS (price*qty)", def, "total INT GENERATED ALWAYS AS (price*qty) STORED"},
		{"stored", "total INT AS (price * qty) STORED NOT NULL", def, "total INT GENERATED ALWAYS AS (price * qty) STORED NOT NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, _ := translateColumnClause(t, tt.clause, tt.opts)
			if col.Line != tt.want {
				t.Errorf("translate(%q)\n got: %s\nwant: %s", tt.clause, col.Line, tt.want)
			}
		})
	}
}

func TestTranslateColumn_Warnings(t *testing.T) {
	tests := []struct {
		clause   string
		wantLine string
		wantWarn string
	}{
		{"updated_at TIMESTAMP ON UPDATE CURRENT_TIMESTAMP", "updated_at TIMESTAMP WITHOUT TIME ZONE", "ON UPDATE CURRENT_TIMESTAMP dropped"},
		{"created DATETIME DEFAULT '0000-00-00 00:00:00'", "created TIMESTAMP WITHOUT TIME ZONE", "zero-date default"},
		{"x INTERVALISH", "x TEXT", "unknown type intervalish"},
		{"g POINT NOT NULL SRID 4326", "g BYTEA NOT NULL", "spatial type"},
		{"parent_id INT REFERENCES parent (id) ON DELETE CASCADE", "parent_id INT", "inline REFERENCES parent (id) ON DELETE CASCADE ignored"},
	}
	for _, tt := range tests {
		col, warnings := translateColumnClause(t, tt.clause, defaultTranslateOptions())
		if col.Line != tt.wantLine {
			t.Errorf("translate(%q) = %q, want %q", tt.clause, col.Line, tt.wantLine)
		}
		if !containsSubstring(warnings, tt.wantWarn) {
			t.Errorf("translate(%q) warnings %q, want one containing %q", tt.clause, warnings, tt.wantWarn)
		}
		for _, w := range warnings {
			if !strings.HasPrefix(w, "t.") {
				t.Errorf("warning %q should name table.column", w)
			}
		}
	}
}

func TestTranslateColumn_Flags(t *testing.T) {
	col, _ := translateColumnClause(t, "`Note` TEXT COMMENT 'free text'", defaultTranslateOptions())
	if col.Name != "note" || col.SourceName != "Note" {
		t.Errorf("names = %q/%q, want note/Note", col.Name, col.SourceName)
	}
	if !col.HasComment || col.Comment != "free text" {
		t.Errorf("comment = %v %q, want free text", col.HasComment, col.Comment)
	}

	col, _ = translateColumnClause(t, `c INT COMMENT "double ""quoted"""`, defaultTranslateOptions())
	if !col.HasComment || col.Comment != `double "quoted"` {
		t.Errorf("comment = %v %q, want double \"quoted\"", col.HasComment, col.Comment)
	}

	col, _ = translateColumnClause(t, "id BIGINT AUTO_INCREMENT PRIMARY KEY", defaultTranslateOptions())
	if !col.Serial || !col.PrimaryKey || col.TargetType != "BIGSERIAL" {
		t.Errorf("serial flags = %+v", col)
	}
}

func TestTranslateColumn_ChainedGenerated(t *testing.T) {
	ct := newColumnTranslator("o", defaultTranslateOptions())
	var lines []string
	for _, clause := range []string{
		"price INT",
		"qty INT",
		"total INT GENERATED ALWAYS AS ((price*qty)) VIRTUAL",
		"doubled INT GENERATED ALWAYS AS ((total*2)) STORED NOT NULL",
		"other INT AS (price + 1)",
	} {
		spec, err := parseColumn(clause)
		if err != nil {
			t.Fatalf("parseColumn(%q) error: %v", clause, err)
		}
		col, err := ct.translate(spec)
		if err != nil {
			t.Fatalf("translate(%q) error: %v", clause, err)
		}
		lines = append(lines, col.Line)
	}

	want := []string{
		"price INT",
		"qty INT",
		"total INT GENERATED ALWAYS AS ((price*qty)) STORED",
		"doubled INT NOT NULL",
		"other INT GENERATED ALWAYS AS (price + 1) STORED",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if !containsSubstring(ct.warnings, "depends on generated column total") {
		t.Errorf("expected flattening warning, got %q", ct.warnings)
	}
}

func TestParseColumn(t *testing.T) {
	spec, err := parseColumn("`amount` decimal(12,4) unsigned NOT NULL DEFAULT '0.0000' COMMENT 'money'")
	if err != nil {
		t.Fatalf("parseColumn() error: %v", err)
	}
	if spec.Name != "amount" || spec.TypeName != "decimal" || spec.TypeArgs != "(12,4)" {
		t.Errorf("parseColumn() = name %q type %q args %q", spec.Name, spec.TypeName, spec.TypeArgs)
	}
	if !spec.Unsigned || spec.AutoIncrement || spec.Generated {
		t.Errorf("parseColumn() flags = %+v", spec)
	}
	if len(spec.Modifiers) != 4 {
		t.Errorf("parseColumn() modifiers = %d, want 4 (unsigned, not null, default, comment)", len(spec.Modifiers))
	}

	spec, err = parseColumn("total INT GENERATED ALWAYS AS (a + b) VIRTUAL")
	if err != nil {
		t.Fatalf("parseColumn() error: %v", err)
	}
	if !spec.Generated || spec.GeneratedExpr != "(a + b)" {
		t.Errorf("generated = %v %q", spec.Generated, spec.GeneratedExpr)
	}
}

func TestParseColumn_Errors(t *testing.T) {
	for _, clause := range []string{
		"id",
		"'id' INT",
		"e ENUM('a','b'",
		"c INT DEFAULT",
		"c INT COMMENT 42",
		"c INT CHECK qty > 0",
	} {
		if _, err := parseColumn(clause); err == nil {
			t.Errorf("parseColumn(%q) expected error", clause)
		}
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
