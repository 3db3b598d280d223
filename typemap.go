package main

import "strings"

// typeRule maps one MySQL scalar type to its PostgreSQL counterpart.
// keepsArgs reports whether a (n) or (p,s) modifier carries over verbatim.
type typeRule struct {
	target    string
	keepsArgs bool
	lossy     string // non-empty when the mapping discards source semantics
}

var typeMap = map[string]typeRule{
	// integers (display widths such as int(11) are dropped)
	"tinyint":   {target: "SMALLINT"},
	"smallint":  {target: "SMALLINT"},
	"mediumint": {target: "INTEGER"},
	"int":       {target: "INT"},
	"integer":   {target: "INTEGER"},
	"bigint":    {target: "BIGINT"},

	// floating point / fixed point
	"float":            {target: "REAL"},
	"double":           {target: "DOUBLE PRECISION"},
	"double precision": {target: "DOUBLE PRECISION"},
	"real":             {target: "DOUBLE PRECISION"},
	"decimal":          {target: "NUMERIC", keepsArgs: true},
	"numeric":          {target: "NUMERIC", keepsArgs: true},
	"dec":              {target: "NUMERIC", keepsArgs: true},
	"fixed":            {target: "NUMERIC", keepsArgs: true},

	// temporal
	"date":      {target: "DATE"},
	"datetime":  {target: "TIMESTAMP WITHOUT TIME ZONE"},
	"timestamp": {target: "TIMESTAMP WITHOUT TIME ZONE"},
	"time":      {target: "TIME WITHOUT TIME ZONE"},
	"year":      {target: "SMALLINT"},

	// character
	"char":       {target: "CHAR", keepsArgs: true},
	"varchar":    {target: "VARCHAR", keepsArgs: true},
	"tinytext":   {target: "TEXT", lossy: "255-byte limit is not enforced"},
	"text":       {target: "TEXT"},
	"mediumtext": {target: "TEXT"},
	"longtext":   {target: "TEXT"},

	// binary
	"bit":        {target: "BIT", keepsArgs: true},
	"binary":     {target: "BYTEA", lossy: "fixed length is not enforced"},
	"varbinary":  {target: "BYTEA", lossy: "length limit is not enforced"},
	"tinyblob":   {target: "BYTEA"},
	"blob":       {target: "BYTEA"},
	"mediumblob": {target: "BYTEA"},
	"longblob":   {target: "BYTEA"},

	"json":    {target: "JSONB"},
	"bool":    {target: "BOOLEAN"},
	"boolean": {target: "BOOLEAN"},

	// spatial types are carried as opaque WKB bytes
	"geometry":           {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"point":              {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"linestring":         {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"polygon":            {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"multipoint":         {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"multilinestring":    {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"multipolygon":       {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
	"geometrycollection": {target: "BYTEA", lossy: "spatial type stored as opaque bytes"},
}

// unsignedWidening maps UNSIGNED integer types to the next PostgreSQL type
// wide enough to hold their full range.
var unsignedWidening = map[string]string{
	"tinyint":   "SMALLINT",
	"smallint":  "INTEGER",
	"mediumint": "INTEGER",
	"int":       "BIGINT",
	"integer":   "BIGINT",
	"bigint":    "NUMERIC(20)",
}

// serialTypes selects the auto-increment type by source integer width.
var serialTypes = map[string]string{
	"tinyint":  "SMALLSERIAL",
	"smallint": "SMALLSERIAL",
	"bigint":   "BIGSERIAL",
}

// serialForWidth picks the auto-increment type for a widened unsigned
// integer. NUMERIC(20) has no serial form and falls back to BIGSERIAL.
var serialForWidth = map[string]string{
	"SMALLINT":    "SMALLSERIAL",
	"INTEGER":     "SERIAL",
	"BIGINT":      "BIGSERIAL",
	"NUMERIC(20)": "BIGSERIAL",
}

// serialKeyTypes is the plain integer type behind each serial type.
var serialKeyTypes = map[string]string{
	"SMALLSERIAL": "SMALLINT",
	"SERIAL":      "INTEGER",
	"BIGSERIAL":   "BIGINT",
}

// serialType picks the auto-increment type for col. Unsigned columns follow
// the same widening as ordinary columns, so a serial key and the columns
// referencing it end up the same width.
func serialType(col ColumnSpec, opts TranslateOptions) string {
	name := strings.ToLower(col.TypeName)
	if col.Unsigned && opts.WidenUnsignedIntegers {
		if s, ok := serialForWidth[unsignedWidening[name]]; ok {
			return s
		}
	}
	if s, ok := serialTypes[name]; ok {
		return s
	}
	return "SERIAL"
}

// mapScalarType resolves the PostgreSQL type for a parsed column. ok is false
// when the source type is unknown and fell back to TEXT.
func mapScalarType(col ColumnSpec, opts TranslateOptions) (string, bool) {
	name := col.TypeName
	if opts.TinyInt1AsBoolean && name == "tinyint" && col.TypeArgs == "(1)" {
		return "BOOLEAN", true
	}
	if col.Unsigned && opts.WidenUnsignedIntegers {
		if t, ok := unsignedWidening[name]; ok {
			return t, true
		}
	}
	rule, ok := typeMap[name]
	if !ok {
		return "TEXT", false
	}
	if rule.keepsArgs && col.TypeArgs != "" {
		return rule.target + col.TypeArgs, true
	}
	return rule.target, true
}

func isIntegerType(name string) bool {
	switch name {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return true
	}
	return false
}

func isTemporalType(name string) bool {
	switch name {
	case "date", "datetime", "timestamp":
		return true
	}
	return false
}
