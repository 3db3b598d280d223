package main

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// reportSection is one titled group of warnings.
type reportSection struct {
	Title    string
	Warnings []string
}

// translationReport gathers everything the translation changed, dropped or
// could not handle. Empty sections are left out.
func translationReport(res *TranslationResult, objs *SourceObjects) []reportSection {
	pruned := make([]string, len(res.Pruned))
	for i, p := range res.Pruned {
		pruned[i] = p.String()
	}
	errs := make([]string, len(res.Errors))
	for i, err := range res.Errors {
		errs[i] = err.Error()
	}

	var sections []reportSection
	for _, s := range []reportSection{
		{"translation", res.Warnings},
		{"foreign key", pruned},
		{"generated column", collectGeneratedColumnWarnings(res.Tables)},
		{"collation", collectCollationWarnings(res.Tables)},
		{"source object", sourceObjectWarnings(objs)},
		{"untranslated table", errs},
	} {
		if len(s.Warnings) > 0 {
			sections = append(sections, s)
		}
	}
	return sections
}

// logReport writes each section as a header line followed by its warnings.
func logReport(sections []reportSection) {
	for _, s := range sections {
		log.Printf("%s report: %d item(s) may require manual handling", s.Title, len(s.Warnings))
		for _, w := range s.Warnings {
			log.Printf("  WARN: %s", w)
		}
	}
}

// writeSchemaScript writes the translated tables as one PostgreSQL script in
// creation order. Foreign keys caught in a reference cycle follow as ALTER
// TABLE statements at the end.
func writeSchemaScript(w io.Writer, tables []TranslatedTable, schema string) error {
	var b strings.Builder
	var deferred []deferredForeignKey
	exists := make(map[string]bool, len(tables))

	for _, t := range creationOrder(tables) {
		t, pending := splitPendingForeignKeys(t, exists)
		deferred = append(deferred, pending...)
		exists[strings.ToLower(t.SourceName)] = true

		fmt.Fprintf(&b, "-- %s\n%s\n", t.Name, t.createStatement(schema))
		for _, stmt := range t.commentStatements(schema) {
			b.WriteString(stmt + ";\n")
		}
		b.WriteString("\n")
	}
	for _, d := range deferred {
		b.WriteString(d.alterStatement(schema) + ";\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
