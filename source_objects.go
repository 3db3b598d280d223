package main

import "fmt"

// SourceObjects holds non-table source objects that are not migrated, and
// dump statements that could not be applied to a table.
type SourceObjects struct {
	Views     []string
	Routines  []string
	Triggers  []string
	Events    []string
	Unapplied []string
}

func (o *SourceObjects) objectCount() int {
	if o == nil {
		return 0
	}
	return len(o.Views) + len(o.Routines) + len(o.Triggers) + len(o.Events)
}

func (o *SourceObjects) empty() bool {
	return o.objectCount() == 0 && (o == nil || len(o.Unapplied) == 0)
}

func sourceObjectWarnings(objs *SourceObjects) []string {
	if objs.empty() {
		return nil
	}

	var warnings []string
	if objs.objectCount() > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"source contains non-table objects not migrated automatically (%d views, %d routines, %d triggers, %d events)",
			len(objs.Views), len(objs.Routines), len(objs.Triggers), len(objs.Events),
		))
	}
	for _, group := range []struct {
		kind  string
		names []string
	}{
		{"view", objs.Views},
		{"routine", objs.Routines},
		{"trigger", objs.Triggers},
		{"event", objs.Events},
	} {
		for _, name := range group.names {
			warnings = append(warnings, fmt.Sprintf("%s: %s", group.kind, name))
		}
	}
	for _, stmt := range objs.Unapplied {
		warnings = append(warnings, "statement not applied: "+stmt)
	}
	return warnings
}
