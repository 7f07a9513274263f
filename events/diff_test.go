package events

import (
	"testing"

	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/vocabulary/evolution"
)

func fn(name, file, bodyHash string, start int, params ...parser.Param) parser.Function {
	return parser.Function{
		QualifiedName: "acme.lib." + name,
		Name:          name,
		Module:        "acme.lib",
		File:          file,
		StartLine:     start,
		EndLine:       start + 5,
		BodyHash:      bodyHash,
		Params:        params,
	}
}

func snapshot(fns ...parser.Function) *parser.Result {
	return &parser.Result{Functions: fns}
}

func eventsOfKind(events []Event, kind string) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestDiffRename(t *testing.T) {
	prev := snapshot(fn("create", "core.py", "h1", 10))
	curr := snapshot(fn("make", "core.py", "h1", 10))

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2 (added + removed)", len(evs))
	}

	added := eventsOfKind(evs, evolution.KindAdded)
	removed := eventsOfKind(evs, evolution.KindRemoved)
	if len(added) != 1 || added[0].EntityURI != "function:acme/lib/acme.lib.make" {
		t.Errorf("added = %+v", added)
	}
	if len(removed) != 1 || removed[0].EntityURI != "function:acme/lib/acme.lib.create" {
		t.Errorf("removed = %+v", removed)
	}
	for _, ev := range evs {
		if ev.FromVersion != "v1" || ev.ToVersion != "v2" {
			t.Errorf("event versions = %s→%s, want v1→v2", ev.FromVersion, ev.ToVersion)
		}
	}
}

func TestDiffSignatureChange(t *testing.T) {
	prev := snapshot(fn("create", "core.py", "h1", 10))
	curr := snapshot(fn("create", "core.py", "h1", 10, parser.Param{Name: "size", Type: "int"}))

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(evs) != 1 || evs[0].Kind != evolution.KindSignatureChanged {
		t.Fatalf("events = %+v, want one signature_changed", evs)
	}
}

func TestDiffBodyChange(t *testing.T) {
	prev := snapshot(fn("create", "core.py", "h1", 10))
	curr := snapshot(fn("create", "core.py", "h2", 10))

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(evs) != 1 || evs[0].Kind != evolution.KindBodyChanged {
		t.Fatalf("events = %+v, want one body_changed", evs)
	}
}

func TestDiffMoved(t *testing.T) {
	prev := snapshot(fn("create", "core.py", "h1", 10))
	curr := snapshot(fn("create", "other.py", "h1", 10))

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(evs) != 1 || evs[0].Kind != evolution.KindMoved {
		t.Fatalf("events = %+v, want one moved", evs)
	}
}

func TestDiffUnchangedYieldsNothing(t *testing.T) {
	a := snapshot(fn("create", "core.py", "h1", 10))
	b := snapshot(fn("create", "core.py", "h1", 10))
	if evs := Diff("acme", "lib", a, b, "v1", "v2", nil); len(evs) != 0 {
		t.Fatalf("events = %+v, want none", evs)
	}
}

func TestDiffClassParentChange(t *testing.T) {
	prev := &parser.Result{Classes: []parser.Class{{
		QualifiedName: "acme.lib.Table", Name: "Table", Parents: []string{"Base"}, File: "m.py",
	}}}
	curr := &parser.Result{Classes: []parser.Class{{
		QualifiedName: "acme.lib.Table", Name: "Table", Parents: []string{"NewBase"}, File: "m.py",
	}}}

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(evs) != 1 || evs[0].Kind != evolution.KindSignatureChanged {
		t.Fatalf("events = %+v, want class signature_changed", evs)
	}
	if evs[0].EntityKind != parser.KindClass {
		t.Errorf("entity kind = %v, want class", evs[0].EntityKind)
	}
}

func TestDiffCommitAttribution(t *testing.T) {
	prev := snapshot()
	curr := snapshot(fn("create", "core.py", "h1", 10))

	evs := Diff("acme", "lib", prev, curr, "v1", "v2", func(file string) string {
		if file == "core.py" {
			return "sha42"
		}
		return ""
	})
	if len(evs) != 1 || evs[0].CommitSHA != "sha42" {
		t.Fatalf("events = %+v, want commit sha42", evs)
	}
}

func TestDiffDeterministicOrder(t *testing.T) {
	prev := snapshot(fn("a", "m.py", "h", 1), fn("b", "m.py", "h", 10))
	curr := snapshot(fn("c", "m.py", "h", 1), fn("d", "m.py", "h", 10))

	first := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	second := Diff("acme", "lib", prev, curr, "v1", "v2", nil)
	if len(first) != 4 {
		t.Fatalf("events = %d, want 4", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("event order must be deterministic")
		}
	}
}

func TestTriplesCarryVersionsAndKind(t *testing.T) {
	evs := []Event{{
		Kind:        evolution.KindAdded,
		EntityURI:   "function:acme/lib/acme.lib.make",
		EntityKind:  parser.KindFunction,
		FromVersion: "v1",
		ToVersion:   "v2",
		CommitSHA:   "sha42",
	}}
	triples := Triples("acme", "lib", evs)

	var kinds, affects, introduced int
	for _, tr := range triples {
		switch tr.Predicate {
		case evolution.PropEventKind:
			kinds++
		case evolution.PropAffects:
			affects++
			if !tr.Object.IsIRI() {
				t.Error("affects must be an IRI edge")
			}
		case evolution.PropIntroducedBy:
			introduced++
		}
	}
	if kinds != 1 || affects != 1 || introduced != 1 {
		t.Errorf("kinds=%d affects=%d introduced=%d, want 1 each", kinds, affects, introduced)
	}
}
