// Package events diffs consecutive version snapshots of a repository into
// temporal change events. Events reference stable entity URIs only, so the
// events graph survives nuclear rebuilds of version-scoped data.
package events

import (
	"sort"
	"strings"

	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/vocabulary/evolution"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// Event is one detected change between FromVersion and ToVersion.
type Event struct {
	Kind        string // added, removed, signature_changed, body_changed, moved
	EntityURI   string // stable URI
	EntityKind  parser.Kind
	File        string // defining file in the newer version (older for removals)
	FromVersion string
	ToVersion   string

	// CommitSHA is the best-effort commit that introduced the change;
	// empty when attribution failed.
	CommitSHA string
}

// CommitResolver maps a defining file to the most recent commit touching
// it in the target version. May be nil.
type CommitResolver func(file string) string

// Diff compares two parse snapshots, prev at fromVersion and curr at
// toVersion, and returns events sorted by (kind, entity URI) so repeated
// generation is deterministic.
func Diff(org, repo string, prev, curr *parser.Result, fromVersion, toVersion string, resolve CommitResolver) []Event {
	var out []Event
	out = append(out, diffFunctions(org, repo, prev, curr, fromVersion, toVersion)...)
	out = append(out, diffClasses(org, repo, prev, curr, fromVersion, toVersion)...)

	if resolve != nil {
		for i := range out {
			out[i].CommitSHA = resolve(out[i].File)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].EntityURI < out[j].EntityURI
	})
	return out
}

func diffFunctions(org, repo string, prev, curr *parser.Result, from, to string) []Event {
	prevBy := make(map[string]*parser.Function, len(prev.Functions))
	for i := range prev.Functions {
		prevBy[prev.Functions[i].QualifiedName] = &prev.Functions[i]
	}
	currBy := make(map[string]*parser.Function, len(curr.Functions))
	for i := range curr.Functions {
		currBy[curr.Functions[i].QualifiedName] = &curr.Functions[i]
	}

	var out []Event
	for name, fn := range currBy {
		uri := graph.StableFunctionURI(org, repo, name)
		old, existed := prevBy[name]
		if !existed {
			out = append(out, Event{Kind: evolution.KindAdded, EntityURI: uri,
				EntityKind: parser.KindFunction, File: fn.File, FromVersion: from, ToVersion: to})
			continue
		}
		if kind, changed := functionChange(old, fn); changed {
			out = append(out, Event{Kind: kind, EntityURI: uri,
				EntityKind: parser.KindFunction, File: fn.File, FromVersion: from, ToVersion: to})
		}
	}
	for name, fn := range prevBy {
		if _, still := currBy[name]; !still {
			uri := graph.StableFunctionURI(org, repo, name)
			out = append(out, Event{Kind: evolution.KindRemoved, EntityURI: uri,
				EntityKind: parser.KindFunction, File: fn.File, FromVersion: from, ToVersion: to})
		}
	}
	return out
}

// functionChange classifies how a surviving function differs.
func functionChange(old, cur *parser.Function) (string, bool) {
	switch {
	case old.Signature() != cur.Signature():
		return evolution.KindSignatureChanged, true
	case old.BodyHash != cur.BodyHash:
		return evolution.KindBodyChanged, true
	case old.File != cur.File || old.StartLine != cur.StartLine || old.EndLine != cur.EndLine:
		return evolution.KindMoved, true
	}
	return "", false
}

func diffClasses(org, repo string, prev, curr *parser.Result, from, to string) []Event {
	prevBy := make(map[string]*parser.Class, len(prev.Classes))
	for i := range prev.Classes {
		prevBy[prev.Classes[i].QualifiedName] = &prev.Classes[i]
	}
	currBy := make(map[string]*parser.Class, len(curr.Classes))
	for i := range curr.Classes {
		currBy[curr.Classes[i].QualifiedName] = &curr.Classes[i]
	}

	var out []Event
	for name, cls := range currBy {
		uri := graph.StableClassURI(org, repo, name)
		old, existed := prevBy[name]
		if !existed {
			out = append(out, Event{Kind: evolution.KindAdded, EntityURI: uri,
				EntityKind: parser.KindClass, File: cls.File, FromVersion: from, ToVersion: to})
			continue
		}
		if kind, changed := classChange(old, cls); changed {
			out = append(out, Event{Kind: kind, EntityURI: uri,
				EntityKind: parser.KindClass, File: cls.File, FromVersion: from, ToVersion: to})
		}
	}
	for name, cls := range prevBy {
		if _, still := currBy[name]; !still {
			uri := graph.StableClassURI(org, repo, name)
			out = append(out, Event{Kind: evolution.KindRemoved, EntityURI: uri,
				EntityKind: parser.KindClass, File: cls.File, FromVersion: from, ToVersion: to})
		}
	}
	return out
}

// classSignature is the declaration-level identity of a class: its parent
// list, in order.
func classSignature(c *parser.Class) string {
	return "class " + c.Name + "(" + strings.Join(c.Parents, ", ") + ")"
}

func classChange(old, cur *parser.Class) (string, bool) {
	switch {
	case classSignature(old) != classSignature(cur):
		return evolution.KindSignatureChanged, true
	case strings.Join(old.Methods, ",") != strings.Join(cur.Methods, ","):
		return evolution.KindBodyChanged, true
	case old.File != cur.File || old.StartLine != cur.StartLine || old.EndLine != cur.EndLine:
		return evolution.KindMoved, true
	}
	return "", false
}

// Triples renders events for the abc/events graph. Event URIs are
// deterministic, so re-appending the same transition does not duplicate.
func Triples(org, repo string, events []Event) []graph.Triple {
	var out []graph.Triple
	for _, ev := range events {
		uri := graph.EventURI(org, repo, ev.Kind, ev.EntityURI, ev.FromVersion, ev.ToVersion)
		out = append(out,
			graph.NewTriple(uri, woc.RdfType, graph.IRI(evolution.ClassChangeEvent)),
			graph.NewTriple(uri, evolution.PropEventKind, graph.Lit(ev.Kind)),
			graph.NewTriple(uri, evolution.PropAffects, graph.IRI(ev.EntityURI)),
			graph.NewTriple(uri, evolution.PropFromVersion, graph.Lit(ev.FromVersion)),
			graph.NewTriple(uri, evolution.PropToVersion, graph.Lit(ev.ToVersion)),
		)
		if ev.CommitSHA != "" {
			out = append(out,
				graph.NewTriple(uri, evolution.PropIntroducedBy, graph.Lit(ev.CommitSHA)))
		}
	}
	return out
}
