package ontology

import (
	"reflect"
	"testing"

	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/vocabulary/woc"
)

func sampleResult() *parser.Result {
	return &parser.Result{
		Functions: []parser.Function{
			{
				QualifiedName: "acme.lib.core.create",
				Name:          "create",
				Module:        "acme.lib.core",
				Params:        []parser.Param{{Name: "name", Type: "str"}},
				ReturnType:    "Table",
				Docstring:     "Create a table.",
				File:          "core.py",
				StartLine:     10,
				EndLine:       20,
				BodyLines:     9,
				BodyHash:      "abc123",
				Calls:         []string{"validate"},
			},
			{
				QualifiedName: "acme.lib.core.validate",
				Name:          "validate",
				Module:        "acme.lib.core",
				File:          "core.py",
				StartLine:     25,
				EndLine:       30,
				BodyLines:     4,
				BodyHash:      "def456",
			},
		},
		Classes: []parser.Class{
			{
				QualifiedName: "acme.lib.core.Table",
				Name:          "Table",
				Module:        "acme.lib.core",
				Parents:       []string{"Base"},
				Methods:       []string{"acme.lib.core.Table.insert"},
				File:          "core.py",
				StartLine:     40,
				EndLine:       80,
			},
		},
		Modules: []parser.Module{
			{Path: "acme.lib.core", File: "core.py", LineCount: 100, FunctionCount: 2, ClassCount: 1},
		},
	}
}

func ctx() Context { return Context{Org: "acme", Repo: "lib", Version: "v1"} }

func hasTriple(triples []graph.Triple, s, p string, o graph.Term) bool {
	for _, t := range triples {
		if t.Subject == s && t.Predicate == p && t.Object == o {
			return true
		}
	}
	return false
}

func TestMapResultDeterministic(t *testing.T) {
	a := MapResult(ctx(), sampleResult())
	b := MapResult(ctx(), sampleResult())
	if !reflect.DeepEqual(a, b) {
		t.Error("mapper must be deterministic for identical inputs")
	}
}

func TestImplementationLinksStable(t *testing.T) {
	m := MapResult(ctx(), sampleResult())

	impl := "function:acme/lib/acme.lib.core.create#v1"
	stable := "function:acme/lib/acme.lib.core.create"

	if !hasTriple(m.Implementations, impl, woc.PropImplementsFunction, graph.IRI(stable)) {
		t.Error("implementation must reference its stable identity")
	}
	if !hasTriple(m.Implementations, impl, woc.PropBelongsToVersion, graph.Lit("v1")) {
		t.Error("implementation must carry belongsToVersion")
	}
	if !hasTriple(m.Implementations, impl, woc.PropStartLine, graph.IntLit(10)) {
		t.Error("startLine missing")
	}
	if !hasTriple(m.Implementations, impl, woc.PropEndLine, graph.IntLit(20)) {
		t.Error("endLine missing")
	}
	if !hasTriple(m.Implementations, impl, woc.PropRefactorScore, graph.Lit("small")) {
		t.Error("refactor score should be small for a 9-line body")
	}
}

func TestStableTriplesNeverMentionImplementations(t *testing.T) {
	m := MapResult(ctx(), sampleResult())
	for stableURI, triples := range m.StableFunctions {
		for _, tr := range triples {
			if tr.Object.IsIRI() && containsFragment(tr.Object.Value) {
				t.Errorf("stable triple for %s points at version-scoped URI %s",
					stableURI, tr.Object.Value)
			}
		}
	}
	for _, triples := range m.StableClasses {
		for _, tr := range triples {
			if tr.Object.IsIRI() && containsFragment(tr.Object.Value) {
				t.Errorf("stable class triple points at version-scoped URI %s", tr.Object.Value)
			}
		}
	}
}

func containsFragment(uri string) bool {
	for i := 0; i < len(uri); i++ {
		if uri[i] == '#' {
			return true
		}
	}
	return false
}

func TestCallEdgesResolveToStableURIs(t *testing.T) {
	m := MapResult(ctx(), sampleResult())
	caller := "function:acme/lib/acme.lib.core.create"
	callee := "function:acme/lib/acme.lib.core.validate"

	if !hasTriple(m.StableFunctions[caller], caller, woc.PropCalls, graph.IRI(callee)) {
		t.Error("resolvable call edge missing")
	}
}

func TestUnresolvableCallsOmitted(t *testing.T) {
	res := sampleResult()
	res.Functions[0].Calls = []string{"json.dumps", "unknown_helper"}
	m := MapResult(ctx(), res)

	caller := "function:acme/lib/acme.lib.core.create"
	for _, tr := range m.StableFunctions[caller] {
		if tr.Predicate == woc.PropCalls {
			t.Errorf("unresolvable call materialized: %v", tr.Object.Value)
		}
	}
}

func TestClassImplementationCarriesParentsAndScore(t *testing.T) {
	m := MapResult(ctx(), sampleResult())
	impl := "class:acme/lib/acme.lib.core.Table#v1"

	if !hasTriple(m.Implementations, impl, woc.PropExtends, graph.Lit("Base")) {
		t.Error("parent class missing")
	}
	if !hasTriple(m.Implementations, impl, woc.PropRefactorScore, graph.Lit("simple")) {
		t.Error("class refactor score should be simple for 1 method")
	}
}

func TestMetaTriplesHaveNoTimestamps(t *testing.T) {
	m := MapResult(ctx(), sampleResult())
	for _, tr := range m.Meta {
		if tr.Object.Datatype == woc.XsdDateTime {
			t.Errorf("meta graph must not carry wall-clock values: %v", tr)
		}
	}
}

func TestPatternsCountPrefixes(t *testing.T) {
	res := &parser.Result{Functions: []parser.Function{
		{QualifiedName: "m.get_a", Name: "get_a", Module: "m"},
		{QualifiedName: "m.get_b", Name: "get_b", Module: "m"},
		{QualifiedName: "m.set_a", Name: "set_a", Module: "m"},
	}}
	triples := PatternsTriples(ctx(), res)

	found := false
	for _, tr := range triples {
		if tr.Predicate == "http://repolex.org/evolution/patternName" && tr.Object.Value == "get" {
			found = true
		}
		if tr.Object.Value == "set" && tr.Predicate == "http://repolex.org/evolution/patternName" {
			t.Error("single-occurrence prefix must not become a pattern")
		}
	}
	if !found {
		t.Error("recurring prefix get_ not aggregated")
	}
}
