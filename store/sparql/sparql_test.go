package sparql

import (
	"context"
	"errors"
	"testing"

	"github.com/c360studio/repolex/graph"
)

// memDataset is a map-backed Dataset for evaluator tests.
type memDataset map[string][]graph.Triple

func (m memDataset) GraphNames() ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names, nil
}

func (m memDataset) Scan(graphURI string, s, p *string, o *graph.Term, fn func(t graph.Triple) error) error {
	for _, t := range m[graphURI] {
		if s != nil && t.Subject != *s {
			continue
		}
		if p != nil && t.Predicate != *p {
			continue
		}
		if o != nil && t.Object != *o {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

const (
	wocFunction = "http://rdf.webofcode.org/woc/Function"
	wocName     = "http://rdf.webofcode.org/woc/canonicalName"
	rdfTypeIRI  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

func fixture() memDataset {
	stable := "http://repolex.org/repo/acme/lib/functions/stable"
	return memDataset{
		stable: {
			graph.NewTriple("function:acme/lib/create", rdfTypeIRI, graph.IRI(wocFunction)),
			graph.NewTriple("function:acme/lib/create", wocName, graph.Lit("create")),
			graph.NewTriple("function:acme/lib/make", rdfTypeIRI, graph.IRI(wocFunction)),
			graph.NewTriple("function:acme/lib/make", wocName, graph.Lit("make")),
		},
		"http://repolex.org/repo/acme/lib/meta/v1": {
			graph.NewTriple("http://repolex.org/meta#m", "http://repolex.org/meta/version", graph.Lit("v1")),
		},
	}
}

func mustEval(t *testing.T, ds Dataset, query string) *Result {
	t.Helper()
	q, err := Parse(query)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res, err := Eval(context.Background(), ds, q)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	return res
}

func TestSelectBasicPattern(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?f ?name WHERE {
			?f a woc:Function .
			?f woc:canonicalName ?name .
		} ORDER BY ?name`)

	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if got := res.Rows[0]["name"].Value; got != "create" {
		t.Errorf("first name = %q, want create (ordered)", got)
	}
}

func TestSelectCount(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT (COUNT(*) AS ?n) WHERE {
			GRAPH <http://repolex.org/repo/acme/lib/functions/stable> {
				?f a woc:Function
			}
		}`)

	n, ok := AtoiTerm(res.Rows[0]["n"])
	if !ok || n != 2 {
		t.Errorf("count = %v, want 2", res.Rows[0]["n"])
	}
}

func TestGraphScoping(t *testing.T) {
	res := mustEval(t, fixture(), `
		SELECT ?v WHERE {
			GRAPH <http://repolex.org/repo/acme/lib/meta/v1> {
				?m <http://repolex.org/meta/version> ?v
			}
		}`)
	if len(res.Rows) != 1 || res.Rows[0]["v"].Value != "v1" {
		t.Fatalf("rows = %+v, want single v1", res.Rows)
	}
}

func TestGraphVariableBindsNames(t *testing.T) {
	res := mustEval(t, fixture(), `
		SELECT DISTINCT ?g WHERE { GRAPH ?g { ?s ?p ?o } } ORDER BY ?g`)
	if len(res.Rows) != 2 {
		t.Fatalf("graphs = %d, want 2", len(res.Rows))
	}
}

func TestFilterRegex(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?name WHERE {
			?f woc:canonicalName ?name .
			FILTER(REGEX(?name, "^ma"))
		}`)
	if len(res.Rows) != 1 || res.Rows[0]["name"].Value != "make" {
		t.Fatalf("rows = %+v, want make only", res.Rows)
	}
}

func TestOptionalKeepsUnmatched(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?f ?missing WHERE {
			?f a woc:Function .
			OPTIONAL { ?f woc:hasSignature ?missing }
		}`)
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (optional must not eliminate)", len(res.Rows))
	}
	if _, bound := res.Rows[0]["missing"]; bound {
		t.Error("missing should be unbound")
	}
}

func TestAsk(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		ASK { ?f woc:canonicalName "create" }`)
	if !res.Bool {
		t.Error("ASK should be true")
	}

	res = mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		ASK { ?f woc:canonicalName "absent" }`)
	if res.Bool {
		t.Error("ASK should be false")
	}
}

func TestConstruct(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		CONSTRUCT { ?f <http://example.org/named> ?name }
		WHERE { ?f woc:canonicalName ?name }`)
	if len(res.Triples) != 2 {
		t.Fatalf("triples = %d, want 2", len(res.Triples))
	}
}

func TestLimitOffset(t *testing.T) {
	res := mustEval(t, fixture(), `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?name WHERE { ?f woc:canonicalName ?name } ORDER BY ?name LIMIT 1 OFFSET 1`)
	if len(res.Rows) != 1 || res.Rows[0]["name"].Value != "make" {
		t.Fatalf("rows = %+v, want [make]", res.Rows)
	}
}

func TestUpdateFormsRejected(t *testing.T) {
	updates := []string{
		`INSERT DATA { <a> <b> <c> }`,
		`DELETE WHERE { ?s ?p ?o }`,
		`DROP GRAPH <http://repolex.org/g>`,
		`CLEAR ALL`,
		`LOAD <http://example.org/data.ttl>`,
		`SELECT ?s WHERE { ?s ?p ?o } ; DELETE WHERE { ?s ?p ?o }`,
	}
	for _, q := range updates {
		err := CheckReadOnly(q)
		var sec *SecurityError
		if !errors.As(err, &sec) {
			t.Errorf("CheckReadOnly(%q) = %v, want SecurityError", q, err)
		}
	}
}

func TestSyntaxErrorCarriesPosition(t *testing.T) {
	_, err := Parse(`SELECT ?s WHERE { ?s ?p }`)
	var syn *SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
	if syn.Pos <= 0 {
		t.Errorf("Pos = %d, want > 0", syn.Pos)
	}
}

func TestCancelledContextStopsEval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, err := Parse(`SELECT ?s WHERE { ?s ?p ?o }`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Eval(ctx, fixture(), q); err == nil {
		t.Error("expected context error")
	}
}

func TestNumericFilter(t *testing.T) {
	ds := memDataset{
		"g": {
			graph.NewTriple("e:a", "p:lines", graph.IntLit(10)),
			graph.NewTriple("e:b", "p:lines", graph.IntLit(300)),
		},
	}
	res := mustEval(t, ds, `SELECT ?e WHERE { ?e <p:lines> ?n . FILTER(?n >= 50) }`)
	if len(res.Rows) != 1 || res.Rows[0]["e"].Value != "e:b" {
		t.Fatalf("rows = %+v, want e:b", res.Rows)
	}
}
