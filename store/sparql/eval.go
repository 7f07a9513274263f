package sparql

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/repolex/graph"
)

// Dataset is the store surface the evaluator runs against. Scan streams
// every triple of one graph matching the given bound positions; nil
// positions are wildcards. The dataset default graph is the union of all
// named graphs, so patterns outside a GRAPH clause scan every graph.
type Dataset interface {
	GraphNames() ([]string, error)
	Scan(graphURI string, s, p *string, o *graph.Term, fn func(t graph.Triple) error) error
}

// Result holds the outcome of one evaluation.
type Result struct {
	Vars    []string
	Rows    []Binding
	Bool    bool           // ASK
	Triples []graph.Triple // CONSTRUCT
}

// Eval executes a parsed query against the dataset. The context is
// observed between scan batches so long queries honor their timeout.
func Eval(ctx context.Context, ds Dataset, q *Query) (*Result, error) {
	scope, err := ds.GraphNames()
	if err != nil {
		return nil, err
	}

	rows, err := evalGroup(ctx, ds, q.Where, scope, []Binding{{}})
	if err != nil {
		return nil, err
	}

	switch q.Form {
	case FormAsk:
		return &Result{Bool: len(rows) > 0}, nil
	case FormConstruct:
		return constructResult(q, rows), nil
	}
	return selectResult(q, rows), nil
}

func evalGroup(ctx context.Context, ds Dataset, g GroupPattern, scope []string, in []Binding) ([]Binding, error) {
	rows := in

	for _, tp := range g.Patterns {
		next, err := evalPattern(ctx, ds, tp, scope, rows)
		if err != nil {
			return nil, err
		}
		rows = next
	}

	for _, gb := range g.Graphs {
		next, err := evalGraphBlock(ctx, ds, gb, rows)
		if err != nil {
			return nil, err
		}
		rows = next
	}

	for _, opt := range g.Optionals {
		next := make([]Binding, 0, len(rows))
		for _, b := range rows {
			extended, err := evalGroup(ctx, ds, opt, scope, []Binding{b})
			if err != nil {
				return nil, err
			}
			if len(extended) == 0 {
				next = append(next, b)
			} else {
				next = append(next, extended...)
			}
		}
		rows = next
	}

	for _, f := range g.Filters {
		kept := rows[:0:0]
		for _, b := range rows {
			if f.Eval(b) {
				kept = append(kept, b)
			}
		}
		rows = kept
	}

	return rows, nil
}

func evalGraphBlock(ctx context.Context, ds Dataset, gb GraphBlock, rows []Binding) ([]Binding, error) {
	if !gb.Graph.IsVar {
		return evalGroup(ctx, ds, gb.Group, []string{gb.Graph.Term.Value}, rows)
	}

	all, err := ds.GraphNames()
	if err != nil {
		return nil, err
	}

	var out []Binding
	for _, b := range rows {
		if bound, ok := b[gb.Graph.Var]; ok {
			extended, err := evalGroup(ctx, ds, gb.Group, []string{bound.Value}, []Binding{b})
			if err != nil {
				return nil, err
			}
			out = append(out, extended...)
			continue
		}
		for _, name := range all {
			seed := b.clone()
			seed[gb.Graph.Var] = graph.IRI(name)
			extended, err := evalGroup(ctx, ds, gb.Group, []string{name}, []Binding{seed})
			if err != nil {
				return nil, err
			}
			out = append(out, extended...)
		}
	}
	return out, nil
}

func evalPattern(ctx context.Context, ds Dataset, tp TriplePattern, scope []string, rows []Binding) ([]Binding, error) {
	var out []Binding
	for _, b := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var sPtr, pPtr *string
		var oPtr *graph.Term

		if s, ok := resolve(tp.S, b); ok {
			v := s.Value
			sPtr = &v
		}
		if p, ok := resolve(tp.P, b); ok {
			v := p.Value
			pPtr = &v
		}
		if o, ok := resolve(tp.O, b); ok {
			v := o
			oPtr = &v
		}

		for _, graphURI := range scope {
			err := ds.Scan(graphURI, sPtr, pPtr, oPtr, func(t graph.Triple) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if ext, ok := unify(tp, t, b); ok {
					out = append(out, ext)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// resolve returns the ground term for a pattern position under a binding.
func resolve(n NodeOrVar, b Binding) (graph.Term, bool) {
	if !n.IsVar {
		return n.Term, true
	}
	t, ok := b[n.Var]
	return t, ok
}

// unify extends b with the variable bindings this triple induces, or
// reports a conflict.
func unify(tp TriplePattern, t graph.Triple, b Binding) (Binding, bool) {
	ext := b.clone()

	bind := func(n NodeOrVar, val graph.Term) bool {
		if !n.IsVar {
			return n.Term == val
		}
		if prev, ok := ext[n.Var]; ok {
			return prev == val
		}
		ext[n.Var] = val
		return true
	}

	if !bind(tp.S, graph.IRI(t.Subject)) {
		return nil, false
	}
	if !bind(tp.P, graph.IRI(t.Predicate)) {
		return nil, false
	}
	if !bind(tp.O, t.Object) {
		return nil, false
	}
	return ext, true
}

func (b Binding) clone() Binding {
	c := make(Binding, len(b)+1)
	for k, v := range b {
		c[k] = v
	}
	return c
}

func selectResult(q *Query, rows []Binding) *Result {
	// Aggregate projections collapse the row set.
	for _, item := range q.Projection {
		if item.IsCount {
			return countResult(q, rows)
		}
	}

	res := &Result{}
	if q.Star {
		res.Vars = collectVars(rows)
	} else {
		for _, item := range q.Projection {
			res.Vars = append(res.Vars, item.Var)
		}
	}

	projected := make([]Binding, 0, len(rows))
	for _, b := range rows {
		row := Binding{}
		for _, v := range res.Vars {
			if t, ok := b[v]; ok {
				row[v] = t
			}
		}
		projected = append(projected, row)
	}

	if q.Distinct {
		projected = distinct(res.Vars, projected)
	}
	orderRows(q.OrderBy, projected)
	res.Rows = slice(projected, q.Offset, q.Limit)
	return res
}

func countResult(q *Query, rows []Binding) *Result {
	res := &Result{}
	row := Binding{}
	for _, item := range q.Projection {
		if !item.IsCount {
			continue
		}
		n := 0
		if item.CountVar == "" {
			n = len(rows)
			if item.CountDistinct {
				n = len(distinct(collectVars(rows), rows))
			}
		} else {
			seen := map[string]bool{}
			for _, b := range rows {
				t, ok := b[item.CountVar]
				if !ok {
					continue
				}
				if item.CountDistinct {
					key := t.NTriples()
					if seen[key] {
						continue
					}
					seen[key] = true
				}
				n++
			}
		}
		res.Vars = append(res.Vars, item.Alias)
		row[item.Alias] = graph.IntLit(n)
	}
	res.Rows = []Binding{row}
	return res
}

func constructResult(q *Query, rows []Binding) *Result {
	res := &Result{}
	seen := map[string]bool{}
	for _, b := range rows {
		for _, tp := range q.Template {
			s, okS := resolve(tp.S, b)
			p, okP := resolve(tp.P, b)
			o, okO := resolve(tp.O, b)
			if !okS || !okP || !okO || !s.IsIRI() || !p.IsIRI() {
				continue
			}
			t := graph.NewTriple(s.Value, p.Value, o)
			key := t.NTriples()
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Triples = append(res.Triples, t)
		}
	}
	return res
}

func collectVars(rows []Binding) []string {
	set := map[string]bool{}
	for _, b := range rows {
		for v := range b {
			set[v] = true
		}
	}
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func distinct(vars []string, rows []Binding) []Binding {
	seen := map[string]bool{}
	out := rows[:0:0]
	for _, b := range rows {
		var sb strings.Builder
		for _, v := range vars {
			if t, ok := b[v]; ok {
				sb.WriteString(t.NTriples())
			}
			sb.WriteByte('|')
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

func orderRows(keys []OrderKey, rows []Binding) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			a, aok := rows[i][key.Var]
			b, bok := rows[j][key.Var]
			if !aok || !bok {
				if aok == bok {
					continue
				}
				return bok == key.Desc
			}
			cmp := compareTerms(a, b)
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareTerms(a, b graph.Term) int {
	if an, aok := numericValue(a); aok {
		if bn, bok := numericValue(b); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a.Value, b.Value)
}

func slice(rows []Binding, offset, limit int) []Binding {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// FormatTerm renders a term for tabular output: IRIs in angle brackets,
// literals bare.
func FormatTerm(t graph.Term) string {
	if t.IsIRI() {
		return "<" + t.Value + ">"
	}
	return t.Value
}

// AtoiTerm extracts an integer from a numeric literal, for callers that
// read COUNT projections.
func AtoiTerm(t graph.Term) (int, bool) {
	n, err := strconv.Atoi(t.Value)
	return n, err == nil
}
