package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/repolex/graph"
)

const (
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	rdfType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Parse tokenizes and parses a read-only query. Update forms have already
// been rejected by CheckReadOnly; Parse re-checks as a second gate.
func Parse(input string) (*Query, error) {
	if err := CheckReadOnly(input); err != nil {
		return nil, err
	}
	p := &parser{lx: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseQuery()
}

type parser struct {
	lx  *lexer
	tok token
	q   *Query
}

func (p *parser) advance() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) error {
	if p.tok.kind != tokPunct || p.tok.text != text {
		return p.errf("expected %q, found %q", text, p.tok.text)
	}
	return p.advance()
}

func (p *parser) expectKeyword(word string) error {
	if p.tok.kind != tokKeyword || p.tok.text != word {
		return p.errf("expected %s", word)
	}
	return p.advance()
}

func (p *parser) isKeyword(word string) bool {
	return p.tok.kind == tokKeyword && p.tok.text == word
}

func (p *parser) parseQuery() (*Query, error) {
	p.q = &Query{Prefixes: map[string]string{}, Limit: -1}

	for p.isKeyword("PREFIX") || p.isKeyword("BASE") {
		if p.isKeyword("BASE") {
			return nil, p.errf("BASE is not supported")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokPName {
			return nil, p.errf("expected prefix name")
		}
		name := strings.TrimSuffix(p.tok.text, ":")
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIRI {
			return nil, p.errf("expected namespace IRI")
		}
		p.q.Prefixes[name] = p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	switch {
	case p.isKeyword("SELECT"):
		p.q.Form = FormSelect
		if err := p.parseSelect(); err != nil {
			return nil, err
		}
	case p.isKeyword("ASK"):
		p.q.Form = FormAsk
		if err := p.advance(); err != nil {
			return nil, err
		}
		group, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		p.q.Where = group
	case p.isKeyword("CONSTRUCT"):
		p.q.Form = FormConstruct
		if err := p.parseConstruct(); err != nil {
			return nil, err
		}
	default:
		return nil, p.errf("expected SELECT, ASK or CONSTRUCT")
	}

	if err := p.parseModifiers(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errf("unexpected trailing input %q", p.tok.text)
	}
	return p.q, nil
}

func (p *parser) parseSelect() error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.isKeyword("DISTINCT") {
		p.q.Distinct = true
		if err := p.advance(); err != nil {
			return err
		}
	}

	for {
		switch {
		case p.tok.kind == tokPunct && p.tok.text == "*":
			p.q.Star = true
			if err := p.advance(); err != nil {
				return err
			}
		case p.tok.kind == tokVar:
			p.q.Projection = append(p.q.Projection, SelectItem{Var: p.tok.text})
			if err := p.advance(); err != nil {
				return err
			}
		case p.tok.kind == tokPunct && p.tok.text == "(":
			item, err := p.parseAggregate()
			if err != nil {
				return err
			}
			p.q.Projection = append(p.q.Projection, item)
		default:
			if !p.q.Star && len(p.q.Projection) == 0 {
				return p.errf("empty SELECT projection")
			}
			if err := p.expectKeyword("WHERE"); err != nil {
				return err
			}
			group, err := p.parseGroup()
			if err != nil {
				return err
			}
			p.q.Where = group
			return nil
		}
	}
}

// parseAggregate parses (COUNT(DISTINCT? ?v|*) AS ?alias).
func (p *parser) parseAggregate() (SelectItem, error) {
	var item SelectItem
	if err := p.advance(); err != nil { // consume "("
		return item, err
	}
	if !p.isKeyword("COUNT") {
		return item, p.errf("only COUNT aggregates are supported")
	}
	item.IsCount = true
	if err := p.advance(); err != nil {
		return item, err
	}
	if err := p.expectPunct("("); err != nil {
		return item, err
	}
	if p.isKeyword("DISTINCT") {
		item.CountDistinct = true
		if err := p.advance(); err != nil {
			return item, err
		}
	}
	switch {
	case p.tok.kind == tokPunct && p.tok.text == "*":
		if err := p.advance(); err != nil {
			return item, err
		}
	case p.tok.kind == tokVar:
		item.CountVar = p.tok.text
		if err := p.advance(); err != nil {
			return item, err
		}
	default:
		return item, p.errf("expected variable or * in COUNT")
	}
	if err := p.expectPunct(")"); err != nil {
		return item, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return item, err
	}
	if p.tok.kind != tokVar {
		return item, p.errf("expected alias variable after AS")
	}
	item.Alias = p.tok.text
	if err := p.advance(); err != nil {
		return item, err
	}
	return item, p.expectPunct(")")
}

func (p *parser) parseConstruct() error {
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		tp, err := p.parseTriplePattern()
		if err != nil {
			return err
		}
		p.q.Template = append(p.q.Template, tp)
		if p.tok.kind == tokPunct && p.tok.text == "." {
			if err := p.advance(); err != nil {
				return err
			}
		}
	}
	if err := p.advance(); err != nil { // consume "}"
		return err
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return err
	}
	group, err := p.parseGroup()
	if err != nil {
		return err
	}
	p.q.Where = group
	return nil
}

func (p *parser) parseModifiers() error {
	for {
		switch {
		case p.isKeyword("ORDER"):
			if err := p.advance(); err != nil {
				return err
			}
			if err := p.expectKeyword("BY"); err != nil {
				return err
			}
			for {
				key, ok, err := p.parseOrderKey()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				p.q.OrderBy = append(p.q.OrderBy, key)
			}
			if len(p.q.OrderBy) == 0 {
				return p.errf("ORDER BY requires at least one key")
			}
		case p.isKeyword("LIMIT"):
			if err := p.advance(); err != nil {
				return err
			}
			n, err := p.expectInt()
			if err != nil {
				return err
			}
			p.q.Limit = n
		case p.isKeyword("OFFSET"):
			if err := p.advance(); err != nil {
				return err
			}
			n, err := p.expectInt()
			if err != nil {
				return err
			}
			p.q.Offset = n
		default:
			return nil
		}
	}
}

func (p *parser) parseOrderKey() (OrderKey, bool, error) {
	switch {
	case p.tok.kind == tokVar:
		key := OrderKey{Var: p.tok.text}
		return key, true, p.advance()
	case p.isKeyword("ASC"), p.isKeyword("DESC"):
		desc := p.tok.text == "DESC"
		if err := p.advance(); err != nil {
			return OrderKey{}, false, err
		}
		if err := p.expectPunct("("); err != nil {
			return OrderKey{}, false, err
		}
		if p.tok.kind != tokVar {
			return OrderKey{}, false, p.errf("expected variable in ORDER BY")
		}
		key := OrderKey{Var: p.tok.text, Desc: desc}
		if err := p.advance(); err != nil {
			return OrderKey{}, false, err
		}
		return key, true, p.expectPunct(")")
	}
	return OrderKey{}, false, nil
}

func (p *parser) expectInt() (int, error) {
	if p.tok.kind != tokNumber {
		return 0, p.errf("expected integer")
	}
	n, err := strconv.Atoi(p.tok.text)
	if err != nil {
		return 0, p.errf("invalid integer %q", p.tok.text)
	}
	return n, p.advance()
}

func (p *parser) parseGroup() (GroupPattern, error) {
	var group GroupPattern
	if err := p.expectPunct("{"); err != nil {
		return group, err
	}
	for {
		switch {
		case p.tok.kind == tokPunct && p.tok.text == "}":
			return group, p.advance()

		case p.isKeyword("GRAPH"):
			if err := p.advance(); err != nil {
				return group, err
			}
			g, err := p.parseNodeOrVar()
			if err != nil {
				return group, err
			}
			inner, err := p.parseGroup()
			if err != nil {
				return group, err
			}
			group.Graphs = append(group.Graphs, GraphBlock{Graph: g, Group: inner})

		case p.isKeyword("OPTIONAL"):
			if err := p.advance(); err != nil {
				return group, err
			}
			inner, err := p.parseGroup()
			if err != nil {
				return group, err
			}
			group.Optionals = append(group.Optionals, inner)

		case p.isKeyword("FILTER"):
			if err := p.advance(); err != nil {
				return group, err
			}
			expr, err := p.parseFilter()
			if err != nil {
				return group, err
			}
			group.Filters = append(group.Filters, expr)

		case p.tok.kind == tokEOF:
			return group, p.errf("unterminated group pattern")

		default:
			tp, err := p.parseTriplePattern()
			if err != nil {
				return group, err
			}
			group.Patterns = append(group.Patterns, tp)
			if p.tok.kind == tokPunct && p.tok.text == "." {
				if err := p.advance(); err != nil {
					return group, err
				}
			}
		}
	}
}

// parseTriplePattern parses one subject predicate object pattern.
// Predicate lists (';') and object lists (',') are not accepted.
func (p *parser) parseTriplePattern() (TriplePattern, error) {
	s, err := p.parseNodeOrVar()
	if err != nil {
		return TriplePattern{}, err
	}
	pr, err := p.parsePredicate()
	if err != nil {
		return TriplePattern{}, err
	}
	o, err := p.parseObject()
	if err != nil {
		return TriplePattern{}, err
	}
	return TriplePattern{S: s, P: pr, O: o}, nil
}

func (p *parser) parsePredicate() (NodeOrVar, error) {
	// "a" abbreviates rdf:type.
	if p.isKeyword("A") {
		if err := p.advance(); err != nil {
			return NodeOrVar{}, err
		}
		return Node(graph.IRI(rdfType)), nil
	}
	return p.parseNodeOrVar()
}

func (p *parser) parseNodeOrVar() (NodeOrVar, error) {
	switch p.tok.kind {
	case tokVar:
		v := Var(p.tok.text)
		return v, p.advance()
	case tokIRI:
		n := Node(graph.IRI(p.tok.text))
		return n, p.advance()
	case tokPName:
		iri, err := p.expandPName(p.tok.text)
		if err != nil {
			return NodeOrVar{}, err
		}
		n := Node(graph.IRI(iri))
		return n, p.advance()
	}
	return NodeOrVar{}, p.errf("expected variable, IRI or prefixed name, found %q", p.tok.text)
}

func (p *parser) parseObject() (NodeOrVar, error) {
	switch p.tok.kind {
	case tokLiteral:
		var term graph.Term
		if p.tok.datatype != "" {
			term = graph.TypedLit(p.tok.text, p.tok.datatype)
		} else {
			term = graph.Lit(p.tok.text)
		}
		n := Node(term)
		return n, p.advance()
	case tokNumber:
		dt := xsdInteger
		if strings.Contains(p.tok.text, ".") {
			dt = xsdDecimal
		}
		n := Node(graph.TypedLit(p.tok.text, dt))
		return n, p.advance()
	case tokKeyword:
		if p.tok.text == "TRUE" || p.tok.text == "FALSE" {
			n := Node(graph.TypedLit(strings.ToLower(p.tok.text), xsdBoolean))
			return n, p.advance()
		}
	}
	return p.parseNodeOrVar()
}

func (p *parser) expandPName(pname string) (string, error) {
	idx := strings.Index(pname, ":")
	prefix, local := pname[:idx], pname[idx+1:]
	ns, ok := p.q.Prefixes[prefix]
	if !ok {
		return "", p.errf("undeclared prefix %q", prefix)
	}
	return ns + local, nil
}
