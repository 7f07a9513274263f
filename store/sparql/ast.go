// Package sparql implements the read-only SPARQL subset the store adapter
// executes: SELECT, ASK and CONSTRUCT over named graphs with basic graph
// patterns, OPTIONAL, FILTER, DISTINCT, COUNT, ORDER BY and LIMIT/OFFSET.
// Update forms are rejected before parsing begins.
package sparql

import (
	"fmt"

	"github.com/c360studio/repolex/graph"
)

// Form is the query form.
type Form int

const (
	FormSelect Form = iota
	FormAsk
	FormConstruct
)

// Query is a parsed query.
type Query struct {
	Form     Form
	Prefixes map[string]string

	// Select projection. Empty with Star set means SELECT *.
	Star     bool
	Distinct bool
	Projection []SelectItem

	Where GroupPattern

	// Construct template, for FormConstruct.
	Template []TriplePattern

	OrderBy []OrderKey
	Limit   int // -1 when absent
	Offset  int
}

// SelectItem is one projected variable or aggregate.
type SelectItem struct {
	Var string // plain variable name, without '?'

	// Aggregate projection: COUNT(expr) AS Alias.
	IsCount       bool
	CountDistinct bool
	CountVar      string // "" means COUNT(*)
	Alias         string
}

// OrderKey is one ORDER BY criterion.
type OrderKey struct {
	Var  string
	Desc bool
}

// NodeOrVar is a term position that is either a variable or a ground term.
type NodeOrVar struct {
	IsVar bool
	Var   string
	Term  graph.Term
}

// Var makes a variable node.
func Var(name string) NodeOrVar { return NodeOrVar{IsVar: true, Var: name} }

// Node makes a ground node.
func Node(t graph.Term) NodeOrVar { return NodeOrVar{Term: t} }

// TriplePattern is one pattern with variables allowed in any position.
type TriplePattern struct {
	S, P, O NodeOrVar
}

// GraphBlock scopes a group to a named graph, by IRI or variable.
type GraphBlock struct {
	Graph NodeOrVar
	Group GroupPattern
}

// GroupPattern is a group of patterns, nested graph scopes, optional
// groups and filters, evaluated in order.
type GroupPattern struct {
	Patterns  []TriplePattern
	Graphs    []GraphBlock
	Optionals []GroupPattern
	Filters   []Expr
}

// SyntaxError reports the byte offset of the offending token.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// SecurityError reports an update form found in a query.
type SecurityError struct {
	Keyword string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("update form %q is not allowed; only SELECT, ASK and CONSTRUCT queries are accepted", e.Keyword)
}
