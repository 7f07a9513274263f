// Package python provides Python source parsing using tree-sitter.
package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tspython "github.com/smacker/go-tree-sitter/python"

	"github.com/c360studio/repolex/parser"
)

func init() {
	parser.DefaultRegistry.Register("python", []string{".py"}, func() parser.FileParser {
		return NewParser()
	})
}

// Parser extracts functions, classes and modules from Python files.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Python parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(tspython.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile parses one Python file. Files whose parse tree contains
// syntax errors are rejected so the walker can skip and report them.
func (p *Parser) ParseFile(ctx context.Context, absPath, relPath string) (*parser.Result, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("syntax errors in %s", relPath)
	}

	modulePath := moduleName(relPath)
	result := &parser.Result{}

	mod := parser.Module{
		Path:      modulePath,
		File:      relPath,
		Docstring: moduleDocstring(root, content),
		LineCount: int(root.EndPoint().Row) + 1,
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		p.extractTopLevel(child, content, relPath, modulePath, &mod, result)
	}

	mod.FunctionCount = len(result.Functions)
	mod.ClassCount = len(result.Classes)
	result.Modules = append(result.Modules, mod)
	return result, nil
}

// extractTopLevel handles one module-scope statement.
func (p *Parser) extractTopLevel(node *sitter.Node, content []byte, relPath, modulePath string, mod *parser.Module, result *parser.Result) {
	switch node.Type() {
	case "function_definition":
		fn := p.extractFunction(node, content, relPath, modulePath, "")
		if fn != nil {
			mod.TopLevel = append(mod.TopLevel, fn.Name)
			result.Functions = append(result.Functions, *fn)
		}

	case "class_definition":
		p.extractClass(node, content, relPath, modulePath, mod, result)

	case "decorated_definition":
		if def := definitionIn(node); def != nil {
			switch def.Type() {
			case "function_definition":
				fn := p.extractFunction(def, content, relPath, modulePath, "")
				if fn != nil {
					mod.TopLevel = append(mod.TopLevel, fn.Name)
					result.Functions = append(result.Functions, *fn)
				}
			case "class_definition":
				p.extractClass(def, content, relPath, modulePath, mod, result)
			}
		}

	case "expression_statement":
		// Track module-level assignments as top-level names only.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() != "assignment" {
				continue
			}
			if left := child.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				mod.TopLevel = append(mod.TopLevel, text(left, content))
			}
		}
	}
}

// extractClass emits the class and its methods.
func (p *Parser) extractClass(node *sitter.Node, content []byte, relPath, modulePath string, mod *parser.Module, result *parser.Result) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := text(nameNode, content)

	cls := parser.Class{
		QualifiedName: modulePath + "." + name,
		Name:          name,
		Module:        modulePath,
		File:          relPath,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(i)
			base := text(arg, content)
			// Keyword arguments (metaclass=...) are not parents.
			if !strings.Contains(base, "=") {
				cls.Parents = append(cls.Parents, base)
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		cls.Docstring = bodyDocstring(body, content)
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			def := child
			if child.Type() == "decorated_definition" {
				def = definitionIn(child)
			}
			if def == nil || def.Type() != "function_definition" {
				continue
			}
			method := p.extractFunction(def, content, relPath, modulePath, name)
			if method != nil {
				cls.Methods = append(cls.Methods, method.QualifiedName)
				result.Functions = append(result.Functions, *method)
			}
		}
	}

	mod.TopLevel = append(mod.TopLevel, name)
	result.Classes = append(result.Classes, cls)
}

// extractFunction builds a Function from a function_definition node.
// enclosingClass is empty for module-level functions.
func (p *Parser) extractFunction(node *sitter.Node, content []byte, relPath, modulePath, enclosingClass string) *parser.Function {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := text(nameNode, content)

	qualified := modulePath + "." + name
	if enclosingClass != "" {
		qualified = modulePath + "." + enclosingClass + "." + name
	}

	fn := &parser.Function{
		QualifiedName: qualified,
		Name:          name,
		Module:        modulePath,
		File:          relPath,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		IsMethod:      enclosingClass != "",
		IsAsync:       isAsync(node, content),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = extractParams(params, content)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnType = text(ret, content)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Docstring = bodyDocstring(body, content)
		fn.BodyLines = int(body.EndPoint().Row-body.StartPoint().Row) + 1
		fn.BodyHash = parser.ComputeHash(content[body.StartByte():body.EndByte()])
		fn.Calls = collectCalls(body, content)
	}
	return fn
}

// extractParams reads the parameter list with declared-type and default
// text kept verbatim.
func extractParams(node *sitter.Node, content []byte) []parser.Param {
	var params []parser.Param
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			params = append(params, parser.Param{Name: text(child, content)})

		case "typed_parameter":
			var name string
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if sub := child.NamedChild(j); sub.Type() == "identifier" {
					name = text(sub, content)
					break
				}
			}
			param := parser.Param{Name: name}
			if ty := child.ChildByFieldName("type"); ty != nil {
				param.Type = text(ty, content)
			}
			params = append(params, param)

		case "default_parameter":
			param := parser.Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				param.Name = text(n, content)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				param.Default = text(v, content)
			}
			params = append(params, param)

		case "typed_default_parameter":
			param := parser.Param{}
			if n := child.ChildByFieldName("name"); n != nil {
				param.Name = text(n, content)
			}
			if ty := child.ChildByFieldName("type"); ty != nil {
				param.Type = text(ty, content)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				param.Default = text(v, content)
			}
			params = append(params, param)

		case "list_splat_pattern", "dictionary_splat_pattern":
			params = append(params, parser.Param{Name: text(child, content)})
		}
	}
	return params
}

// collectCalls gathers the names syntactically invoked inside a body,
// deduplicated and sorted for deterministic output.
func collectCalls(body *sitter.Node, content []byte) []string {
	seen := make(map[string]bool)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				seen[text(fn, content)] = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)

	if len(seen) == 0 {
		return nil
	}
	calls := make([]string, 0, len(seen))
	for name := range seen {
		calls = append(calls, name)
	}
	sort.Strings(calls)
	return calls
}

// moduleName converts a relative path to a dotted module path, folding
// __init__.py onto its package.
func moduleName(relPath string) string {
	mod := strings.TrimSuffix(relPath, ".py")
	mod = strings.ReplaceAll(mod, string(filepath.Separator), ".")
	return strings.TrimSuffix(mod, ".__init__")
}

// moduleDocstring extracts the leading module docstring if present.
func moduleDocstring(root *sitter.Node, content []byte) string {
	if root.NamedChildCount() == 0 {
		return ""
	}
	return docstringOf(root.NamedChild(0), content)
}

// bodyDocstring extracts the docstring from a function or class body.
func bodyDocstring(body *sitter.Node, content []byte) string {
	if body.NamedChildCount() == 0 {
		return ""
	}
	return docstringOf(body.NamedChild(0), content)
}

func docstringOf(stmt *sitter.Node, content []byte) string {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return ""
	}
	expr := stmt.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	return stripQuotes(text(expr, content))
}

func stripQuotes(raw string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return strings.TrimSpace(raw[len(q) : len(raw)-len(q)])
		}
	}
	return strings.TrimSpace(raw)
}

// isAsync checks for the async keyword before def.
func isAsync(node *sitter.Node, content []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "async" || text(child, content) == "async" {
			return true
		}
	}
	return false
}

// definitionIn finds the definition node inside a decorated_definition.
func definitionIn(node *sitter.Node) *sitter.Node {
	if def := node.ChildByFieldName("definition"); def != nil {
		return def
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition", "function_definition":
			return child
		}
	}
	return nil
}

func text(n *sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}
