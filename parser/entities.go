// Package parser extracts code entities from a single-version source
// checkout. Entities are tagged variants; downstream code branches on the
// Kind tag rather than on concrete types.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind tags a parsed entity variant.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindModule   Kind = "module"
)

// Param is one declared parameter with its source-level type and default
// text, kept verbatim.
type Param struct {
	Name    string
	Type    string
	Default string
}

// Required reports whether the parameter has no default.
func (p Param) Required() bool { return p.Default == "" }

// Function is a parsed function or method.
type Function struct {
	// QualifiedName is the dotted path including the module and any
	// enclosing class, e.g. "acme.lib.core.create".
	QualifiedName string

	// Name is the bare identifier.
	Name string

	// Module is the dotted module path.
	Module string

	Params     []Param
	ReturnType string
	Docstring  string

	// File is the defining file, relative to the checkout root.
	File      string
	StartLine int
	EndLine   int

	// BodyLines is the lexical body size in lines.
	BodyLines int

	// BodyHash fingerprints the body text for change detection.
	BodyHash string

	// Calls lists names syntactically invoked from the body, for optional
	// call-graph materialization.
	Calls []string

	IsMethod bool
	IsAsync  bool
}

// Signature renders the declaration text used for signature comparison
// across versions.
func (f *Function) Signature() string {
	var sb strings.Builder
	if f.IsAsync {
		sb.WriteString("async ")
	}
	sb.WriteString("def ")
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		if p.Type != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Type)
		}
		if p.Default != "" {
			sb.WriteString(" = ")
			sb.WriteString(p.Default)
		}
	}
	sb.WriteByte(')')
	if f.ReturnType != "" {
		sb.WriteString(" -> ")
		sb.WriteString(f.ReturnType)
	}
	return sb.String()
}

// Category tags the implementation record.
func (f *Function) Category() string {
	switch {
	case f.IsAsync:
		return "async_function"
	case f.IsMethod:
		return "method"
	}
	return "function"
}

// Visibility follows the target language's underscore convention.
func (f *Function) Visibility() string {
	if strings.HasPrefix(f.Name, "_") {
		return "private"
	}
	return "public"
}

// Class is a parsed class definition.
type Class struct {
	QualifiedName string
	Name          string
	Module        string

	// Parents holds parent class names as written in the source.
	Parents []string

	// Methods holds the qualified names of enclosed methods.
	Methods []string

	Docstring string
	File      string
	StartLine int
	EndLine   int
}

// Module is a parsed source module.
type Module struct {
	// Path is the dotted module path, e.g. "acme.lib.core".
	Path string

	// File is the module's file, relative to the checkout root.
	File string

	// TopLevel lists names defined at module scope.
	TopLevel []string

	Docstring     string
	LineCount     int
	FunctionCount int
	ClassCount    int
}

// Entity is the tagged variant handed to downstream consumers.
type Entity struct {
	Kind     Kind
	Function *Function
	Class    *Class
	Module   *Module
}

// SkippedFile records one file the parser gave up on, with the reason.
type SkippedFile struct {
	Path   string
	Reason string
}

// Result is a full single-version parse.
type Result struct {
	Functions []Function
	Classes   []Class
	Modules   []Module
	Skipped   []SkippedFile
}

// Entities returns the tagged-variant view in a deterministic order:
// modules, then classes, then functions, each in parse order.
func (r *Result) Entities() []Entity {
	out := make([]Entity, 0, len(r.Functions)+len(r.Classes)+len(r.Modules))
	for i := range r.Modules {
		out = append(out, Entity{Kind: KindModule, Module: &r.Modules[i]})
	}
	for i := range r.Classes {
		out = append(out, Entity{Kind: KindClass, Class: &r.Classes[i]})
	}
	for i := range r.Functions {
		out = append(out, Entity{Kind: KindFunction, Function: &r.Functions[i]})
	}
	return out
}

// FunctionByName finds a function by qualified name.
func (r *Result) FunctionByName(qualified string) (*Function, bool) {
	for i := range r.Functions {
		if r.Functions[i].QualifiedName == qualified {
			return &r.Functions[i], true
		}
	}
	return nil, false
}

// ComputeHash fingerprints content for change detection.
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8])
}

// Refactor score boundaries. Functions score by body line count, classes
// by method count, modules by function count.

// FunctionRefactorScore tags a function by its body size.
func FunctionRefactorScore(bodyLines int) string {
	switch {
	case bodyLines < 50:
		return "small"
	case bodyLines < 100:
		return "good"
	case bodyLines < 200:
		return "medium_function"
	case bodyLines < 400:
		return "large_function"
	}
	return "monster_function"
}

// ClassRefactorScore tags a class by its method count.
func ClassRefactorScore(methodCount int) string {
	switch {
	case methodCount < 10:
		return "simple"
	case methodCount < 20:
		return "good"
	case methodCount < 30:
		return "medium_class"
	case methodCount < 50:
		return "large_class"
	}
	return "god_class"
}

// ModuleRefactorScore tags a module by its function count.
func ModuleRefactorScore(functionCount int) string {
	switch {
	case functionCount < 3:
		return "simple"
	case functionCount < 10:
		return "good"
	case functionCount < 20:
		return "moderate_functions"
	case functionCount < 30:
		return "many_functions"
	}
	return "excessive_functions"
}

// ModuleCategory buckets a module by its dotted path segments.
func ModuleCategory(dottedPath string) string {
	for _, segment := range strings.Split(dottedPath, ".") {
		switch segment {
		case "test", "tests", "testing":
			return "tests"
		case "cli", "cmd", "commands":
			return "cli"
		case "util", "utils", "helpers":
			return "utilities"
		case "api", "rest", "http":
			return "api"
		case "models", "model", "schema":
			return "models"
		case "core", "engine", "internal":
			return "core"
		}
	}
	return "general"
}

// DuplicateKey is the identity tie-break key: (module path, qualified
// name). Entities sharing both are duplicates; first parse-order wins.
func DuplicateKey(module, qualifiedName string) string {
	return fmt.Sprintf("%s\x00%s", module, qualifiedName)
}
