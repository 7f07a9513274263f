// Package exporters emits compact and outline artifacts from the store.
// Exports are read-only: they stream over paginated queries and never
// mutate graphs; a failed export removes its partial output file.
package exporters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/gitintel"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/store"
	"github.com/c360studio/repolex/store/sparql"
)

// DefaultBatchSize is the page size for streaming reads.
const DefaultBatchSize = 50

// Exporter reads one repository version from the store.
type Exporter struct {
	store     *store.Store
	batchSize int
}

// New creates an Exporter. batchSize <= 0 selects the default.
func New(st *store.Store, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{store: st, batchSize: batchSize}
}

// FunctionRow is one exported function.
type FunctionRow struct {
	Name      string
	Qualified string
	Signature string
	Docstring string
	Module    string
	File      string
	StartLine int
	BodyLines int
	Category  string
	Refactor  string
}

// ClassRow is one exported class.
type ClassRow struct {
	Name      string
	Qualified string
	Module    string
	Inherits  []string
	Methods   int
	Category  string
	Refactor  string
}

// ModuleRow is one exported module.
type ModuleRow struct {
	Path          string
	File          string
	FunctionCount int
	Category      string
}

// PatternRow is one exported naming pattern.
type PatternRow struct {
	Name      string
	Frequency int
}

// queryBatches pages a SELECT with a stable ordering key, invoking fn for
// every row. The template must contain {LIMIT} and {OFFSET} placeholders.
func (e *Exporter) queryBatches(ctx context.Context, template string, fn func(sparql.Binding) error) error {
	offset := 0
	for {
		q := strings.NewReplacer(
			"{LIMIT}", fmt.Sprintf("%d", e.batchSize),
			"{OFFSET}", fmt.Sprintf("%d", offset),
		).Replace(template)
		res, err := e.store.Query(ctx, q, 0)
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if len(res.Rows) < e.batchSize {
			return nil
		}
		offset += e.batchSize
	}
}

func str(b sparql.Binding, name string) string {
	if t, ok := b[name]; ok {
		return t.Value
	}
	return ""
}

func num(b sparql.Binding, name string) int {
	if t, ok := b[name]; ok {
		if n, ok := sparql.AtoiTerm(t); ok {
			return n
		}
	}
	return 0
}

// Functions streams the functions of one version in qualified-name order.
func (e *Exporter) Functions(ctx context.Context, org, repo, version string, fn func(FunctionRow) error) error {
	gs := graph.Graphs(org, repo, version)
	template := `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?impl ?stable ?name ?module ?sig ?doc ?file ?start ?loc ?cat ?refactor WHERE {
			GRAPH <` + gs.FunctionsImplementations + `> {
				?impl woc:belongsToVersion "` + version + `" .
				?impl woc:implementsFunction ?stable .
				?impl woc:hasSignature ?sig .
				?impl woc:definedInFile ?file .
				?impl woc:startLine ?start .
				?impl woc:bodyLines ?loc .
				?impl woc:implementationCategory ?cat .
				?impl woc:refactorScore ?refactor .
				OPTIONAL { ?impl <http://www.w3.org/2000/01/rdf-schema#comment> ?doc }
			}
			GRAPH <` + gs.FunctionsStable + `> {
				?stable woc:canonicalName ?name .
				?stable woc:module ?module .
			}
		} ORDER BY ?name LIMIT {LIMIT} OFFSET {OFFSET}`

	return e.queryBatches(ctx, template, func(b sparql.Binding) error {
		qualified := str(b, "name")
		row := FunctionRow{
			Name:      lastSegment(qualified),
			Qualified: qualified,
			Signature: str(b, "sig"),
			Docstring: str(b, "doc"),
			Module:    str(b, "module"),
			File:      str(b, "file"),
			StartLine: num(b, "start"),
			BodyLines: num(b, "loc"),
			Category:  str(b, "cat"),
			Refactor:  str(b, "refactor"),
		}
		return fn(row)
	})
}

// Classes streams the classes of one version.
func (e *Exporter) Classes(ctx context.Context, org, repo, version string, fn func(ClassRow) error) error {
	gs := graph.Graphs(org, repo, version)
	template := `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?impl ?stable ?name ?module ?methods ?refactor WHERE {
			GRAPH <` + gs.FunctionsImplementations + `> {
				?impl woc:belongsToVersion "` + version + `" .
				?impl woc:implementsClass ?stable .
				?impl woc:methodCount ?methods .
				?impl woc:refactorScore ?refactor .
			}
			GRAPH <` + gs.FunctionsStable + `> {
				?stable woc:canonicalName ?name .
				?stable woc:module ?module .
			}
		} ORDER BY ?name LIMIT {LIMIT} OFFSET {OFFSET}`

	return e.queryBatches(ctx, template, func(b sparql.Binding) error {
		qualified := str(b, "name")
		row := ClassRow{
			Name:      lastSegment(qualified),
			Qualified: qualified,
			Module:    str(b, "module"),
			Methods:   num(b, "methods"),
			Category:  "class",
			Refactor:  str(b, "refactor"),
		}
		parents, err := e.classParents(ctx, gs.FunctionsImplementations, str(b, "impl"))
		if err != nil {
			return err
		}
		row.Inherits = parents
		return fn(row)
	})
}

// classParents reads the extends literals of one class implementation.
func (e *Exporter) classParents(ctx context.Context, implGraph, implURI string) ([]string, error) {
	extends := "http://rdf.webofcode.org/woc/extends"
	var parents []string
	err := e.store.Scan(implGraph, &implURI, &extends, nil, func(t graph.Triple) error {
		parents = append(parents, t.Object.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(parents)
	return parents, nil
}

// Modules streams the modules of one version.
func (e *Exporter) Modules(ctx context.Context, org, repo, version string, fn func(ModuleRow) error) error {
	gs := graph.Graphs(org, repo, version)
	counts, err := e.functionCountsByModule(ctx, org, repo, version)
	if err != nil {
		return err
	}

	template := `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT ?mod ?name ?file WHERE {
			GRAPH <` + gs.FunctionsImplementations + `> {
				?mod a woc:Module .
				?mod woc:belongsToVersion "` + version + `" .
				?mod woc:canonicalName ?name .
				?mod woc:definedInFile ?file .
			}
		} ORDER BY ?name LIMIT {LIMIT} OFFSET {OFFSET}`

	return e.queryBatches(ctx, template, func(b sparql.Binding) error {
		path := str(b, "name")
		return fn(ModuleRow{
			Path:          path,
			File:          str(b, "file"),
			FunctionCount: counts[path],
			Category:      parser.ModuleCategory(path),
		})
	})
}

// functionCountsByModule counts this version's functions per module.
func (e *Exporter) functionCountsByModule(ctx context.Context, org, repo, version string) (map[string]int, error) {
	counts := make(map[string]int)
	err := e.Functions(ctx, org, repo, version, func(row FunctionRow) error {
		counts[row.Module]++
		return nil
	})
	return counts, err
}

// Patterns streams the repository's naming patterns.
func (e *Exporter) Patterns(ctx context.Context, org, repo, version string, fn func(PatternRow) error) error {
	gs := graph.Graphs(org, repo, version)
	template := `
		PREFIX evo: <http://repolex.org/evolution/>
		SELECT ?name ?freq WHERE {
			GRAPH <` + gs.EvolutionPatterns + `> {
				?p evo:patternName ?name .
				?p evo:frequency ?freq .
			}
		} ORDER BY ?name LIMIT {LIMIT} OFFSET {OFFSET}`

	return e.queryBatches(ctx, template, func(b sparql.Binding) error {
		return fn(PatternRow{Name: str(b, "name"), Frequency: num(b, "freq")})
	})
}

// DefaultExportPath is {root}/exports/{org}/{repo}/{version}.{ext}.
func DefaultExportPath(exportsRoot, org, repo, version, ext string) (string, error) {
	if err := graph.ValidateOrgRepo(org); err != nil {
		return "", err
	}
	if err := graph.ValidateOrgRepo(repo); err != nil {
		return "", err
	}
	if err := graph.ValidateVersion(version); err != nil {
		return "", err
	}
	path := filepath.Join(exportsRoot, org, repo, version+"."+ext)
	if err := gitintel.ValidatePathWithin(exportsRoot, path); err != nil {
		return "", err
	}
	return path, nil
}

// atomicFile writes through a temp file and removes it on failure, so a
// failed export never leaves a partial artifact.
type atomicFile struct {
	f    *os.File
	path string
}

func createAtomic(path string) (*atomicFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperror.Exportf(err, "create export directory")
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return nil, apperror.Exportf(err, "create export file")
	}
	return &atomicFile{f: f, path: path}, nil
}

func (a *atomicFile) Commit() error {
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.f.Name())
		return apperror.Exportf(err, "flush export file")
	}
	if err := os.Rename(a.f.Name(), a.path); err != nil {
		_ = os.Remove(a.f.Name())
		return apperror.Exportf(err, "finalize export file")
	}
	return nil
}

func (a *atomicFile) Abort() {
	_ = a.f.Close()
	_ = os.Remove(a.f.Name())
}

func lastSegment(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

