// Package ontology maps parsed entities onto RDF triples under the code
// vocabularies. The mapper is stateless and deterministic: identical parse
// results yield identical triple sets, which keeps forced rebuilds
// byte-identical in the store.
package ontology

import (
	"sort"
	"strings"

	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/vocabulary/evolution"
	"github.com/c360studio/repolex/vocabulary/filesvocab"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// Context carries the repository coordinates of one mapping run.
type Context struct {
	Org     string
	Repo    string
	Version string
}

// Mapped is the triple output of one parse result, split by target graph.
type Mapped struct {
	// StableFunctions and StableClasses map stable URI → identity triples.
	// The builder decides which of these are genuinely new.
	StableFunctions map[string][]graph.Triple
	StableClasses   map[string][]graph.Triple

	// Implementations go to the implementations graph, partitioned by the
	// belongsToVersion property.
	Implementations []graph.Triple

	// Files is the per-version file-structure graph.
	Files []graph.Triple

	// Meta is the per-version processing-metadata graph.
	Meta []graph.Triple
}

// MapResult maps a full parse result for one version.
func MapResult(c Context, res *parser.Result) *Mapped {
	m := &Mapped{
		StableFunctions: make(map[string][]graph.Triple),
		StableClasses:   make(map[string][]graph.Triple),
	}

	resolver := newCallResolver(c, res)

	for i := range res.Functions {
		fn := &res.Functions[i]
		stableURI := graph.StableFunctionURI(c.Org, c.Repo, fn.QualifiedName)
		m.StableFunctions[stableURI] = stableFunctionTriples(stableURI, fn, resolver)
		m.Implementations = append(m.Implementations, functionImplementationTriples(c, fn)...)
	}

	for i := range res.Classes {
		cls := &res.Classes[i]
		stableURI := graph.StableClassURI(c.Org, c.Repo, cls.QualifiedName)
		m.StableClasses[stableURI] = stableClassTriples(c, stableURI, cls)
		m.Implementations = append(m.Implementations, classImplementationTriples(c, cls)...)
	}

	for i := range res.Modules {
		m.Implementations = append(m.Implementations, moduleTriples(c, &res.Modules[i])...)
	}

	m.Files = fileTriples(c, res)
	m.Meta = metaTriples(c, res)
	return m
}

// ExistsInVersion widens a stable identity's version set by one member.
func ExistsInVersion(stableURI, version string) graph.Triple {
	return graph.NewTriple(stableURI, woc.PropExistsInVersion, graph.Lit(version))
}

// FirstSeen records the version a stable identity first appeared in.
// Emitted only for genuinely new identities.
func FirstSeen(stableURI, version string) graph.Triple {
	return graph.NewTriple(stableURI, woc.PropFirstSeenVersion, graph.Lit(version))
}

func stableFunctionTriples(stableURI string, fn *parser.Function, resolver *callResolver) []graph.Triple {
	triples := []graph.Triple{
		graph.NewTriple(stableURI, woc.RdfType, graph.IRI(woc.ClassFunction)),
		graph.NewTriple(stableURI, woc.PropCanonicalName, graph.Lit(fn.QualifiedName)),
		graph.NewTriple(stableURI, woc.PropModule, graph.Lit(fn.Module)),
	}
	// Call edges are stable-to-stable and only emitted when the callee
	// resolves inside this repository.
	for _, callee := range resolver.resolve(fn) {
		triples = append(triples, graph.NewTriple(stableURI, woc.PropCalls, graph.IRI(callee)))
	}
	return triples
}

func functionImplementationTriples(c Context, fn *parser.Function) []graph.Triple {
	stableURI := graph.StableFunctionURI(c.Org, c.Repo, fn.QualifiedName)
	implURI := graph.ImplementationURI(c.Org, c.Repo, fn.QualifiedName, c.Version)

	triples := []graph.Triple{
		graph.NewTriple(implURI, woc.RdfType, graph.IRI(woc.ClassMethodImplementation)),
		graph.NewTriple(implURI, woc.PropImplementsFunction, graph.IRI(stableURI)),
		graph.NewTriple(implURI, woc.PropBelongsToVersion, graph.Lit(c.Version)),
		graph.NewTriple(implURI, woc.PropHasSignature, graph.Lit(fn.Signature())),
		graph.NewTriple(implURI, woc.PropDefinedInFile, graph.Lit(fn.File)),
		graph.NewTriple(implURI, woc.PropStartLine, graph.IntLit(fn.StartLine)),
		graph.NewTriple(implURI, woc.PropEndLine, graph.IntLit(fn.EndLine)),
		graph.NewTriple(implURI, woc.PropBodyLines, graph.IntLit(fn.BodyLines)),
		graph.NewTriple(implURI, woc.PropBodyHash, graph.Lit(fn.BodyHash)),
		graph.NewTriple(implURI, woc.PropHasVisibility, graph.Lit(fn.Visibility())),
		graph.NewTriple(implURI, woc.PropImplementationCategory, graph.Lit(fn.Category())),
		graph.NewTriple(implURI, woc.PropRefactorScore,
			graph.Lit(parser.FunctionRefactorScore(fn.BodyLines))),
		graph.NewTriple(implURI, woc.PropGithubLink,
			graph.Lit(graph.GithubLink(c.Org, c.Repo, c.Version, fn.File, fn.StartLine, fn.EndLine))),
	}

	if fn.Docstring != "" {
		triples = append(triples, graph.NewTriple(implURI, woc.RdfsComment, graph.Lit(fn.Docstring)))
	}
	if fn.ReturnType != "" {
		triples = append(triples, graph.NewTriple(implURI, woc.PropHasReturnType, graph.Lit(fn.ReturnType)))
	}

	for _, p := range fn.Params {
		paramURI := implURI + "/param_" + graph.EncodeComponent(p.Name)
		triples = append(triples,
			graph.NewTriple(paramURI, woc.RdfType, graph.IRI(woc.ClassParameter)),
			graph.NewTriple(implURI, woc.PropHasParameter, graph.IRI(paramURI)),
			graph.NewTriple(paramURI, woc.PropHasName, graph.Lit(p.Name)),
			graph.NewTriple(paramURI, woc.PropIsRequired, graph.BoolLit(p.Required())),
			graph.NewTriple(paramURI, woc.PropBelongsToVersion, graph.Lit(c.Version)),
		)
		if p.Type != "" {
			triples = append(triples, graph.NewTriple(paramURI, woc.PropHasType, graph.Lit(p.Type)))
		}
		if p.Default != "" {
			triples = append(triples, graph.NewTriple(paramURI, woc.PropHasDefault, graph.Lit(p.Default)))
		}
	}
	return triples
}

func stableClassTriples(c Context, stableURI string, cls *parser.Class) []graph.Triple {
	triples := []graph.Triple{
		graph.NewTriple(stableURI, woc.RdfType, graph.IRI(woc.ClassClass)),
		graph.NewTriple(stableURI, woc.PropCanonicalName, graph.Lit(cls.QualifiedName)),
		graph.NewTriple(stableURI, woc.PropModule, graph.Lit(cls.Module)),
	}
	for _, method := range cls.Methods {
		methodURI := graph.StableFunctionURI(c.Org, c.Repo, method)
		triples = append(triples, graph.NewTriple(stableURI, woc.PropHasMethod, graph.IRI(methodURI)))
	}
	return triples
}

func classImplementationTriples(c Context, cls *parser.Class) []graph.Triple {
	stableURI := graph.StableClassURI(c.Org, c.Repo, cls.QualifiedName)
	implURI := graph.ClassImplementationURI(c.Org, c.Repo, cls.QualifiedName, c.Version)

	triples := []graph.Triple{
		graph.NewTriple(implURI, woc.RdfType, graph.IRI(woc.ClassClassImplementation)),
		graph.NewTriple(implURI, woc.PropImplementsClass, graph.IRI(stableURI)),
		graph.NewTriple(implURI, woc.PropBelongsToVersion, graph.Lit(c.Version)),
		graph.NewTriple(implURI, woc.PropDefinedInFile, graph.Lit(cls.File)),
		graph.NewTriple(implURI, woc.PropStartLine, graph.IntLit(cls.StartLine)),
		graph.NewTriple(implURI, woc.PropEndLine, graph.IntLit(cls.EndLine)),
		graph.NewTriple(implURI, woc.PropMethodCount, graph.IntLit(len(cls.Methods))),
		graph.NewTriple(implURI, woc.PropImplementationCategory, graph.Lit("class")),
		graph.NewTriple(implURI, woc.PropRefactorScore,
			graph.Lit(parser.ClassRefactorScore(len(cls.Methods)))),
	}
	if cls.Docstring != "" {
		triples = append(triples, graph.NewTriple(implURI, woc.RdfsComment, graph.Lit(cls.Docstring)))
	}
	for _, parent := range cls.Parents {
		triples = append(triples, graph.NewTriple(implURI, woc.PropExtends, graph.Lit(parent)))
	}
	return triples
}

func moduleTriples(c Context, mod *parser.Module) []graph.Triple {
	modURI := graph.ModuleURI(c.Org, c.Repo, mod.Path, c.Version)
	triples := []graph.Triple{
		graph.NewTriple(modURI, woc.RdfType, graph.IRI(woc.ClassModule)),
		graph.NewTriple(modURI, woc.PropCanonicalName, graph.Lit(mod.Path)),
		graph.NewTriple(modURI, woc.PropBelongsToVersion, graph.Lit(c.Version)),
		graph.NewTriple(modURI, woc.PropDefinedInFile, graph.Lit(mod.File)),
		graph.NewTriple(modURI, woc.PropImplementationCategory, graph.Lit("module")),
		graph.NewTriple(modURI, woc.PropRefactorScore,
			graph.Lit(parser.ModuleRefactorScore(mod.FunctionCount))),
	}
	if mod.Docstring != "" {
		triples = append(triples, graph.NewTriple(modURI, woc.RdfsComment, graph.Lit(mod.Docstring)))
	}
	return triples
}

func fileTriples(c Context, res *parser.Result) []graph.Triple {
	var triples []graph.Triple
	for i := range res.Modules {
		mod := &res.Modules[i]
		fileURI := graph.FileURI(c.Org, c.Repo, c.Version, mod.File)
		triples = append(triples,
			graph.NewTriple(fileURI, woc.RdfType, graph.IRI(filesvocab.ClassSourceFile)),
			graph.NewTriple(fileURI, filesvocab.PropPath, graph.Lit(mod.File)),
			graph.NewTriple(fileURI, filesvocab.PropLineCount, graph.IntLit(mod.LineCount)),
			graph.NewTriple(fileURI, filesvocab.PropGithubURL,
				graph.Lit(graph.GithubLink(c.Org, c.Repo, c.Version, mod.File, 0, 0))),
		)
	}
	for i := range res.Functions {
		fn := &res.Functions[i]
		fileURI := graph.FileURI(c.Org, c.Repo, c.Version, fn.File)
		implURI := graph.ImplementationURI(c.Org, c.Repo, fn.QualifiedName, c.Version)
		triples = append(triples,
			graph.NewTriple(fileURI, filesvocab.PropContainsFunction, graph.IRI(implURI)))
	}
	for i := range res.Classes {
		cls := &res.Classes[i]
		fileURI := graph.FileURI(c.Org, c.Repo, c.Version, cls.File)
		implURI := graph.ClassImplementationURI(c.Org, c.Repo, cls.QualifiedName, c.Version)
		triples = append(triples,
			graph.NewTriple(fileURI, filesvocab.PropContainsClass, graph.IRI(implURI)))
	}
	return triples
}

// metaTriples emits the per-version processing record. Values derive from
// the parse result only, never from the clock, so forced rebuilds of the
// same checkout are byte-identical.
func metaTriples(c Context, res *parser.Result) []graph.Triple {
	metaURI := graph.Graphs(c.Org, c.Repo, c.Version).ProcessingMetadata + "#metadata"
	public := 0
	for i := range res.Functions {
		if res.Functions[i].Visibility() == "public" {
			public++
		}
	}
	return []graph.Triple{
		graph.NewTriple(metaURI, woc.RdfType, graph.IRI(filesvocab.ClassProcessingMetadata)),
		graph.NewTriple(metaURI, filesvocab.PropMetaVersion, graph.Lit(c.Version)),
		graph.NewTriple(metaURI, filesvocab.PropMetaFunctionsFound, graph.IntLit(len(res.Functions))),
		graph.NewTriple(metaURI, filesvocab.PropMetaClassesFound, graph.IntLit(len(res.Classes))),
		graph.NewTriple(metaURI, filesvocab.PropMetaModulesFound, graph.IntLit(len(res.Modules))),
		graph.NewTriple(metaURI, filesvocab.PropMetaFilesSkipped, graph.IntLit(len(res.Skipped))),
		graph.NewTriple(metaURI, filesvocab.PropMetaPublicFunctions, graph.IntLit(public)),
		graph.NewTriple(metaURI, filesvocab.PropMetaSchemaRevision, graph.Lit(SchemaRevision)),
	}
}

// SchemaRevision versions the triple layout for migrations.
const SchemaRevision = "1"

// StatisticsTriples builds the evolution statistics node for one parse.
func StatisticsTriples(c Context, res *parser.Result) []graph.Triple {
	statsURI := graph.Graphs(c.Org, c.Repo, c.Version).EvolutionStatistics + "#stats"
	public, private := 0, 0
	for i := range res.Functions {
		if res.Functions[i].Visibility() == "public" {
			public++
		} else {
			private++
		}
	}
	return []graph.Triple{
		graph.NewTriple(statsURI, woc.RdfType, graph.IRI(evolution.ClassStatistics)),
		graph.NewTriple(statsURI, evolution.PropPublicFunctionCount, graph.IntLit(public)),
		graph.NewTriple(statsURI, evolution.PropPrivateFunctionCount, graph.IntLit(private)),
		graph.NewTriple(statsURI, evolution.PropTotalFunctionCount, graph.IntLit(len(res.Functions))),
		graph.NewTriple(statsURI, evolution.PropClassCount, graph.IntLit(len(res.Classes))),
		graph.NewTriple(statsURI, evolution.PropModuleCount, graph.IntLit(len(res.Modules))),
	}
}

// PatternsTriples aggregates recurring name prefixes across functions.
// Only prefixes appearing more than once become pattern nodes.
func PatternsTriples(c Context, res *parser.Result) []graph.Triple {
	counts := make(map[string]int)
	for i := range res.Functions {
		name := res.Functions[i].Name
		if idx := strings.Index(strings.TrimPrefix(name, "_"), "_"); idx > 0 {
			prefix := strings.TrimPrefix(name, "_")[:idx]
			counts[prefix]++
		}
	}

	prefixes := make([]string, 0, len(counts))
	for prefix, n := range counts {
		if n > 1 {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)

	base := graph.Graphs(c.Org, c.Repo, c.Version).EvolutionPatterns
	var triples []graph.Triple
	for _, prefix := range prefixes {
		patternURI := base + "#pattern_" + graph.EncodeComponent(prefix)
		triples = append(triples,
			graph.NewTriple(patternURI, woc.RdfType, graph.IRI(evolution.ClassPattern)),
			graph.NewTriple(patternURI, evolution.PropPatternName, graph.Lit(prefix)),
			graph.NewTriple(patternURI, evolution.PropFrequency, graph.IntLit(counts[prefix])),
		)
	}
	return triples
}

// AnalysisTriples records the per-version analysis marker.
func AnalysisTriples(c Context) []graph.Triple {
	uri := graph.Graphs(c.Org, c.Repo, c.Version).EvolutionAnalysis + "#analysis_" + graph.EncodeComponent(c.Version)
	return []graph.Triple{
		graph.NewTriple(uri, woc.RdfType, graph.IRI(evolution.ClassAnalysis)),
		graph.NewTriple(uri, evolution.PropVersion, graph.Lit(c.Version)),
	}
}

// callResolver maps syntactic call names onto stable function URIs.
type callResolver struct {
	c Context

	// byQualified holds every function's qualified name.
	byQualified map[string]bool

	// byBare maps a bare name to its unique qualified owner, or "" when
	// ambiguous.
	byBare map[string]string
}

func newCallResolver(c Context, res *parser.Result) *callResolver {
	r := &callResolver{
		c:           c,
		byQualified: make(map[string]bool, len(res.Functions)),
		byBare:      make(map[string]string),
	}
	for i := range res.Functions {
		fn := &res.Functions[i]
		r.byQualified[fn.QualifiedName] = true
		if prev, seen := r.byBare[fn.Name]; seen && prev != fn.QualifiedName {
			r.byBare[fn.Name] = "" // ambiguous
		} else if !seen {
			r.byBare[fn.Name] = fn.QualifiedName
		}
	}
	return r
}

// resolve returns sorted stable URIs for every resolvable callee of fn.
// Unresolvable names are omitted.
func (r *callResolver) resolve(fn *parser.Function) []string {
	seen := make(map[string]bool)
	for _, call := range fn.Calls {
		var qualified string
		switch {
		case r.byQualified[call]:
			qualified = call
		case r.byQualified[fn.Module+"."+call]:
			qualified = fn.Module + "." + call
		case !strings.Contains(call, ".") && r.byBare[call] != "":
			qualified = r.byBare[call]
		default:
			continue
		}
		if qualified == fn.QualifiedName {
			continue
		}
		seen[graph.StableFunctionURI(r.c.Org, r.c.Repo, qualified)] = true
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for uri := range seen {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}
