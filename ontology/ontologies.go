package ontology

import (
	"context"

	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/vocabulary/evolution"
	"github.com/c360studio/repolex/vocabulary/filesvocab"
	"github.com/c360studio/repolex/vocabulary/gitvocab"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// GraphWriter is the slice of the store adapter ontology loading needs.
type GraphWriter interface {
	AppendToGraph(ctx context.Context, graphURI string, triples []graph.Triple) error
}

// EnsureOntologies writes the four shared vocabulary graphs. Appends are
// idempotent, so calling this on every startup is safe.
func EnsureOntologies(ctx context.Context, w GraphWriter) error {
	wocURI, gitURI, evoURI, filesURI := graph.OntologyGraphURIs()

	if err := w.AppendToGraph(ctx, wocURI, wocOntology()); err != nil {
		return err
	}
	if err := w.AppendToGraph(ctx, gitURI, gitOntology()); err != nil {
		return err
	}
	if err := w.AppendToGraph(ctx, evoURI, evolutionOntology()); err != nil {
		return err
	}
	return w.AppendToGraph(ctx, filesURI, filesOntology())
}

func classes(iris ...string) []graph.Triple {
	out := make([]graph.Triple, 0, len(iris))
	for _, iri := range iris {
		out = append(out, graph.NewTriple(iri, woc.RdfType, graph.IRI(woc.OwlClass)))
	}
	return out
}

func objectProps(iris ...string) []graph.Triple {
	out := make([]graph.Triple, 0, len(iris))
	for _, iri := range iris {
		out = append(out, graph.NewTriple(iri, woc.RdfType, graph.IRI(woc.OwlObjectProperty)))
	}
	return out
}

func dataProps(iris ...string) []graph.Triple {
	out := make([]graph.Triple, 0, len(iris))
	for _, iri := range iris {
		out = append(out, graph.NewTriple(iri, woc.RdfType, graph.IRI(woc.OwlDatatypeProperty)))
	}
	return out
}

func wocOntology() []graph.Triple {
	t := classes(
		woc.ClassFunction,
		woc.ClassClass,
		woc.ClassMethodImplementation,
		woc.ClassClassImplementation,
		woc.ClassModule,
		woc.ClassParameter,
	)
	t = append(t, objectProps(
		woc.PropImplementsFunction,
		woc.PropImplementsClass,
		woc.PropHasParameter,
		woc.PropHasMethod,
		woc.PropCalls,
	)...)
	t = append(t, dataProps(
		woc.PropCanonicalName,
		woc.PropModule,
		woc.PropExistsInVersion,
		woc.PropFirstSeenVersion,
		woc.PropBelongsToVersion,
		woc.PropHasSignature,
		woc.PropDefinedInFile,
		woc.PropStartLine,
		woc.PropEndLine,
		woc.PropBodyLines,
		woc.PropBodyHash,
		woc.PropHasReturnType,
		woc.PropHasVisibility,
		woc.PropRefactorScore,
	)...)
	return t
}

func gitOntology() []graph.Triple {
	t := classes(
		gitvocab.ClassCommit,
		gitvocab.ClassDeveloper,
		gitvocab.ClassBranch,
		gitvocab.ClassTag,
	)
	t = append(t, objectProps(
		gitvocab.PropAuthor,
		gitvocab.PropModifies,
		gitvocab.PropTargets,
	)...)
	t = append(t, dataProps(
		gitvocab.PropSha,
		gitvocab.PropMessage,
		gitvocab.PropDate,
		gitvocab.PropAuthorName,
		gitvocab.PropAuthorEmail,
		gitvocab.PropCommitCount,
	)...)
	return t
}

func evolutionOntology() []graph.Triple {
	t := classes(
		evolution.ClassChangeEvent,
		evolution.ClassStatistics,
		evolution.ClassPattern,
		evolution.ClassAnalysis,
	)
	t = append(t, objectProps(evolution.PropAffects)...)
	t = append(t, dataProps(
		evolution.PropEventKind,
		evolution.PropFromVersion,
		evolution.PropToVersion,
		evolution.PropIntroducedBy,
		evolution.PropPatternName,
		evolution.PropFrequency,
	)...)
	return t
}

func filesOntology() []graph.Triple {
	t := classes(
		filesvocab.ClassSourceFile,
		filesvocab.ClassProcessingMetadata,
	)
	t = append(t, objectProps(
		filesvocab.PropContainsFunction,
		filesvocab.PropContainsClass,
	)...)
	t = append(t, dataProps(
		filesvocab.PropPath,
		filesvocab.PropLineCount,
		filesvocab.PropMetaVersion,
	)...)
	return t
}
