// Package builder orchestrates one (repository, version) ingestion:
// parse the checkout, map entities to triples, widen stable identities,
// replace version-scoped graphs, append git intelligence and generate
// change events — all under the store's writer token so readers never
// observe a half-applied ingestion.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/repolex/events"
	"github.com/c360studio/repolex/gitintel"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/metrics"
	"github.com/c360studio/repolex/ontology"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/progress"
	"github.com/c360studio/repolex/store"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// Builder runs ingestions against one store.
type Builder struct {
	store    *store.Store
	logger   *slog.Logger
	walkOpts parser.WalkOptions
}

// New creates a Builder.
func New(st *store.Store, walkOpts parser.WalkOptions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: st, logger: logger, walkOpts: walkOpts}
}

// Input describes one ingestion.
type Input struct {
	Org     string
	Repo    string
	Version string

	// CheckoutPath is the version's working tree.
	CheckoutPath string

	// GitPath is the repository clone holding the full history.
	GitPath string

	// PrevVersion and PrevCheckoutPath identify the nearest lower known
	// version; empty when this is the first ingested version.
	PrevVersion      string
	PrevCheckoutPath string
}

// Build executes the ingestion pipeline and returns a report. On failure
// every partially written version-scoped graph is dropped, returning the
// unit to its pre-build committed state.
func (b *Builder) Build(ctx context.Context, in Input, cb progress.Callback) (*Report, error) {
	report := newReport(in.Org, in.Repo, in.Version)
	gs := graph.Graphs(in.Org, in.Repo, in.Version)

	// Parsing and git analysis run before the writer token is taken; only
	// the final graph writes need it.
	progress.Notify(cb, 10, 100, progress.StageParsing, "parsing source tree")
	parsed, err := parser.ParseTree(ctx, in.CheckoutPath, b.walkOpts)
	if err != nil {
		return nil, err
	}
	report.FunctionsFound = len(parsed.Functions)
	report.ClassesFound = len(parsed.Classes)
	report.ModulesFound = len(parsed.Modules)
	report.FilesSkipped = len(parsed.Skipped)
	for _, sk := range parsed.Skipped {
		report.Warnings = append(report.Warnings, fmt.Sprintf("skipped %s: %s", sk.Path, sk.Reason))
	}

	var prevParsed *parser.Result
	if in.PrevVersion != "" && in.PrevCheckoutPath != "" {
		progress.Notify(cb, 25, 100, progress.StageParsing,
			fmt.Sprintf("parsing previous version %s", in.PrevVersion))
		prevParsed, err = parser.ParseTree(ctx, in.PrevCheckoutPath, b.walkOpts)
		if err != nil {
			return nil, err
		}
	}

	progress.Notify(cb, 40, 100, progress.StageAnalyzingGit, "reading git history")
	intel, err := gitintel.Extract(ctx, in.GitPath)
	if err != nil {
		return nil, err
	}
	report.CommitsAnalyzed = len(intel.Commits)
	report.DevelopersProfiled = len(intel.Developers)

	mapped := ontology.MapResult(ontology.Context{Org: in.Org, Repo: in.Repo, Version: in.Version}, parsed)

	var changeEvents []events.Event
	if prevParsed != nil {
		progress.Notify(cb, 55, 100, progress.StageDiffing,
			fmt.Sprintf("diffing %s against %s", in.Version, in.PrevVersion))
		resolve := func(file string) string {
			return gitintel.LatestCommitForFile(ctx, in.GitPath,
				in.PrevVersion+".."+in.Version, file)
		}
		changeEvents = events.Diff(in.Org, in.Repo, prevParsed, parsed,
			in.PrevVersion, in.Version, resolve)
	}
	report.EventsGenerated = len(changeEvents)

	ranges := b.changedRanges(ctx, in, intel)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Everything below mutates the store. The writer token is held across
	// stable widening, version-scoped replacement and git appends so the
	// ordering guarantee holds: a reader that sees the new version-scoped
	// data also sees the widened stable set.
	progress.Notify(cb, 70, 100, progress.StageBuilding, "writing graphs")
	w, release := b.store.AcquireWriter()
	defer release()

	written, err := b.writeGraphs(ctx, w, in, gs, parsed, mapped, intel, changeEvents, ranges)
	report.TriplesWritten = written
	if err != nil {
		b.cleanup(w, in, gs)
		metrics.BuildsCompleted.WithLabelValues("error").Inc()
		return nil, err
	}

	report.GraphsWritten = len(gs.All())
	report.Duration = time.Since(report.StartedAt)
	metrics.BuildsCompleted.WithLabelValues("ok").Inc()
	progress.Notify(cb, 100, 100, progress.StageComplete,
		fmt.Sprintf("built %d graphs for %s/%s %s", report.GraphsWritten, in.Org, in.Repo, in.Version))
	return report, nil
}

// changedRanges computes per-commit changed line ranges for the commits
// introduced by this version, refining commit-to-entity edges. History
// outside the range degrades to file-level linking.
func (b *Builder) changedRanges(ctx context.Context, in Input, intel *gitintel.Intelligence) map[string]map[string][]gitintel.LineRange {
	revRange := in.Version
	if in.PrevVersion != "" {
		revRange = in.PrevVersion + ".." + in.Version
	}
	ex := gitintel.NewExecutor(in.GitPath)
	out, err := ex.Run(ctx, "rev-list", revRange)
	if err != nil || out == "" {
		return nil
	}

	ranges := make(map[string]map[string][]gitintel.LineRange)
	shas := splitLines(out)
	const rangeCap = 200 // patch parsing is bounded; older commits link by file
	if len(shas) > rangeCap {
		shas = shas[:rangeCap]
	}
	for _, sha := range shas {
		if ctx.Err() != nil {
			return ranges
		}
		r, err := gitintel.ChangedRanges(ctx, in.GitPath, sha)
		if err != nil || len(r) == 0 {
			continue
		}
		ranges[sha] = r
	}
	return ranges
}

func (b *Builder) writeGraphs(ctx context.Context, w *store.Writer, in Input, gs graph.GraphSet,
	parsed *parser.Result, mapped *ontology.Mapped, intel *gitintel.Intelligence,
	changeEvents []events.Event, ranges map[string]map[string][]gitintel.LineRange) (int, error) {

	written := 0

	// Step 1: stable-graph delta. New identities are introduced with a
	// first-seen marker; existing ones only widen their version set.
	stableDelta, err := b.stableDelta(ctx, gs.FunctionsStable, mapped, in.Version)
	if err != nil {
		return written, err
	}
	if err := w.AppendToGraph(ctx, gs.FunctionsStable, stableDelta); err != nil {
		return written, err
	}
	written += len(stableDelta)

	// Step 2: version-scoped replacement. The implementations graph is
	// partitioned by belongsToVersion; only this version's partition is
	// replaced. Files and metadata graphs are whole-graph upserts.
	if err := b.replaceVersionPartition(ctx, w, gs.FunctionsImplementations, in.Version, mapped.Implementations); err != nil {
		return written, err
	}
	written += len(mapped.Implementations)

	if err := w.UpsertGraph(ctx, gs.FilesStructure, mapped.Files); err != nil {
		return written, err
	}
	written += len(mapped.Files)

	if err := w.UpsertGraph(ctx, gs.ProcessingMetadata, mapped.Meta); err != nil {
		return written, err
	}
	written += len(mapped.Meta)

	// Step 3: git graphs, append-only; commit URIs dedupe by sha.
	spans := entitySpans(in, parsed)
	commitTriples := gitintel.CommitTriples(in.Org, in.Repo, intel.Commits, spans, ranges)
	if err := w.AppendToGraph(ctx, gs.GitCommits, commitTriples); err != nil {
		return written, err
	}
	written += len(commitTriples)

	devTriples := gitintel.DeveloperTriples(in.Org, in.Repo, intel.Developers)
	if err := w.AppendToGraph(ctx, gs.GitDevelopers, devTriples); err != nil {
		return written, err
	}
	written += len(devTriples)

	branchTriples := gitintel.BranchTriples(in.Org, in.Repo, intel.Branches)
	if err := w.AppendToGraph(ctx, gs.GitBranches, branchTriples); err != nil {
		return written, err
	}
	written += len(branchTriples)

	tagTriples := gitintel.TagTriples(in.Org, in.Repo, intel.Tags)
	if err := w.AppendToGraph(ctx, gs.GitTags, tagTriples); err != nil {
		return written, err
	}
	written += len(tagTriples)

	// Step 4: change events, append-only with deterministic URIs.
	eventTriples := events.Triples(in.Org, in.Repo, changeEvents)
	if err := w.AppendToGraph(ctx, gs.AbcEvents, eventTriples); err != nil {
		return written, err
	}
	written += len(eventTriples)

	// Step 5: evolution graphs reflect the latest ingested version.
	octx := ontology.Context{Org: in.Org, Repo: in.Repo, Version: in.Version}
	statTriples := ontology.StatisticsTriples(octx, parsed)
	if err := w.UpsertGraph(ctx, gs.EvolutionStatistics, statTriples); err != nil {
		return written, err
	}
	written += len(statTriples)

	patternTriples := ontology.PatternsTriples(octx, parsed)
	if err := w.UpsertGraph(ctx, gs.EvolutionPatterns, patternTriples); err != nil {
		return written, err
	}
	written += len(patternTriples)

	analysisTriples := ontology.AnalysisTriples(octx)
	if err := w.AppendToGraph(ctx, gs.EvolutionAnalysis, analysisTriples); err != nil {
		return written, err
	}
	written += len(analysisTriples)

	return written, nil
}

// stableDelta reads the stable graph and emits only what this version
// adds: full identity triples for new entities, version-set widening for
// all of them.
func (b *Builder) stableDelta(ctx context.Context, stableGraph string, mapped *ontology.Mapped, version string) ([]graph.Triple, error) {
	var delta []graph.Triple

	emit := func(stableURI string, identity []graph.Triple) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		exists := false
		name := woc.PropCanonicalName
		err := b.store.Scan(stableGraph, &stableURI, &name, nil, func(graph.Triple) error {
			exists = true
			return nil
		})
		if err != nil {
			return err
		}
		if !exists {
			delta = append(delta, identity...)
			delta = append(delta, ontology.FirstSeen(stableURI, version))
		}
		delta = append(delta, ontology.ExistsInVersion(stableURI, version))
		return nil
	}

	for _, uri := range sortedKeys(mapped.StableFunctions) {
		if err := emit(uri, mapped.StableFunctions[uri]); err != nil {
			return nil, err
		}
	}
	for _, uri := range sortedKeys(mapped.StableClasses) {
		if err := emit(uri, mapped.StableClasses[uri]); err != nil {
			return nil, err
		}
	}
	return delta, nil
}

// replaceVersionPartition atomically swaps one version's slice of the
// implementations graph: every subject carrying belongsToVersion=version
// is removed, then the fresh triples are appended.
func (b *Builder) replaceVersionPartition(ctx context.Context, w *store.Writer, graphURI, version string, fresh []graph.Triple) error {
	if err := DropVersionPartition(ctx, b.store, w, graphURI, version); err != nil {
		return err
	}
	return w.AppendToGraph(ctx, graphURI, fresh)
}

// DropVersionPartition removes every subject of the graph tagged with
// belongsToVersion=version, including its dependent triples.
func DropVersionPartition(ctx context.Context, st *store.Store, w *store.Writer, graphURI, version string) error {
	belongs := woc.PropBelongsToVersion
	versionLit := graph.Lit(version)

	var subjects []string
	err := st.Scan(graphURI, nil, &belongs, &versionLit, func(t graph.Triple) error {
		subjects = append(subjects, t.Subject)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return err
		}
		subj := subject
		if _, err := w.DeleteWhere(ctx, graphURI, &subj, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// cleanup drops version-scoped graphs after a failed build so the unit
// returns to absent. Stable and git graphs only ever receive appends and
// keep their prior committed content.
func (b *Builder) cleanup(w *store.Writer, in Input, gs graph.GraphSet) {
	ctx := context.Background()
	for _, uri := range gs.VersionScoped() {
		if err := w.DropGraph(ctx, uri); err != nil {
			b.logger.Warn("cleanup failed", slog.String("graph", uri), slog.String("error", err.Error()))
		}
	}
	if err := DropVersionPartition(ctx, b.store, w, gs.FunctionsImplementations, in.Version); err != nil {
		b.logger.Warn("cleanup failed",
			slog.String("graph", gs.FunctionsImplementations), slog.String("error", err.Error()))
	}
}

// entitySpans indexes stable entities by defining file for commit linking.
func entitySpans(in Input, parsed *parser.Result) map[string][]gitintel.EntitySpan {
	spans := make(map[string][]gitintel.EntitySpan)
	for i := range parsed.Functions {
		fn := &parsed.Functions[i]
		spans[fn.File] = append(spans[fn.File], gitintel.EntitySpan{
			StableURI: graph.StableFunctionURI(in.Org, in.Repo, fn.QualifiedName),
			File:      fn.File,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
		})
	}
	for i := range parsed.Classes {
		cls := &parsed.Classes[i]
		spans[cls.File] = append(spans[cls.File], gitintel.EntitySpan{
			StableURI: graph.StableClassURI(in.Org, in.Repo, cls.QualifiedName),
			File:      cls.File,
			StartLine: cls.StartLine,
			EndLine:   cls.EndLine,
		})
	}
	return spans
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out
}
