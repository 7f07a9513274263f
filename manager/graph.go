package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/builder"
	"github.com/c360studio/repolex/config"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/ontology"
	"github.com/c360studio/repolex/parser"
	"github.com/c360studio/repolex/progress"
	"github.com/c360studio/repolex/repostore"
	"github.com/c360studio/repolex/store"
	"github.com/c360studio/repolex/vocabulary/evolution"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// GraphInfo describes one named graph.
type GraphInfo struct {
	URI     string
	Triples int
}

// GraphDetails aggregates a repository's graphs.
type GraphDetails struct {
	Org          string
	Repo         string
	Version      string // empty when aggregated across versions
	TotalGraphs  int
	TotalTriples int
	Graphs       []GraphInfo
}

// GraphManager drives graph construction, the nuclear rebuild and
// removal, preserving the hybrid identity model throughout.
type GraphManager struct {
	cfg    *config.Config
	repos  *repostore.Store
	store  *store.Store
	logger *slog.Logger
}

// NewGraphManager wires a GraphManager.
func NewGraphManager(cfg *config.Config, repos *repostore.Store, st *store.Store, logger *slog.Logger) *GraphManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphManager{cfg: cfg, repos: repos, store: st, logger: logger}
}

// Add builds all graphs for one version. An omitted version selects the
// latest discovered release. Existing graphs fail the call unless force.
func (m *GraphManager) Add(ctx context.Context, org, repo, version string, force bool, cb progress.Callback) (*builder.Report, error) {
	version, err := m.resolveVersion(ctx, org, repo, version)
	if err != nil {
		return nil, err
	}
	gs := graph.Graphs(org, repo, version)

	if !force {
		exists, err := m.store.GraphExists(gs.FilesStructure)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperror.Validationf("graphs already exist for %s/%s %s", org, repo, version).
				WithSuggestions(
					fmt.Sprintf("use: repolex graph update %s/%s %s", org, repo, version),
					"or pass --force to rebuild in place")
		}
	}
	return m.build(ctx, org, repo, version, cb)
}

// Update is the nuclear rebuild: drop the version-scoped graphs, rebuild
// them from the current checkout and re-run change-event generation for
// edges incident on the version. Stable triples are updated by union only,
// so every cross-graph reference to a surviving stable URI stays valid.
func (m *GraphManager) Update(ctx context.Context, org, repo, version string, cb progress.Callback) (*builder.Report, error) {
	version, err := m.resolveVersion(ctx, org, repo, version)
	if err != nil {
		return nil, err
	}
	gs := graph.Graphs(org, repo, version)

	exists, err := m.store.GraphExists(gs.FilesStructure)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.Validationf("no graphs to rebuild for %s/%s %s", org, repo, version).
			WithSuggestions(fmt.Sprintf("use: repolex graph add %s/%s %s", org, repo, version))
	}

	progress.Notify(cb, 5, 100, progress.StageCleanup, "dropping version-scoped graphs")
	w, release := m.store.AcquireWriter()
	for _, uri := range gs.VersionScoped() {
		if err := w.DropGraph(ctx, uri); err != nil {
			release()
			return nil, err
		}
	}
	if err := builder.DropVersionPartition(ctx, m.store, w, gs.FunctionsImplementations, version); err != nil {
		release()
		return nil, err
	}
	release()

	return m.build(ctx, org, repo, version, cb)
}

// Remove drops graphs. With a version, only that version's unit goes:
// version-scoped graphs, the implementations partition, the version's
// membership in every stable entity's version set, and change events
// incident on the version. Stable entities left with an empty version set
// are removed. Without a version, every graph of the repository goes.
func (m *GraphManager) Remove(ctx context.Context, org, repo, version string, force bool) error {
	if !force && m.cfg.RequireConfirmationForDestructive {
		return apperror.Validationf("destructive operation requires confirmation").
			WithSuggestions("re-run with --force")
	}

	if version == "" {
		prefix := graph.RepositoryBaseURI(org, repo) + "/"
		graphs, err := m.store.ListGraphs(prefix)
		if err != nil {
			return err
		}
		for _, uri := range graphs {
			if err := m.store.DropGraph(ctx, uri); err != nil {
				return err
			}
		}
		m.logger.Info("all graphs removed", slog.String("repo", org+"/"+repo))
		return nil
	}

	if err := graph.ValidateVersion(version); err != nil {
		return err
	}
	gs := graph.Graphs(org, repo, version)

	w, release := m.store.AcquireWriter()
	defer release()

	for _, uri := range gs.VersionScoped() {
		if err := w.DropGraph(ctx, uri); err != nil {
			return err
		}
	}
	if err := builder.DropVersionPartition(ctx, m.store, w, gs.FunctionsImplementations, version); err != nil {
		return err
	}
	if err := m.removeVersionFromStable(ctx, w, gs.FunctionsStable, version); err != nil {
		return err
	}
	if err := m.removeEventsIncidentOn(ctx, w, gs.AbcEvents, version); err != nil {
		return err
	}
	m.logger.Info("version graphs removed",
		slog.String("repo", org+"/"+repo), slog.String("version", version))
	return nil
}

// removeVersionFromStable rewrites each stable entity's version set to
// exclude version, removing entities whose set becomes empty.
func (m *GraphManager) removeVersionFromStable(ctx context.Context, w *store.Writer, stableGraph, version string) error {
	exists := woc.PropExistsInVersion
	versionLit := graph.Lit(version)

	var members []string
	err := m.store.Scan(stableGraph, nil, &exists, &versionLit, func(t graph.Triple) error {
		members = append(members, t.Subject)
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := w.DeleteWhere(ctx, stableGraph, nil, &exists, &versionLit); err != nil {
		return err
	}

	for _, subject := range members {
		subj := subject
		remaining := 0
		err := m.store.Scan(stableGraph, &subj, &exists, nil, func(graph.Triple) error {
			remaining++
			return nil
		})
		if err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := w.DeleteWhere(ctx, stableGraph, &subj, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeEventsIncidentOn drops change events whose transition touches the
// version, keeping invariant 5: an event's versions always appear in its
// entity's version set.
func (m *GraphManager) removeEventsIncidentOn(ctx context.Context, w *store.Writer, eventsGraph, version string) error {
	versionLit := graph.Lit(version)
	subjects := make(map[string]bool)

	for _, pred := range []string{evolution.PropFromVersion, evolution.PropToVersion} {
		p := pred
		err := m.store.Scan(eventsGraph, nil, &p, &versionLit, func(t graph.Triple) error {
			subjects[t.Subject] = true
			return nil
		})
		if err != nil {
			return err
		}
	}
	for subject := range subjects {
		subj := subject
		if _, err := w.DeleteWhere(ctx, eventsGraph, &subj, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// List enumerates graphs, optionally scoped to one repository.
func (m *GraphManager) List(org, repo string) ([]GraphInfo, error) {
	prefix := ""
	if org != "" && repo != "" {
		prefix = graph.RepositoryBaseURI(org, repo) + "/"
	}
	uris, err := m.store.ListGraphs(prefix)
	if err != nil {
		return nil, err
	}
	infos := make([]GraphInfo, 0, len(uris))
	for _, uri := range uris {
		n, err := m.store.CountTriples(uri)
		if err != nil {
			return nil, err
		}
		infos = append(infos, GraphInfo{URI: uri, Triples: n})
	}
	return infos, nil
}

// Show aggregates the repository's graphs, optionally one version's unit.
func (m *GraphManager) Show(org, repo, version string) (*GraphDetails, error) {
	infos, err := m.List(org, repo)
	if err != nil {
		return nil, err
	}
	if version != "" {
		gs := graph.Graphs(org, repo, version)
		scoped := map[string]bool{}
		for _, uri := range gs.VersionScoped() {
			scoped[uri] = true
		}
		filtered := infos[:0]
		for _, info := range infos {
			if scoped[info.URI] {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	if len(infos) == 0 {
		suffix := ""
		if version != "" {
			suffix = " " + version
		}
		return nil, apperror.Validationf("no graphs found for %s/%s%s", org, repo, suffix).
			WithSuggestions(fmt.Sprintf("use: repolex graph add %s/%s%s", org, repo, suffix))
	}

	details := &GraphDetails{Org: org, Repo: repo, Version: version, TotalGraphs: len(infos), Graphs: infos}
	for _, info := range infos {
		details.TotalTriples += info.Triples
	}
	return details, nil
}

// build runs the shared ingestion path for Add and Update.
func (m *GraphManager) build(ctx context.Context, org, repo, version string, cb progress.Callback) (*builder.Report, error) {
	release, err := m.repos.Lock(org, repo)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx,
		time.Duration(m.cfg.ProcessingTimeoutSeconds)*time.Second)
	defer cancel()

	progress.Notify(cb, 2, 100, progress.StageCheckingOut, "materializing checkout")
	checkout, err := m.repos.Checkout(ctx, org, repo, version)
	if err != nil {
		return nil, err
	}
	gitPath, err := m.repos.RepoPath(org, repo)
	if err != nil {
		return nil, err
	}

	in := builder.Input{
		Org: org, Repo: repo, Version: version,
		CheckoutPath: checkout, GitPath: gitPath,
	}

	if prev, err := m.nearestLowerVersion(org, repo, version); err == nil && prev != "" {
		prevCheckout, err := m.repos.Checkout(ctx, org, repo, prev)
		if err == nil {
			in.PrevVersion = prev
			in.PrevCheckoutPath = prevCheckout
		}
	}

	if err := ontology.EnsureOntologies(ctx, m.store); err != nil {
		return nil, err
	}

	walkOpts := parser.WalkOptions{
		MaxFileSize: m.cfg.MaxFileSizeBytes(),
		Concurrency: m.cfg.MaxConcurrentParsers,
		Logger:      m.logger,
	}
	return builder.New(m.store, walkOpts, m.logger).Build(ctx, in, cb)
}

// resolveVersion validates an explicit version or picks the latest
// discovered release.
func (m *GraphManager) resolveVersion(ctx context.Context, org, repo, version string) (string, error) {
	if err := graph.ValidateOrgRepo(org); err != nil {
		return "", err
	}
	if err := graph.ValidateOrgRepo(repo); err != nil {
		return "", err
	}
	if version != "" {
		if err := graph.ValidateVersion(version); err != nil {
			return "", err
		}
		return version, nil
	}

	record, err := m.repos.LoadRecord(org, repo)
	if err != nil {
		return "", err
	}
	if len(record.Releases) == 0 {
		versions, err := m.repos.ListVersions(ctx, org, repo)
		if err != nil {
			return "", err
		}
		if len(versions) == 0 {
			return "", apperror.Validationf("repository %s/%s has no version tags", org, repo).
				WithSuggestions("pass an explicit ref to build", "run repo update to fetch tags")
		}
		return versions[0], nil
	}
	return record.Releases[0], nil
}

// nearestLowerVersion finds the next release below version in the
// discovery ordering (descending).
func (m *GraphManager) nearestLowerVersion(org, repo, version string) (string, error) {
	record, err := m.repos.LoadRecord(org, repo)
	if err != nil {
		return "", err
	}
	for i, rel := range record.Releases {
		if rel == version && i+1 < len(record.Releases) {
			return record.Releases[i+1], nil
		}
	}
	return "", nil
}
