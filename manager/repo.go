// Package manager implements repository and graph lifecycle: cloning and
// tracking repositories, and building, rebuilding and removing their
// semantic graphs.
package manager

import (
	"context"
	"log/slog"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/config"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/progress"
	"github.com/c360studio/repolex/repostore"
	"github.com/c360studio/repolex/store"
)

// RepoManager handles repository lifecycle. Adding a repository clones it
// and discovers versions; it never triggers graph construction.
type RepoManager struct {
	cfg    *config.Config
	repos  *repostore.Store
	store  *store.Store
	logger *slog.Logger
}

// NewRepoManager wires a RepoManager.
func NewRepoManager(cfg *config.Config, repos *repostore.Store, st *store.Store, logger *slog.Logger) *RepoManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoManager{cfg: cfg, repos: repos, store: st, logger: logger}
}

// Add clones org/repo and discovers its versions.
func (m *RepoManager) Add(ctx context.Context, org, repo string, cb progress.Callback) (*repostore.Record, error) {
	if err := graph.ValidateOrgRepo(org); err != nil {
		return nil, err
	}
	if err := graph.ValidateOrgRepo(repo); err != nil {
		return nil, err
	}
	record, err := m.repos.Clone(ctx, org, repo, cb)
	if err != nil {
		return nil, err
	}
	m.logger.Info("repository added",
		slog.String("repo", record.OrgRepo()), slog.Int("releases", len(record.Releases)))
	return record, nil
}

// Update fetches and reports newly available versions.
func (m *RepoManager) Update(ctx context.Context, org, repo string) (*repostore.Record, []string, error) {
	record, fresh, err := m.repos.Fetch(ctx, org, repo)
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("repository updated",
		slog.String("repo", record.OrgRepo()), slog.Int("new_releases", len(fresh)))
	return record, fresh, nil
}

// Remove deletes the on-disk checkouts and every graph whose URI prefix
// matches the repository. Destructive: requires force when confirmation
// is configured.
func (m *RepoManager) Remove(ctx context.Context, org, repo string, force bool) error {
	if err := m.requireForce(force); err != nil {
		return err
	}
	if !m.repos.Exists(org, repo) {
		return apperror.Validationf("repository %s/%s is not tracked", org, repo)
	}

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
	if err := m.repos.Remove(org, repo); err != nil {
		return err
	}
	m.logger.Info("repository removed",
		slog.String("repo", org+"/"+repo), slog.Int("graphs_dropped", len(graphs)))
	return nil
}

// List returns every tracked repository.
func (m *RepoManager) List() ([]*repostore.Record, error) {
	return m.repos.List()
}

// Show returns one repository's record.
func (m *RepoManager) Show(org, repo string) (*repostore.Record, error) {
	return m.repos.LoadRecord(org, repo)
}

func (m *RepoManager) requireForce(force bool) error {
	if force || !m.cfg.RequireConfirmationForDestructive {
		return nil
	}
	return apperror.Validationf("destructive operation requires confirmation").
		WithSuggestions("re-run with --force", "or answer the interactive prompt")
}
