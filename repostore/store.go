// Package repostore manages the on-disk layout of source checkouts:
//
//	{root}/repos/{org}/{repo}/.git          full clone
//	{root}/repos/{org}/{repo}/{version}/    detached worktree of that tag
//
// Every resolved path is validated to stay inside the configured root.
// A per-repository advisory lock file serializes ingestions of the same
// checkout.
package repostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/gitintel"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/progress"
)

// Status of a repository record.
type Status string

const (
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Record is the persisted repository metadata, kept in metadata.json next
// to the checkout.
type Record struct {
	Org      string   `json:"org"`
	Repo     string   `json:"repo"`
	URL      string   `json:"url"`
	Releases []string `json:"releases"` // descending discovery order
	Status   Status   `json:"status"`

	ClonedAt  time.Time `json:"cloned_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrgRepo renders the org/repo identifier.
func (r *Record) OrgRepo() string { return r.Org + "/" + r.Repo }

const metadataFile = "metadata.json"

// Store owns the checkout tree under one root.
type Store struct {
	root      string // the repos directory
	authToken string
	logger    *slog.Logger
}

// New creates a Store rooted at reposRoot.
func New(reposRoot, authToken string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: reposRoot, authToken: authToken, logger: logger}
}

// RepoPath is the checkout directory for org/repo, validated inside root.
func (s *Store) RepoPath(org, repo string) (string, error) {
	if err := graph.ValidateOrgRepo(org); err != nil {
		return "", err
	}
	if err := graph.ValidateOrgRepo(repo); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, org, repo)
	if err := gitintel.ValidatePathWithin(s.root, path); err != nil {
		return "", err
	}
	return path, nil
}

// VersionPath is the worktree directory of one version.
func (s *Store) VersionPath(org, repo, version string) (string, error) {
	if err := graph.ValidateVersion(version); err != nil {
		return "", err
	}
	repoPath, err := s.RepoPath(org, repo)
	if err != nil {
		return "", err
	}
	path := filepath.Join(repoPath, version)
	if err := gitintel.ValidatePathWithin(s.root, path); err != nil {
		return "", err
	}
	return path, nil
}

// Exists reports whether the repository has been cloned.
func (s *Store) Exists(org, repo string) bool {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// Clone clones org/repo once. Cloning an existing checkout is an error.
func (s *Store) Clone(ctx context.Context, org, repo string, cb progress.Callback) (*Record, error) {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return nil, err
	}
	if s.Exists(org, repo) {
		return nil, apperror.Validationf("repository %s/%s already exists", org, repo).
			WithSuggestions("use repo update to fetch new versions",
				"use repo remove first to re-clone")
	}

	url := gitintel.CloneURL(org, repo, s.authToken)
	if err := gitintel.ValidateGitURL(url); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperror.Gitf(err, "create checkout directory")
	}

	progress.Notify(cb, 10, 100, progress.StageCloning, fmt.Sprintf("cloning %s/%s", org, repo))
	if _, err := gitintel.RunAt(ctx, "", "clone", url, path); err != nil {
		_ = os.RemoveAll(path)
		return nil, err
	}

	releases, err := s.ListVersions(ctx, org, repo)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &Record{
		Org:      org,
		Repo:     repo,
		URL:      gitintel.CloneURL(org, repo, ""),
		Releases: releases,
		Status:   StatusReady,

		ClonedAt:  now,
		UpdatedAt: now,
	}
	if err := s.SaveRecord(record); err != nil {
		return nil, err
	}
	progress.Notify(cb, 100, 100, progress.StageComplete,
		fmt.Sprintf("cloned %s/%s with %d releases", org, repo, len(releases)))
	return record, nil
}

// Fetch updates the clone and returns releases that were not known before.
func (s *Store) Fetch(ctx context.Context, org, repo string) (*Record, []string, error) {
	if !s.Exists(org, repo) {
		return nil, nil, notCloned(org, repo)
	}
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return nil, nil, err
	}

	prior, err := s.LoadRecord(org, repo)
	if err != nil {
		return nil, nil, err
	}

	if _, err := gitintel.RunAt(ctx, path, "fetch", "--tags", "--prune", "origin"); err != nil {
		return nil, nil, err
	}

	releases, err := s.ListVersions(ctx, org, repo)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]bool, len(prior.Releases))
	for _, rel := range prior.Releases {
		known[rel] = true
	}
	var fresh []string
	for _, rel := range releases {
		if !known[rel] {
			fresh = append(fresh, rel)
		}
	}

	prior.Releases = releases
	prior.UpdatedAt = time.Now().UTC()
	if err := s.SaveRecord(prior); err != nil {
		return nil, nil, err
	}
	return prior, fresh, nil
}

// ListVersions discovers version tags, newest first.
func (s *Store) ListVersions(ctx context.Context, org, repo string) ([]string, error) {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return nil, err
	}
	out, err := gitintel.RunAt(ctx, path, "tag", "--sort=-version:refname")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var versions []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			versions = append(versions, line)
		}
	}
	return versions, nil
}

// Checkout materializes a version into its own worktree directory and
// returns the path. Re-checkout of an existing worktree is a no-op.
func (s *Store) Checkout(ctx context.Context, org, repo, version string) (string, error) {
	if !s.Exists(org, repo) {
		return "", notCloned(org, repo)
	}
	repoPath, err := s.RepoPath(org, repo)
	if err != nil {
		return "", err
	}
	versionPath, err := s.VersionPath(org, repo, version)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(versionPath); err == nil && info.IsDir() {
		return versionPath, nil
	}

	if _, err := gitintel.RunAt(ctx, repoPath, "worktree", "add", "--detach", versionPath, version); err != nil {
		return "", apperror.Gitf(err, "checkout %s of %s/%s", version, org, repo).
			WithSuggestions("run repo update to fetch new tags",
				"check the version tag exists")
	}
	return versionPath, nil
}

// PruneVersion removes one version's worktree.
func (s *Store) PruneVersion(ctx context.Context, org, repo, version string) error {
	repoPath, err := s.RepoPath(org, repo)
	if err != nil {
		return err
	}
	versionPath, err := s.VersionPath(org, repo, version)
	if err != nil {
		return err
	}
	if _, err := os.Stat(versionPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := gitintel.RunAt(ctx, repoPath, "worktree", "remove", "--force", versionPath); err != nil {
		// Fall back to a plain removal for worktrees git lost track of.
		if rmErr := os.RemoveAll(versionPath); rmErr != nil {
			return apperror.Gitf(rmErr, "prune version %s", version)
		}
		_, _ = gitintel.RunAt(ctx, repoPath, "worktree", "prune")
	}
	return nil
}

// Remove deletes the whole checkout tree for org/repo.
func (s *Store) Remove(org, repo string) error {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return apperror.Gitf(err, "remove checkout %s/%s", org, repo)
	}
	// Drop the now-empty org directory if this was its last repository.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

// List returns every repository record under the root.
func (s *Store) List() ([]*Record, error) {
	orgs, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Gitf(err, "read repository root")
	}

	var records []*Record
	for _, orgEntry := range orgs {
		if !orgEntry.IsDir() {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(s.root, orgEntry.Name()))
		if err != nil {
			continue
		}
		for _, repoEntry := range repos {
			if !repoEntry.IsDir() {
				continue
			}
			record, err := s.LoadRecord(orgEntry.Name(), repoEntry.Name())
			if err != nil {
				continue
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// SaveRecord persists the metadata document.
func (s *Store) SaveRecord(record *Record) error {
	path, err := s.RepoPath(record.Org, record.Repo)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return apperror.Gitf(err, "encode repository metadata")
	}
	if err := os.WriteFile(filepath.Join(path, metadataFile), append(data, '\n'), 0o644); err != nil {
		return apperror.Gitf(err, "write repository metadata")
	}
	return nil
}

// LoadRecord reads the metadata document, synthesizing a minimal record
// for checkouts predating it.
func (s *Store) LoadRecord(org, repo string) (*Record, error) {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(path, metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		if !s.Exists(org, repo) {
			return nil, notCloned(org, repo)
		}
		return &Record{Org: org, Repo: repo, Status: StatusReady}, nil
	}
	if err != nil {
		return nil, apperror.Gitf(err, "read repository metadata")
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperror.Gitf(err, "parse repository metadata")
	}
	return &record, nil
}

// lockFile is the advisory ingestion lock inside a repository directory.
const lockFile = ".repolex.lock"

// Lock takes the per-repository advisory lock. The release function
// removes the lock file.
func (s *Store) Lock(org, repo string) (func(), error) {
	path, err := s.RepoPath(org, repo)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(path, lockFile)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, apperror.Validationf("repository %s/%s is locked by another operation", org, repo).
				WithSuggestions("wait for the running ingestion to finish",
					"delete "+lockPath+" if no ingestion is running")
		}
		return nil, apperror.Gitf(err, "create lock file")
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return func() { _ = os.Remove(lockPath) }, nil
}

func notCloned(org, repo string) error {
	return apperror.Validationf("repository %s/%s is not cloned", org, repo).
		WithSuggestions(fmt.Sprintf("run: repolex repo add %s/%s", org, repo))
}
