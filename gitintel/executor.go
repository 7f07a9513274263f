// Package gitintel extracts commits, authors, branches, tags and
// file/line provenance from a repository's history, and emits them as
// triples into the four git graphs.
package gitintel

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/c360studio/repolex/apperror"
)

// allowedProtocols defines the git URL protocols permitted for cloning.
var allowedProtocols = map[string]bool{
	"https": true,
	"git":   true,
	"ssh":   true,
}

// ValidateGitURL checks that a git URL uses an allowed protocol.
func ValidateGitURL(rawURL string) error {
	// SSH shorthand (git@host:owner/repo.git) is allowed.
	if strings.HasPrefix(rawURL, "git@") {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperror.Validationf("invalid git URL %q", rawURL)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if !allowedProtocols[scheme] {
		return apperror.Securityf("protocol %q not allowed; must be https, git or ssh", scheme)
	}
	return nil
}

// ValidatePathWithin ensures path stays inside baseDir after cleaning.
func ValidatePathWithin(baseDir, path string) error {
	if path == "" {
		return apperror.Validationf("path is required")
	}
	if strings.Contains(path, "..") {
		return apperror.Securityf("path traversal not allowed in %q", path)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return apperror.Validationf("invalid path %q", path)
	}
	absBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return apperror.Validationf("invalid base path %q", baseDir)
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return apperror.Securityf("path %q escapes %q", path, baseDir)
	}
	return nil
}

// Executor runs git commands rooted at one repository.
type Executor struct {
	repoPath string
}

// NewExecutor creates an executor for the repository at repoPath.
func NewExecutor(repoPath string) *Executor {
	return &Executor{repoPath: repoPath}
}

// Run executes git with the given arguments and returns trimmed stdout.
func (e *Executor) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", apperror.Gitf(err, "git %s failed: %s",
			strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// RunAt executes git in an explicit working directory.
func RunAt(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", apperror.Gitf(err, "git %s failed: %s",
			strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether the executor's directory is a git work tree.
func (e *Executor) IsRepo(ctx context.Context) bool {
	out, err := e.Run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CloneURL builds the canonical clone URL for an org/repo pair. A token,
// when present, authenticates private fetches.
func CloneURL(org, repo, token string) string {
	if token != "" {
		return fmt.Sprintf("https://%s@github.com/%s/%s.git", token, org, repo)
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", org, repo)
}
