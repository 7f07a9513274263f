package gitintel

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/vocabulary/gitvocab"
)

// initTestRepo builds a two-commit repository with a tag.
func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Dev One", "GIT_AUTHOR_EMAIL=dev1@example.com",
			"GIT_COMMITTER_NAME=Dev One", "GIT_COMMITTER_EMAIL=dev1@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "core.py"), []byte("def create():\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial commit")
	run("tag", "v1")

	if err := os.WriteFile(filepath.Join(dir, "core.py"), []byte("def create():\n    return 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "change create body")
	return dir
}

func TestExtractHistory(t *testing.T) {
	dir := initTestRepo(t)

	intel, err := Extract(context.Background(), dir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(intel.Commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(intel.Commits))
	}
	// git log is newest-first.
	if intel.Commits[0].Message != "change create body" {
		t.Errorf("newest message = %q", intel.Commits[0].Message)
	}
	if intel.Commits[0].AuthorEmail != "dev1@example.com" {
		t.Errorf("author email = %q", intel.Commits[0].AuthorEmail)
	}
	if len(intel.Commits[0].Files) != 1 || intel.Commits[0].Files[0] != "core.py" {
		t.Errorf("files = %v", intel.Commits[0].Files)
	}
	if intel.Commits[0].Timestamp.IsZero() {
		t.Error("timestamp not parsed")
	}

	if len(intel.Developers) != 1 {
		t.Fatalf("developers = %d, want 1", len(intel.Developers))
	}
	dev := intel.Developers[0]
	if dev.Commits != 2 {
		t.Errorf("developer commits = %d, want 2", dev.Commits)
	}
	if dev.FirstSeen.After(dev.LastSeen) {
		t.Error("first/last seen inverted")
	}

	if len(intel.Tags) != 1 || intel.Tags[0].Name != "v1" {
		t.Errorf("tags = %v", intel.Tags)
	}
	if len(intel.Branches) == 0 {
		t.Error("no branches extracted")
	}
}

func TestChangedRanges(t *testing.T) {
	dir := initTestRepo(t)
	intel, err := Extract(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	ranges, err := ChangedRanges(context.Background(), dir, intel.Commits[0].SHA)
	if err != nil {
		t.Fatalf("ChangedRanges: %v", err)
	}
	rs, ok := ranges["core.py"]
	if !ok || len(rs) == 0 {
		t.Fatalf("ranges = %v, want core.py hunks", ranges)
	}
	if !rs[0].Overlaps(1, 10) {
		t.Errorf("range %+v should overlap the function span", rs[0])
	}
}

func TestLatestCommitForFile(t *testing.T) {
	dir := initTestRepo(t)
	sha := LatestCommitForFile(context.Background(), dir, "", "core.py")
	if sha == "" {
		t.Fatal("no commit found for core.py")
	}
}

func TestCommitTriplesLinkStableEntitiesOnly(t *testing.T) {
	commits := []Commit{{
		SHA:         "abc123",
		AuthorName:  "Dev One",
		AuthorEmail: "dev1@example.com",
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Message:     "touch core",
		Files:       []string{"core.py"},
	}}
	spans := map[string][]EntitySpan{
		"core.py": {{StableURI: "function:acme/lib/acme.lib.core.create", File: "core.py", StartLine: 1, EndLine: 5}},
	}

	triples := CommitTriples("acme", "lib", commits, spans, nil)

	foundModifies := false
	for _, tr := range triples {
		if tr.Predicate == gitvocab.PropModifies {
			foundModifies = true
			if tr.Object.Value != "function:acme/lib/acme.lib.core.create" {
				t.Errorf("modifies edge = %q, must be a stable URI", tr.Object.Value)
			}
		}
	}
	if !foundModifies {
		t.Error("no modifies edge emitted")
	}
}

func TestCommitTriplesRespectLineRanges(t *testing.T) {
	commits := []Commit{{SHA: "abc", Files: []string{"core.py"}}}
	spans := map[string][]EntitySpan{
		"core.py": {
			{StableURI: "function:acme/lib/a", StartLine: 1, EndLine: 5},
			{StableURI: "function:acme/lib/b", StartLine: 50, EndLine: 60},
		},
	}
	ranges := map[string]map[string][]LineRange{
		"abc": {"core.py": {{Start: 2, End: 3}}},
	}

	triples := CommitTriples("acme", "lib", commits, spans, ranges)

	for _, tr := range triples {
		if tr.Predicate == gitvocab.PropModifies && tr.Object.Value == "function:acme/lib/b" {
			t.Error("entity outside changed ranges must not be linked")
		}
	}
}

func TestAuthorEmailVerbatim(t *testing.T) {
	// Emails that look numeric stay strings.
	devs := []Developer{{Email: "12345@example.com", Name: "N", Commits: 1}}
	triples := DeveloperTriples("acme", "lib", devs)

	for _, tr := range triples {
		if tr.Predicate == gitvocab.PropEmail {
			if tr.Object.Kind != graph.TermLiteral || tr.Object.Datatype != "" {
				t.Errorf("email must be a plain string literal, got %+v", tr.Object)
			}
			if tr.Object.Value != "12345@example.com" {
				t.Errorf("email = %q, want verbatim", tr.Object.Value)
			}
		}
	}
}

func TestValidateGitURL(t *testing.T) {
	if err := ValidateGitURL("https://github.com/acme/lib.git"); err != nil {
		t.Errorf("https rejected: %v", err)
	}
	if err := ValidateGitURL("git@github.com:acme/lib.git"); err != nil {
		t.Errorf("ssh shorthand rejected: %v", err)
	}
	err := ValidateGitURL("file:///etc/passwd")
	if apperror.KindOf(err) != apperror.KindSecurity {
		t.Errorf("file:// should be a security error, got %v", err)
	}
}

func TestValidatePathWithin(t *testing.T) {
	base := t.TempDir()
	if err := ValidatePathWithin(base, filepath.Join(base, "repos", "x")); err != nil {
		t.Errorf("inside path rejected: %v", err)
	}
	err := ValidatePathWithin(base, filepath.Join(base, "..", "escape"))
	if apperror.KindOf(err) != apperror.KindSecurity {
		t.Errorf("escape should be security error, got %v", err)
	}
}
