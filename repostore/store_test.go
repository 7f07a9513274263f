package repostore

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/c360studio/repolex/apperror"
)

// seedRepo creates a local clone source with two tagged versions and
// installs it under the store root as acme/lib.
func seedRepo(t *testing.T, s *Store) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	path, err := s.RepoPath("acme", "lib")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = path
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Dev", "GIT_AUTHOR_EMAIL=dev@example.com",
			"GIT_COMMITTER_NAME=Dev", "GIT_COMMITTER_EMAIL=dev@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(path, "core.py"), []byte("def create():\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "v1")
	run("tag", "v1.0.0")

	if err := os.WriteFile(filepath.Join(path, "core.py"), []byte("def make():\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "v2")
	run("tag", "v2.0.0")
}

func newStore(t *testing.T) *Store {
	return New(filepath.Join(t.TempDir(), "repos"), "", nil)
}

func TestListVersionsDescending(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)

	versions, err := s.ListVersions(context.Background(), "acme", "lib")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0] != "v2.0.0" || versions[1] != "v1.0.0" {
		t.Errorf("versions = %v, want [v2.0.0 v1.0.0]", versions)
	}
}

func TestCheckoutCreatesWorktree(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)
	ctx := context.Background()

	path, err := s.Checkout(ctx, "acme", "lib", "v1.0.0")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(path, "core.py"))
	if err != nil {
		t.Fatalf("worktree missing file: %v", err)
	}
	if string(content) != "def create():\n    pass\n" {
		t.Errorf("v1 content = %q, want the pre-rename body", content)
	}

	// Second checkout is a no-op returning the same path.
	again, err := s.Checkout(ctx, "acme", "lib", "v1.0.0")
	if err != nil || again != path {
		t.Errorf("re-checkout = %q, %v", again, err)
	}
}

func TestPruneVersion(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)
	ctx := context.Background()

	path, err := s.Checkout(ctx, "acme", "lib", "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PruneVersion(ctx, "acme", "lib", "v1.0.0"); err != nil {
		t.Fatalf("PruneVersion: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("worktree still present after prune")
	}
}

func TestVersionPathRejectsTraversal(t *testing.T) {
	s := newStore(t)
	_, err := s.VersionPath("acme", "lib", "../../escape")
	if apperror.KindOf(err) != apperror.KindSecurity {
		t.Errorf("kind = %q, want security", apperror.KindOf(err))
	}
}

func TestRepoPathRejectsBadNames(t *testing.T) {
	s := newStore(t)
	if _, err := s.RepoPath("..", "lib"); err == nil {
		t.Error("traversal org accepted")
	}
	if _, err := s.RepoPath("acme", "li b"); err == nil {
		t.Error("whitespace repo accepted")
	}
}

func TestLockIsExclusive(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)

	release, err := s.Lock("acme", "lib")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := s.Lock("acme", "lib"); err == nil {
		t.Error("second lock acquired while first held")
	}
	release()
	release2, err := s.Lock("acme", "lib")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	release2()
}

func TestRecordRoundTrip(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)

	record := &Record{Org: "acme", Repo: "lib", Releases: []string{"v2.0.0", "v1.0.0"}, Status: StatusReady}
	if err := s.SaveRecord(record); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	loaded, err := s.LoadRecord("acme", "lib")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if loaded.OrgRepo() != "acme/lib" || len(loaded.Releases) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestRemoveDeletesTree(t *testing.T) {
	s := newStore(t)
	seedRepo(t, s)

	if err := s.Remove("acme", "lib"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists("acme", "lib") {
		t.Error("repository still exists after remove")
	}
}
