package graph

import (
	"strings"
	"testing"

	"github.com/c360studio/repolex/apperror"
)

func TestGraphsMintsSixteen(t *testing.T) {
	g := Graphs("acme", "lib", "v1.0.0")

	all := g.All()
	if len(all) != 16 {
		t.Fatalf("All() = %d graphs, want 16 distinct URIs", len(all))
	}
	seen := make(map[string]bool)
	for _, uri := range all {
		if seen[uri] {
			t.Errorf("duplicate graph URI %q", uri)
		}
		seen[uri] = true
	}

	if g.FunctionsStable != "http://repolex.org/repo/acme/lib/functions/stable" {
		t.Errorf("FunctionsStable = %q", g.FunctionsStable)
	}
	if g.FilesStructure != "http://repolex.org/repo/acme/lib/files/v1.0.0" {
		t.Errorf("FilesStructure = %q", g.FilesStructure)
	}
	if g.AbcEvents != "http://repolex.org/repo/acme/lib/abc/events" {
		t.Errorf("AbcEvents = %q", g.AbcEvents)
	}
}

func TestVersionScopedGraphs(t *testing.T) {
	g := Graphs("acme", "lib", "v2")
	scoped := g.VersionScoped()
	for _, uri := range scoped {
		if !strings.HasSuffix(uri, "v2") {
			t.Errorf("version-scoped graph %q does not end in version", uri)
		}
	}
}

func TestStableAndImplementationURIs(t *testing.T) {
	stable := StableFunctionURI("acme", "lib", "acme.lib.core.create")
	if stable != "function:acme/lib/acme.lib.core.create" {
		t.Errorf("stable URI = %q", stable)
	}

	impl := ImplementationURI("acme", "lib", "acme.lib.core.create", "v1")
	if impl != stable+"#v1" {
		t.Errorf("implementation URI = %q", impl)
	}
}

func TestValidateOrgRepoRejectsTraversal(t *testing.T) {
	tests := []string{"../etc", "a/b", `a\b`, "", "repo name"}
	for _, name := range tests {
		if err := ValidateOrgRepo(name); err == nil {
			t.Errorf("ValidateOrgRepo(%q) = nil, want error", name)
		}
	}
	if err := ValidateOrgRepo("pixel-table_2.0"); err != nil {
		t.Errorf("ValidateOrgRepo valid name: %v", err)
	}
}

func TestValidateOrgRepoTraversalIsSecurity(t *testing.T) {
	err := ValidateOrgRepo("..")
	if apperror.KindOf(err) != apperror.KindSecurity {
		t.Errorf("kind = %q, want security", apperror.KindOf(err))
	}
}

func TestValidateVersion(t *testing.T) {
	if err := ValidateVersion("v1.2.3"); err != nil {
		t.Errorf("valid version rejected: %v", err)
	}
	for _, v := range []string{"", "v 1", "v1\n", "../v1", "a/b"} {
		if err := ValidateVersion(v); err == nil {
			t.Errorf("ValidateVersion(%q) = nil, want error", v)
		}
	}
}

func TestDeveloperURIKeepsEmailOutOfPath(t *testing.T) {
	uri := DeveloperURI("acme", "lib", "dev@example.com")
	if strings.Contains(uri, "@") {
		t.Errorf("developer URI contains raw @: %q", uri)
	}
}

func TestEventURIDeterministic(t *testing.T) {
	a := EventURI("acme", "lib", "added", "function:acme/lib/f", "v1", "v2")
	b := EventURI("acme", "lib", "added", "function:acme/lib/f", "v1", "v2")
	if a != b {
		t.Error("event URIs must be deterministic")
	}
}

func TestGithubLink(t *testing.T) {
	link := GithubLink("acme", "lib", "v1", "core.py", 10, 20)
	if link != "https://github.com/acme/lib/blob/v1/core.py#L10-L20" {
		t.Errorf("link = %q", link)
	}
}

func TestTermNTriplesRoundTrip(t *testing.T) {
	terms := []Term{
		IRI("http://repolex.org/x"),
		Lit(`say "hi"` + "\nnewline"),
		IntLit(42),
		BoolLit(true),
	}
	for _, term := range terms {
		enc := term.NTriples()
		back, err := ParseTerm(enc)
		if err != nil {
			t.Fatalf("ParseTerm(%q): %v", enc, err)
		}
		if back != term {
			t.Errorf("round trip: got %+v, want %+v", back, term)
		}
	}
}

func TestTripleNTriples(t *testing.T) {
	tr := NewTriple("function:acme/lib/f", "http://rdf.webofcode.org/woc/canonicalName", Lit("f"))
	want := `<function:acme/lib/f> <http://rdf.webofcode.org/woc/canonicalName> "f" .`
	if got := tr.NTriples(); got != want {
		t.Errorf("NTriples = %q, want %q", got, want)
	}
}
