package graph

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/c360studio/repolex/apperror"
)

// BaseURI is the root of all repolex graph and entity URIs.
const BaseURI = "http://repolex.org"

// Entity URI schemes. Stable URIs omit the version; implementation URIs
// append it as a fragment so version-scoped records are trivially
// recognizable and deletable.
const (
	FunctionScheme = "function:"
	ClassScheme    = "class:"
	ModuleScheme   = "module:"
)

var componentPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateOrgRepo checks an organization or repository name for use in
// URIs and file-system paths.
func ValidateOrgRepo(name string) error {
	if name == "" {
		return apperror.Validationf("organization and repository names are required")
	}
	if len(name) > 100 {
		return apperror.Validationf("name too long (max 100 characters): %.20s…", name)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return apperror.Securityf("dangerous characters in identifier %q", name).
			WithSuggestions("avoid path traversal characters (.. / \\)")
	}
	if !componentPattern.MatchString(name) {
		return apperror.Validationf("invalid identifier %q", name).
			WithSuggestions("only alphanumerics, dots, dashes and underscores are allowed")
	}
	return nil
}

// ValidateVersion checks a version tag before it participates in URIs or
// checkout paths.
func ValidateVersion(version string) error {
	if version == "" {
		return apperror.Validationf("version tag is required")
	}
	if len(version) > 100 {
		return apperror.Validationf("version tag too long (max 100 characters)")
	}
	if strings.ContainsAny(version, " \t\n\r") {
		return apperror.Validationf("version tag cannot contain whitespace: %q", version)
	}
	if strings.Contains(version, "..") || strings.ContainsAny(version, `/\`) {
		return apperror.Securityf("dangerous characters in version tag %q", version)
	}
	return nil
}

// EncodeComponent percent-encodes a URI path component. Callers must have
// validated the component first; encoding is a second line of defense for
// qualified names, which may contain arbitrary identifier characters.
func EncodeComponent(s string) string {
	return url.PathEscape(s)
}

// GraphSet is the complete set of graph URIs for one repository version:
// four shared ontology graphs, two function graphs, four git graphs, one
// change-event graph, three evolution graphs, and the per-version files
// and metadata graphs. Together with the per-version partition of the
// implementations graph, these make up the full graph layout of a
// repository version.
type GraphSet struct {
	OntologyWoc       string
	OntologyGit       string
	OntologyEvolution string
	OntologyFiles     string

	FunctionsStable          string
	FunctionsImplementations string

	FilesStructure string

	GitCommits    string
	GitDevelopers string
	GitBranches   string
	GitTags       string

	AbcEvents string

	EvolutionAnalysis   string
	EvolutionStatistics string
	EvolutionPatterns   string

	ProcessingMetadata string
}

// All returns every URI in the set, version-scoped last.
func (g GraphSet) All() []string {
	return []string{
		g.OntologyWoc, g.OntologyGit, g.OntologyEvolution, g.OntologyFiles,
		g.FunctionsStable, g.FunctionsImplementations,
		g.GitCommits, g.GitDevelopers, g.GitBranches, g.GitTags,
		g.AbcEvents,
		g.EvolutionAnalysis, g.EvolutionStatistics, g.EvolutionPatterns,
		g.FilesStructure, g.ProcessingMetadata,
	}
}

// VersionScoped returns the graphs owned by this (repository, version)
// pair. They are created and destroyed together.
func (g GraphSet) VersionScoped() []string {
	return []string{g.FilesStructure, g.ProcessingMetadata}
}

// OntologyGraphURIs are the four vocabulary graphs shared by every
// repository. Every graph build appends them idempotently, so the store
// holds a single copy.
func OntologyGraphURIs() (woc, git, evolution, files string) {
	return BaseURI + "/ontology/woc",
		BaseURI + "/ontology/git",
		BaseURI + "/ontology/evolution",
		BaseURI + "/ontology/files"
}

// RepositoryBaseURI is the prefix shared by every graph of one repository.
// Dropping all graphs under this prefix removes the repository entirely.
func RepositoryBaseURI(org, repo string) string {
	return fmt.Sprintf("%s/repo/%s/%s", BaseURI, EncodeComponent(org), EncodeComponent(repo))
}

// Graphs mints the full GraphSet for one repository version.
func Graphs(org, repo, version string) GraphSet {
	base := RepositoryBaseURI(org, repo)
	woc, git, evo, files := OntologyGraphURIs()
	v := EncodeComponent(version)
	return GraphSet{
		OntologyWoc:       woc,
		OntologyGit:       git,
		OntologyEvolution: evo,
		OntologyFiles:     files,

		FunctionsStable:          base + "/functions/stable",
		FunctionsImplementations: base + "/functions/implementations",

		FilesStructure: base + "/files/" + v,

		GitCommits:    base + "/git/commits",
		GitDevelopers: base + "/git/developers",
		GitBranches:   base + "/git/branches",
		GitTags:       base + "/git/tags",

		AbcEvents: base + "/abc/events",

		EvolutionAnalysis:   base + "/evolution/analysis",
		EvolutionStatistics: base + "/evolution/statistics",
		EvolutionPatterns:   base + "/evolution/patterns",

		ProcessingMetadata: base + "/meta/" + v,
	}
}

// StableFunctionURI mints the permanent identity URI for a function.
// These URIs are never deleted while any implementation references them,
// so cross-graph edges may terminate here safely.
func StableFunctionURI(org, repo, qualifiedName string) string {
	return fmt.Sprintf("%s%s/%s/%s", FunctionScheme,
		EncodeComponent(org), EncodeComponent(repo), EncodeComponent(qualifiedName))
}

// ImplementationURI mints the version-scoped record URI for a function.
// The fragment separates version-scoped state from the stable identity.
func ImplementationURI(org, repo, qualifiedName, version string) string {
	return StableFunctionURI(org, repo, qualifiedName) + "#" + EncodeComponent(version)
}

// StableClassURI mints the permanent identity URI for a class.
func StableClassURI(org, repo, qualifiedName string) string {
	return fmt.Sprintf("%s%s/%s/%s", ClassScheme,
		EncodeComponent(org), EncodeComponent(repo), EncodeComponent(qualifiedName))
}

// ClassImplementationURI mints the version-scoped record URI for a class.
func ClassImplementationURI(org, repo, qualifiedName, version string) string {
	return StableClassURI(org, repo, qualifiedName) + "#" + EncodeComponent(version)
}

// ModuleURI mints a module record URI. Modules are version-scoped.
func ModuleURI(org, repo, dottedPath, version string) string {
	return fmt.Sprintf("%s%s/%s/%s#%s", ModuleScheme,
		EncodeComponent(org), EncodeComponent(repo),
		EncodeComponent(dottedPath), EncodeComponent(version))
}

// CommitURI mints a commit URI from its sha.
func CommitURI(org, repo, sha string) string {
	return RepositoryBaseURI(org, repo) + "/commit/" + EncodeComponent(sha)
}

// DeveloperURI mints a developer URI from an email. The email is stored
// verbatim in a triple; only the URI form is rewritten.
func DeveloperURI(org, repo, email string) string {
	safe := strings.ReplaceAll(email, "@", "_at_")
	safe = strings.ReplaceAll(safe, ".", "_")
	return RepositoryBaseURI(org, repo) + "/developer/" + EncodeComponent(safe)
}

// FileURI mints a per-version file URI.
func FileURI(org, repo, version, relPath string) string {
	safe := strings.ReplaceAll(relPath, "/", "_")
	return fmt.Sprintf("%s/file/%s/%s", RepositoryBaseURI(org, repo),
		EncodeComponent(version), EncodeComponent(safe))
}

// EventURI mints a deterministic change-event URI so re-running event
// generation for the same transition is idempotent.
func EventURI(org, repo, kind, entityURI, fromVersion, toVersion string) string {
	base := Graphs(org, repo, toVersion).AbcEvents
	return fmt.Sprintf("%s#%s_%s_%s_%s", base, kind,
		EncodeComponent(entityURI), EncodeComponent(fromVersion), EncodeComponent(toVersion))
}

// VersionFragmentSuffix is the URI suffix marking records of one version.
func VersionFragmentSuffix(version string) string {
	return "#" + EncodeComponent(version)
}

// GithubLink renders a source link for a file location at a version.
// Links are minted on demand and never stored redundantly per entity kind.
func GithubLink(org, repo, version, relPath string, startLine, endLine int) string {
	link := fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", org, repo, version, relPath)
	switch {
	case startLine > 0 && endLine > 0:
		return fmt.Sprintf("%s#L%d-L%d", link, startLine, endLine)
	case startLine > 0:
		return fmt.Sprintf("%s#L%d", link, startLine)
	}
	return link
}
