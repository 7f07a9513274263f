// Package gitvocab defines the git provenance vocabulary: commits,
// developers, branches and tags extracted from a repository's history.
package gitvocab

// Namespace is the base IRI prefix for git vocabulary terms.
const Namespace = "http://repolex.org/git/"

// Class IRIs.
const (
	// ClassCommit is a single commit.
	ClassCommit = Namespace + "Commit"

	// ClassDeveloper is an author aggregate keyed by email.
	ClassDeveloper = Namespace + "Developer"

	// ClassBranch is a branch head.
	ClassBranch = Namespace + "Branch"

	// ClassTag is a version tag.
	ClassTag = Namespace + "Tag"
)

// Object property IRIs.
const (
	// PropAuthor links a commit to its developer node.
	PropAuthor = Namespace + "author"

	// PropModifies links a commit to a stable entity whose defining file
	// it touched. Never points at a version-scoped implementation.
	PropModifies = Namespace + "modifies"

	// PropTargets links a branch or tag to its commit.
	PropTargets = Namespace + "targets"
)

// Data property IRIs.
const (
	// PropSha is the commit hash.
	PropSha = Namespace + "sha"

	// PropMessage is the commit message.
	PropMessage = Namespace + "message"

	// PropDate is the author timestamp, ISO 8601.
	PropDate = Namespace + "date"

	// PropAuthorName is the author display name.
	PropAuthorName = Namespace + "authorName"

	// PropAuthorEmail is the author email, kept verbatim as a string.
	PropAuthorEmail = Namespace + "authorEmail"

	// PropModifiesFile is a repo-relative path changed by a commit.
	PropModifiesFile = Namespace + "modifiesFile"

	// PropName names a developer, branch or tag.
	PropName = Namespace + "name"

	// PropEmail is the developer email.
	PropEmail = Namespace + "email"

	// PropCommitCount is a developer's total commits.
	PropCommitCount = Namespace + "commitCount"

	// PropFirstCommit and PropLastCommit bound a developer's activity.
	PropFirstCommit = Namespace + "firstCommit"
	PropLastCommit  = Namespace + "lastCommit"
)
