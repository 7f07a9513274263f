package gitintel

import (
	"time"

	"github.com/c360studio/repolex/graph"
	"github.com/c360studio/repolex/vocabulary/gitvocab"
	"github.com/c360studio/repolex/vocabulary/woc"
)

// EntitySpan locates one stable entity inside a version checkout, for
// commit-to-entity linking. Edges always terminate at the stable URI.
type EntitySpan struct {
	StableURI string
	File      string
	StartLine int
	EndLine   int
}

// CommitTriples emits the commits graph. spans indexes stable entities by
// defining file; ranges carries per-commit changed line ranges (optional:
// a commit absent from ranges links to every entity of its files).
func CommitTriples(org, repo string, commits []Commit, spans map[string][]EntitySpan, ranges map[string]map[string][]LineRange) []graph.Triple {
	var triples []graph.Triple
	for _, c := range commits {
		commitURI := graph.CommitURI(org, repo, c.SHA)
		triples = append(triples,
			graph.NewTriple(commitURI, woc.RdfType, graph.IRI(gitvocab.ClassCommit)),
			graph.NewTriple(commitURI, gitvocab.PropSha, graph.Lit(c.SHA)),
			graph.NewTriple(commitURI, gitvocab.PropMessage, graph.Lit(c.Message)),
		)
		if !c.Timestamp.IsZero() {
			triples = append(triples, graph.NewTriple(commitURI, gitvocab.PropDate,
				graph.TypedLit(c.Timestamp.UTC().Format(time.RFC3339), woc.XsdDateTime)))
		}
		if c.AuthorEmail != "" {
			devURI := graph.DeveloperURI(org, repo, c.AuthorEmail)
			triples = append(triples,
				graph.NewTriple(commitURI, gitvocab.PropAuthor, graph.IRI(devURI)),
				graph.NewTriple(commitURI, gitvocab.PropAuthorName, graph.Lit(c.AuthorName)),
				graph.NewTriple(commitURI, gitvocab.PropAuthorEmail, graph.Lit(c.AuthorEmail)),
			)
		}

		commitRanges := ranges[c.SHA]
		for _, file := range c.Files {
			triples = append(triples,
				graph.NewTriple(commitURI, gitvocab.PropModifiesFile, graph.Lit(file)))

			for _, span := range spans[file] {
				if commitRanges != nil {
					touched := false
					for _, r := range commitRanges[file] {
						if r.Overlaps(span.StartLine, span.EndLine) {
							touched = true
							break
						}
					}
					if !touched {
						continue
					}
				}
				triples = append(triples,
					graph.NewTriple(commitURI, gitvocab.PropModifies, graph.IRI(span.StableURI)))
			}
		}
	}
	return triples
}

// DeveloperTriples emits the developers graph.
func DeveloperTriples(org, repo string, devs []Developer) []graph.Triple {
	var triples []graph.Triple
	for _, d := range devs {
		devURI := graph.DeveloperURI(org, repo, d.Email)
		triples = append(triples,
			graph.NewTriple(devURI, woc.RdfType, graph.IRI(gitvocab.ClassDeveloper)),
			graph.NewTriple(devURI, gitvocab.PropName, graph.Lit(d.Name)),
			graph.NewTriple(devURI, gitvocab.PropEmail, graph.Lit(d.Email)),
			graph.NewTriple(devURI, gitvocab.PropCommitCount, graph.IntLit(d.Commits)),
		)
		if !d.FirstSeen.IsZero() {
			triples = append(triples, graph.NewTriple(devURI, gitvocab.PropFirstCommit,
				graph.TypedLit(d.FirstSeen.UTC().Format(time.RFC3339), woc.XsdDateTime)))
		}
		if !d.LastSeen.IsZero() {
			triples = append(triples, graph.NewTriple(devURI, gitvocab.PropLastCommit,
				graph.TypedLit(d.LastSeen.UTC().Format(time.RFC3339), woc.XsdDateTime)))
		}
	}
	return triples
}

// BranchTriples emits the branches graph.
func BranchTriples(org, repo string, branches []Ref) []graph.Triple {
	return refTriples(org, repo, branches, "branch", gitvocab.ClassBranch)
}

// TagTriples emits the tags graph.
func TagTriples(org, repo string, tags []Ref) []graph.Triple {
	return refTriples(org, repo, tags, "tag", gitvocab.ClassTag)
}

func refTriples(org, repo string, refs []Ref, kind, class string) []graph.Triple {
	base := graph.RepositoryBaseURI(org, repo)
	var triples []graph.Triple
	for _, ref := range refs {
		refURI := base + "/" + kind + "/" + graph.EncodeComponent(ref.Name)
		commitURI := graph.CommitURI(org, repo, ref.SHA)
		triples = append(triples,
			graph.NewTriple(refURI, woc.RdfType, graph.IRI(class)),
			graph.NewTriple(refURI, gitvocab.PropName, graph.Lit(ref.Name)),
			graph.NewTriple(refURI, gitvocab.PropTargets, graph.IRI(commitURI)),
		)
	}
	return triples
}
