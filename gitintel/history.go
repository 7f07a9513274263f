package gitintel

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/go-diff/diff"
)

// Commit is one extracted commit.
type Commit struct {
	SHA         string
	AuthorName  string
	AuthorEmail string // kept verbatim; never interpreted numerically
	Timestamp   time.Time
	Message     string
	Files       []string // changed paths, repo-relative
}

// Developer aggregates authorship per email.
type Developer struct {
	Email     string
	Name      string
	Commits   int
	FirstSeen time.Time
	LastSeen  time.Time
}

// Ref is a branch or tag with its target sha.
type Ref struct {
	Name string
	SHA  string
}

// LineRange is an inclusive changed region [Start, End] in the new side
// of a patch.
type LineRange struct {
	Start int
	End   int
}

// Overlaps reports whether the range intersects [start, end].
func (r LineRange) Overlaps(start, end int) bool {
	return r.Start <= end && start <= r.End
}

// Intelligence is the full git extraction for one repository.
type Intelligence struct {
	Commits    []Commit
	Developers []Developer
	Branches   []Ref
	Tags       []Ref
}

// Record separators for the log format: one 0x1e per commit, 0x1f
// between header fields.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// Extract reads the full history. Cancellation is observed between git
// invocations.
func Extract(ctx context.Context, repoPath string) (*Intelligence, error) {
	ex := NewExecutor(repoPath)

	commits, err := extractCommits(ctx, ex)
	if err != nil {
		return nil, err
	}

	intel := &Intelligence{
		Commits:    commits,
		Developers: aggregateDevelopers(commits),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intel.Branches, err = extractRefs(ctx, ex, "refs/heads", "refs/remotes/origin")
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intel.Tags, err = extractRefs(ctx, ex, "refs/tags")
	if err != nil {
		return nil, err
	}
	return intel, nil
}

func extractCommits(ctx context.Context, ex *Executor) ([]Commit, error) {
	out, err := ex.Run(ctx,
		"log", "--all", "--name-only", "--date=iso-strict",
		"--pretty=format:"+recordSep+"%H"+fieldSep+"%an"+fieldSep+"%ae"+fieldSep+"%aI"+fieldSep+"%s")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		lines := strings.Split(record, "\n")
		fields := strings.Split(lines[0], fieldSep)
		if len(fields) != 5 {
			continue
		}
		commit := Commit{
			SHA:         fields[0],
			AuthorName:  fields[1],
			AuthorEmail: fields[2],
			Message:     fields[4],
		}
		if ts, err := time.Parse(time.RFC3339, fields[3]); err == nil {
			commit.Timestamp = ts
		}
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line != "" {
				commit.Files = append(commit.Files, line)
			}
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

func aggregateDevelopers(commits []Commit) []Developer {
	byEmail := make(map[string]*Developer)
	for _, c := range commits {
		if c.AuthorEmail == "" {
			continue
		}
		dev, ok := byEmail[c.AuthorEmail]
		if !ok {
			dev = &Developer{Email: c.AuthorEmail, Name: c.AuthorName,
				FirstSeen: c.Timestamp, LastSeen: c.Timestamp}
			byEmail[c.AuthorEmail] = dev
		}
		dev.Commits++
		if c.Timestamp.Before(dev.FirstSeen) {
			dev.FirstSeen = c.Timestamp
		}
		if c.Timestamp.After(dev.LastSeen) {
			dev.LastSeen = c.Timestamp
		}
	}

	devs := make([]Developer, 0, len(byEmail))
	for _, d := range byEmail {
		devs = append(devs, *d)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Email < devs[j].Email })
	return devs
}

func extractRefs(ctx context.Context, ex *Executor, patterns ...string) ([]Ref, error) {
	args := append([]string{
		"for-each-ref", "--format=%(refname:short)" + fieldSep + "%(objectname)",
	}, patterns...)
	out, err := ex.Run(ctx, args...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var refs []Ref
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimSpace(line), fieldSep)
		if len(fields) != 2 || fields[0] == "" {
			continue
		}
		name := strings.TrimPrefix(fields[0], "origin/")
		if name == "HEAD" || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, Ref{Name: name, SHA: fields[1]})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// ChangedRanges parses the commit's patch with zero context and returns
// the changed line ranges per file on the new side. Used to link commits
// to the entities whose spans they touched.
func ChangedRanges(ctx context.Context, repoPath, sha string) (map[string][]LineRange, error) {
	ex := NewExecutor(repoPath)
	out, err := ex.Run(ctx, "show", sha, "--format=", "--unified=0")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return map[string][]LineRange{}, nil
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(out))
	if err != nil {
		// A patch that go-diff cannot parse degrades to file-level
		// attribution; callers treat a missing entry as "whole file".
		return map[string][]LineRange{}, nil
	}

	ranges := make(map[string][]LineRange)
	for _, fd := range fileDiffs {
		name := strings.TrimPrefix(fd.NewName, "b/")
		if name == "/dev/null" {
			continue
		}
		for _, hunk := range fd.Hunks {
			start := int(hunk.NewStartLine)
			length := int(hunk.NewLines)
			if length <= 0 {
				length = 1
			}
			ranges[name] = append(ranges[name], LineRange{Start: start, End: start + length - 1})
		}
	}
	return ranges, nil
}

// LatestCommitForFile returns the most recent commit sha in the given
// revision range touching path, or "" when none is found. Used for
// best-effort change-event attribution.
func LatestCommitForFile(ctx context.Context, repoPath, revRange, path string) string {
	ex := NewExecutor(repoPath)
	args := []string{"log", "-1", "--pretty=format:%H"}
	if revRange != "" {
		args = append(args, revRange)
	}
	args = append(args, "--", path)
	out, err := ex.Run(ctx, args...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
