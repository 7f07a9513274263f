// Package queries ships a bank of named SPARQL queries covering the
// common questions asked of a repository's graphs. The bank is embedded
// at build time and parameterized by repository coordinates.
package queries

import (
	_ "embed"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/graph"
)

//go:embed queries.yaml
var bankYAML []byte

// Query is one named query template.
type Query struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SPARQL      string `yaml:"sparql"`
}

type bankFile struct {
	Queries []Query `yaml:"queries"`
}

// Bank holds the loaded query templates.
type Bank struct {
	byName map[string]Query
}

// Load parses the embedded bank.
func Load() (*Bank, error) {
	var file bankFile
	if err := yaml.Unmarshal(bankYAML, &file); err != nil {
		return nil, apperror.Wrap(apperror.KindConfiguration, err, "parse query bank")
	}
	bank := &Bank{byName: make(map[string]Query, len(file.Queries))}
	for _, q := range file.Queries {
		bank.byName[q.Name] = q
	}
	return bank, nil
}

// List returns every query sorted by name.
func (b *Bank) List() []Query {
	out := make([]Query, 0, len(b.byName))
	for _, q := range b.byName {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Render expands a named query for one repository. Coordinates are
// validated before substitution so templates cannot be escaped.
func (b *Bank) Render(name, org, repo, version string) (string, error) {
	q, ok := b.byName[name]
	if !ok {
		names := make([]string, 0, len(b.byName))
		for n := range b.byName {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", apperror.Validationf("unknown query %q", name).
			WithSuggestions("available: " + strings.Join(names, ", "))
	}

	if err := graph.ValidateOrgRepo(org); err != nil {
		return "", err
	}
	if err := graph.ValidateOrgRepo(repo); err != nil {
		return "", err
	}
	if version != "" {
		if err := graph.ValidateVersion(version); err != nil {
			return "", err
		}
	}

	r := strings.NewReplacer("{org}", org, "{repo}", repo, "{version}", version)
	return r.Replace(q.SPARQL), nil
}
