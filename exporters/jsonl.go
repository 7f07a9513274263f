package exporters

import (
	"bufio"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/metrics"
)

// CompactOptions customizes a compact export.
type CompactOptions struct {
	// FileGlob restricts function records to functions whose defining
	// file matches the doublestar pattern. Empty means all. Class and
	// module records are not filtered.
	FileGlob string

	// StringTable indexes module and file strings that recur, shrinking
	// the artifact. Record fields then hold either a literal string or an
	// integer index into the table record.
	StringTable bool
}

// CompactStats summarizes one compact export.
type CompactStats struct {
	FunctionsExported int `json:"functions_exported"`
	ClassesExported   int `json:"classes_exported"`
	ModulesExported   int `json:"modules_exported"`
	PatternsExported  int `json:"patterns_exported"`
	ClustersExported  int `json:"clusters_exported"`
	TotalLines        int `json:"total_lines"`
}

// ExportCompact writes the line-delimited compact artifact for one
// version: header, repository, functions, classes, modules, patterns,
// clusters, footer. Records use short field names and are consumable
// with any line-oriented JSON tool.
func (e *Exporter) ExportCompact(ctx context.Context, org, repo, version, outPath string, opts CompactOptions) (*CompactStats, error) {
	af, err := createAtomic(outPath)
	if err != nil {
		return nil, err
	}

	stats, err := e.writeCompact(ctx, org, repo, version, af, opts)
	if err != nil {
		af.Abort()
		return nil, err
	}
	if err := af.Commit(); err != nil {
		return nil, err
	}
	metrics.ExportRecords.WithLabelValues("compact").Add(float64(stats.TotalLines))
	return stats, nil
}

func (e *Exporter) writeCompact(ctx context.Context, org, repo, version string, af *atomicFile, opts CompactOptions) (*CompactStats, error) {
	w := bufio.NewWriter(af.f)
	stats := &CompactStats{}

	emit := func(record any) error {
		data, err := json.Marshal(record)
		if err != nil {
			return apperror.Exportf(err, "encode record")
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return apperror.Exportf(err, "write record")
		}
		stats.TotalLines++
		return nil
	}

	matches := func(file string) bool {
		if opts.FileGlob == "" {
			return true
		}
		ok, err := doublestar.Match(opts.FileGlob, file)
		return err == nil && ok
	}

	if err := emit(map[string]any{
		"type": "header", "repo": org + "/" + repo, "release": version,
		"generator": "repolex", "format_version": "1.0",
	}); err != nil {
		return nil, err
	}
	if err := emit(map[string]any{
		"type": "repository", "org_repo": org + "/" + repo, "release": version,
		"name": repo, "organization": org,
	}); err != nil {
		return nil, err
	}

	// Function and class rows are collected in memory first (bounded by
	// the repository's entity count), then emitted, with table references
	// when the string table is on. Module, pattern and cluster records
	// stream straight through.
	table := newStringTable(opts.StringTable)

	var functions []FunctionRow
	err := e.Functions(ctx, org, repo, version, func(row FunctionRow) error {
		if !matches(row.File) {
			return nil
		}
		table.observe(row.Module)
		table.observe(row.File)
		functions = append(functions, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var classes []ClassRow
	err = e.Classes(ctx, org, repo, version, func(row ClassRow) error {
		table.observe(row.Module)
		classes = append(classes, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if table.enabled && len(table.strings()) > 0 {
		if err := emit(map[string]any{"type": "strings", "table": table.strings()}); err != nil {
			return nil, err
		}
	}

	for _, row := range functions {
		record := map[string]any{
			"type":     "function",
			"n":        row.Name,
			"s":        row.Signature,
			"m":        table.ref(row.Module),
			"f":        table.ref(row.File),
			"l":        row.StartLine,
			"loc":      row.BodyLines,
			"cat":      row.Category,
			"refactor": row.Refactor,
		}
		if first := firstLine(row.Docstring); first != "" {
			record["d"] = first
		}
		if err := emit(record); err != nil {
			return nil, err
		}
		stats.FunctionsExported++
	}

	for _, row := range classes {
		record := map[string]any{
			"type":     "class",
			"n":        row.Name,
			"m":        table.ref(row.Module),
			"inherits": strings.Join(row.Inherits, ", "),
			"methods":  row.Methods,
			"cat":      row.Category,
			"refactor": row.Refactor,
		}
		if err := emit(record); err != nil {
			return nil, err
		}
		stats.ClassesExported++
	}

	clusters := make(map[string]int)
	err = e.Modules(ctx, org, repo, version, func(row ModuleRow) error {
		clusters[row.Category]++
		stats.ModulesExported++
		return emit(map[string]any{
			"type":           "module",
			"name":           row.Path,
			"path":           row.File,
			"function_count": row.FunctionCount,
			"category":       row.Category,
		})
	})
	if err != nil {
		return nil, err
	}

	err = e.Patterns(ctx, org, repo, version, func(row PatternRow) error {
		stats.PatternsExported++
		return emit(map[string]any{
			"type":      "pattern",
			"name":      row.Name,
			"frequency": row.Frequency,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, category := range sortedClusterNames(clusters) {
		stats.ClustersExported++
		if err := emit(map[string]any{
			"type":    "cluster",
			"name":    category,
			"modules": clusters[category],
		}); err != nil {
			return nil, err
		}
	}

	if err := emit(map[string]any{"type": "footer", "stats": stats}); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, apperror.Exportf(err, "flush export")
	}
	return stats, nil
}

// stringTable deduplicates recurring strings. Strings seen once stay
// inline; strings seen twice or more are emitted in the table record and
// referenced by index.
type stringTable struct {
	enabled bool
	counts  map[string]int
	index   map[string]int
	ordered []string
}

func newStringTable(enabled bool) *stringTable {
	return &stringTable{enabled: enabled, counts: map[string]int{}, index: map[string]int{}}
}

func (t *stringTable) observe(s string) {
	if !t.enabled || s == "" {
		return
	}
	t.counts[s]++
	if t.counts[s] == 2 {
		t.index[s] = len(t.ordered)
		t.ordered = append(t.ordered, s)
	}
}

func (t *stringTable) strings() []string { return t.ordered }

// ref returns the table index when the string recurs, else the literal.
func (t *stringTable) ref(s string) any {
	if !t.enabled {
		return s
	}
	if idx, ok := t.index[s]; ok {
		return idx
	}
	return s
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func sortedClusterNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
