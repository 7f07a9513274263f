package exporters

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/repolex/builder"
	"github.com/c360studio/repolex/parser"
	_ "github.com/c360studio/repolex/parser/python"
	"github.com/c360studio/repolex/store"
)

// buildFixture ingests a small two-version repository and returns the
// store with v2 built (functions make() and Helper class).
func buildFixture(t *testing.T) *store.Store {
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
			"GIT_AUTHOR_NAME=Dev", "GIT_AUTHOR_EMAIL=dev@example.com",
			"GIT_COMMITTER_NAME=Dev", "GIT_COMMITTER_EMAIL=dev@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	source := `"""Core module."""


class Helper(object):
    """Helps."""

    def assist(self):
        return True


def make(name):
    """Make a thing."""
    return name
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.py"), []byte(source), 0o644))
	run("init", "-b", "main")
	run("add", ".")
	run("commit", "-m", "add core")
	run("tag", "v2")

	st, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	b := builder.New(st, parser.WalkOptions{}, nil)
	_, err = b.Build(context.Background(), builder.Input{
		Org: "acme", Repo: "lib", Version: "v2",
		CheckoutPath: dir, GitPath: dir,
	}, nil)
	require.NoError(t, err)
	return st
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record), "line: %s", scanner.Text())
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	return records
}

func recordsOfType(records []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, r := range records {
		if r["type"] == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestExportCompact(t *testing.T) {
	st := buildFixture(t)
	out := filepath.Join(t.TempDir(), "v2.jsonl")

	stats, err := New(st, 0).ExportCompact(context.Background(), "acme", "lib", "v2", out, CompactOptions{})
	require.NoError(t, err)

	records := readRecords(t, out)
	require.NotEmpty(t, records)

	assert.Equal(t, "header", records[0]["type"])
	assert.Equal(t, "acme/lib", records[0]["repo"])
	assert.Equal(t, "v2", records[0]["release"])
	assert.Equal(t, "footer", records[len(records)-1]["type"])

	functions := recordsOfType(records, "function")
	require.Len(t, functions, 2) // make + Helper.assist

	var makeRec map[string]any
	for _, fn := range functions {
		if fn["n"] == "make" {
			makeRec = fn
		}
	}
	require.NotNil(t, makeRec, "make record missing")
	assert.Equal(t, "small", makeRec["refactor"], "short body scores small")
	assert.Equal(t, "core", makeRec["m"])
	assert.Equal(t, "Make a thing.", makeRec["d"])

	classes := recordsOfType(records, "class")
	require.Len(t, classes, 1)
	assert.Equal(t, "Helper", classes[0]["n"])
	assert.Equal(t, "object", classes[0]["inherits"])
	assert.Equal(t, float64(1), classes[0]["methods"])

	modules := recordsOfType(records, "module")
	require.Len(t, modules, 1)
	assert.Equal(t, "core", modules[0]["name"])

	footer := records[len(records)-1]
	footerStats := footer["stats"].(map[string]any)
	assert.Equal(t, float64(stats.FunctionsExported), footerStats["functions_exported"])
}

func TestExportCompactFileGlob(t *testing.T) {
	st := buildFixture(t)
	out := filepath.Join(t.TempDir(), "v2.jsonl")

	_, err := New(st, 0).ExportCompact(context.Background(), "acme", "lib", "v2", out,
		CompactOptions{FileGlob: "does-not-match/**"})
	require.NoError(t, err)

	records := readRecords(t, out)
	assert.Empty(t, recordsOfType(records, "function"), "glob should filter all functions")
}

func TestExportCompactStringTable(t *testing.T) {
	st := buildFixture(t)
	out := filepath.Join(t.TempDir(), "v2.jsonl")

	_, err := New(st, 0).ExportCompact(context.Background(), "acme", "lib", "v2", out,
		CompactOptions{StringTable: true})
	require.NoError(t, err)

	records := readRecords(t, out)
	tables := recordsOfType(records, "strings")
	require.Len(t, tables, 1, "recurring module/file strings should produce a table")

	table := tables[0]["table"].([]any)
	assert.Contains(t, table, "core.py")

	// Function records reference the table by index for recurring strings.
	for _, fn := range recordsOfType(records, "function") {
		if _, isNumber := fn["f"].(float64); !isNumber {
			t.Errorf("expected table index for recurring file, got %v", fn["f"])
		}
	}
}

func TestExportOutline(t *testing.T) {
	st := buildFixture(t)

	var sb strings.Builder
	err := New(st, 0).WriteOutline(context.Background(), "acme", "lib", "v2", &sb)
	require.NoError(t, err)

	outline := sb.String()
	assert.Contains(t, outline, "acme/lib @ v2")
	assert.Contains(t, outline, "core")
	assert.Contains(t, outline, "class Helper(object)")
	assert.Contains(t, outline, "def make(name)")
	assert.Contains(t, outline, "Make a thing.")

	// Method nests under its class, deeper than module functions.
	assistIdx := strings.Index(outline, "def assist")
	classIdx := strings.Index(outline, "class Helper")
	require.Positive(t, assistIdx)
	assert.Less(t, classIdx, assistIdx)
}

func TestDefaultExportPathValidates(t *testing.T) {
	root := t.TempDir()
	path, err := DefaultExportPath(root, "acme", "lib", "v2", "jsonl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "acme", "lib", "v2.jsonl"), path)

	_, err = DefaultExportPath(root, "..", "lib", "v2", "jsonl")
	require.Error(t, err)
}

func TestFailedExportLeavesNoPartialFile(t *testing.T) {
	st := buildFixture(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "v9.jsonl")

	// Unknown version exports an empty but valid artifact; simulate
	// failure instead by cancelling the context immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(st, 0).ExportCompact(ctx, "acme", "lib", "v2", out, CompactOptions{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial export file may survive")
}
