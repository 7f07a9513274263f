package parser

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/c360studio/repolex/metrics"
)

// WalkOptions bounds a checkout parse.
type WalkOptions struct {
	// MaxFileSize skips files larger than this many bytes. Zero means the
	// 10 MB default.
	MaxFileSize int64

	// FileTimeout isolates pathological files. Zero means 60 seconds.
	FileTimeout time.Duration

	// Concurrency is the parser worker count. Zero means 4.
	Concurrency int

	// Logger receives per-file warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Registry resolves language frontends. Defaults to DefaultRegistry.
	Registry *Registry
}

func (o WalkOptions) withDefaults() WalkOptions {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = 10 * 1024 * 1024
	}
	if o.FileTimeout <= 0 {
		o.FileTimeout = 60 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry
	}
	return o
}

// skipDirs are directories never descended into.
var skipDirs = map[string]bool{
	"venv": true, ".venv": true, "env": true, "__pycache__": true,
	".pytest_cache": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".tox": true, ".eggs": true,
	"site-packages": true, ".mypy_cache": true, ".git": true,
}

// ParseTree parses every supported file under root. Syntactically invalid
// and oversized files are skipped with a warning and recorded in the
// result. Cancellation is observed at file boundaries. The merged result
// is deterministic: files contribute in sorted path order regardless of
// worker scheduling.
func ParseTree(ctx context.Context, root string, opts WalkOptions) (*Result, error) {
	opts = opts.withDefaults()

	files, oversized, err := discover(root, opts)
	if err != nil {
		return nil, fmt.Errorf("discover source files: %w", err)
	}

	type fileOutcome struct {
		path    string
		result  *Result
		skipped *SkippedFile
	}

	outcomes := make([]fileOutcome, len(files))
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup

	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, rel string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = fileOutcome{path: rel}
			if err := ctx.Err(); err != nil {
				return
			}

			fp, err := opts.Registry.ForExtension(filepath.Ext(rel))
			if err != nil {
				return
			}

			fctx, cancel := context.WithTimeout(ctx, opts.FileTimeout)
			defer cancel()

			res, err := fp.ParseFile(fctx, filepath.Join(root, rel), rel)
			if err != nil {
				metrics.ParseFailures.Inc()
				opts.Logger.Warn("skipping unparseable file",
					slog.String("file", rel), slog.String("error", err.Error()))
				outcomes[i].skipped = &SkippedFile{Path: rel, Reason: err.Error()}
				return
			}
			outcomes[i].result = res
		}(i, rel)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := &Result{Skipped: oversized}
	seen := make(map[string]bool)
	seenClasses := make(map[string]bool)
	for _, out := range outcomes {
		if out.skipped != nil {
			merged.Skipped = append(merged.Skipped, *out.skipped)
			continue
		}
		if out.result == nil {
			continue
		}
		merged.Modules = append(merged.Modules, out.result.Modules...)
		for _, cls := range out.result.Classes {
			key := DuplicateKey(cls.Module, cls.QualifiedName)
			if seenClasses[key] {
				opts.Logger.Warn("duplicate entity",
					slog.String("name", cls.QualifiedName), slog.String("file", cls.File))
				continue
			}
			seenClasses[key] = true
			merged.Classes = append(merged.Classes, cls)
		}
		for _, fn := range out.result.Functions {
			// Same (module, qualified name) twice: first parse-order
			// occurrence wins; later ones are logged as duplicates.
			key := DuplicateKey(fn.Module, fn.QualifiedName)
			if seen[key] {
				opts.Logger.Warn("duplicate entity",
					slog.String("name", fn.QualifiedName), slog.String("file", fn.File))
				continue
			}
			seen[key] = true
			merged.Functions = append(merged.Functions, fn)
		}
	}
	return merged, nil
}

// discover lists parseable files under root in sorted relative-path
// order, honoring .gitignore and the size cap.
func discover(root string, opts WalkOptions) ([]string, []SkippedFile, error) {
	gi := loadGitignore(root)

	var files []string
	var oversized []SkippedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !opts.Registry.Handles(filepath.Ext(name)) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			opts.Logger.Warn("skipping oversized file",
				slog.String("file", rel), slog.Int64("size", info.Size()))
			oversized = append(oversized, SkippedFile{
				Path:   rel,
				Reason: fmt.Sprintf("exceeds size cap (%d bytes)", info.Size()),
			})
			return nil
		}
		if isBinary(path) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	return files, oversized, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// isBinary sniffs the first bytes for NULs.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
