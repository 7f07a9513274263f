package exporters

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/metrics"
)

// ExportOutline writes the hierarchical text tree — module → class →
// function — with signature and docstring first line per entity.
func (e *Exporter) ExportOutline(ctx context.Context, org, repo, version, outPath string) error {
	af, err := createAtomic(outPath)
	if err != nil {
		return err
	}
	if err := e.WriteOutline(ctx, org, repo, version, af.f); err != nil {
		af.Abort()
		return err
	}
	return af.Commit()
}

// WriteOutline streams the outline to w.
func (e *Exporter) WriteOutline(ctx context.Context, org, repo, version string, w io.Writer) error {
	bw := bufio.NewWriter(w)
	lines := 0
	emit := func(format string, args ...any) error {
		if _, err := fmt.Fprintf(bw, format+"\n", args...); err != nil {
			return apperror.Exportf(err, "write outline")
		}
		lines++
		return nil
	}

	if err := emit("%s/%s @ %s", org, repo, version); err != nil {
		return err
	}

	// Group entities per module up front; the outline orders modules,
	// then classes, then free functions.
	type moduleEntry struct {
		classes   map[string][]FunctionRow // class qualified name → methods
		functions []FunctionRow            // module-level functions
		classRows []ClassRow
	}
	modules := make(map[string]*moduleEntry)
	entry := func(module string) *moduleEntry {
		m, ok := modules[module]
		if !ok {
			m = &moduleEntry{classes: map[string][]FunctionRow{}}
			modules[module] = m
		}
		return m
	}

	err := e.Classes(ctx, org, repo, version, func(row ClassRow) error {
		m := entry(row.Module)
		m.classRows = append(m.classRows, row)
		m.classes[row.Qualified] = nil
		return nil
	})
	if err != nil {
		return err
	}

	err = e.Functions(ctx, org, repo, version, func(row FunctionRow) error {
		m := entry(row.Module)
		if owner, ok := enclosingClass(row.Qualified, m.classes); ok {
			m.classes[owner] = append(m.classes[owner], row)
			return nil
		}
		m.functions = append(m.functions, row)
		return nil
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, moduleName := range names {
		m := modules[moduleName]
		if err := emit("└── %s", moduleName); err != nil {
			return err
		}
		for _, cls := range m.classRows {
			label := cls.Name
			if len(cls.Inherits) > 0 {
				label += "(" + strings.Join(cls.Inherits, ", ") + ")"
			}
			if err := emit("    ├── class %s", label); err != nil {
				return err
			}
			for _, method := range m.classes[cls.Qualified] {
				if err := emitFunction(emit, "    │   ", method); err != nil {
					return err
				}
			}
		}
		for _, fn := range m.functions {
			if err := emitFunction(emit, "    ", fn); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return apperror.Exportf(err, "flush outline")
	}
	metrics.ExportRecords.WithLabelValues("outline").Add(float64(lines))
	return nil
}

func emitFunction(emit func(string, ...any) error, indent string, fn FunctionRow) error {
	if err := emit("%s├── %s", indent, fn.Signature); err != nil {
		return err
	}
	if doc := firstLine(fn.Docstring); doc != "" {
		return emit("%s│       %s", indent, doc)
	}
	return nil
}

// enclosingClass finds the class a method's qualified name nests under.
func enclosingClass(qualified string, classes map[string][]FunctionRow) (string, bool) {
	idx := strings.LastIndex(qualified, ".")
	if idx < 0 {
		return "", false
	}
	owner := qualified[:idx]
	_, ok := classes[owner]
	return owner, ok
}
