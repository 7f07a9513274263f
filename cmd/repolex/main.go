// Package main provides the repolex binary entry point. Repolex turns
// source repositories into a queryable semantic knowledge base with a
// verb-noun command grammar over repositories, graphs, exports, queries
// and system state.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	// Register language parsers via init()
	_ "github.com/c360studio/repolex/parser/python"

	"github.com/c360studio/repolex/apperror"
)

const (
	Version = "0.1.0"
	appName = "repolex"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperror.ExitCode(err))
	}
}

func rootCmd() *cobra.Command {
	var storageRoot string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Semantic knowledge base for source repositories",
		Long:          "repolex parses tracked repositories into versioned RDF graphs:\nstable entity identities, per-version implementations, git provenance\nand change events, queryable with SPARQL and exportable as compact\nstreaming artifacts.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&storageRoot, "storage-root", "",
		"base directory for all state (default ~/.repolex)")

	cmd.AddCommand(
		repoCmd(&storageRoot),
		graphCmd(&storageRoot),
		exportCmd(&storageRoot),
		queryCmd(&storageRoot),
		systemCmd(&storageRoot),
	)
	return cmd
}
