package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/repolex/exporters"
)

func exportCmd(storageRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Emit compact and outline artifacts",
	}

	var (
		output      string
		fileGlob    string
		stringTable bool
		batchSize   int
	)
	compact := &cobra.Command{
		Use:   "compact <org/repo> <version>",
		Short: "Write the line-delimited compact artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := args[1]
			return withApp(storageRoot, func(app *App) error {
				out := output
				if out == "" {
					out, err = exporters.DefaultExportPath(app.cfg.ExportsPath(), org, repo, version, "jsonl")
					if err != nil {
						return err
					}
				}
				stats, err := exporters.New(app.store, batchSize).ExportCompact(
					c.Context(), org, repo, version, out, exporters.CompactOptions{
						FileGlob:    fileGlob,
						StringTable: stringTable,
					})
				if err != nil {
					return err
				}
				fmt.Printf("Exported %s (%d functions, %d classes, %d modules, %d lines)\n",
					out, stats.FunctionsExported, stats.ClassesExported,
					stats.ModulesExported, stats.TotalLines)
				return nil
			})
		},
	}
	compact.Flags().StringVarP(&output, "output", "o", "", "output path (default under {root}/exports)")
	compact.Flags().StringVar(&fileGlob, "files", "", "doublestar glob restricting function records by defining file")
	compact.Flags().BoolVar(&stringTable, "string-table", false, "deduplicate recurring strings into a table record")
	compact.Flags().IntVar(&batchSize, "batch-size", exporters.DefaultBatchSize, "streaming query page size")
	cmd.AddCommand(compact)

	var outlineOutput string
	outline := &cobra.Command{
		Use:   "outline <org/repo> <version>",
		Short: "Write the hierarchical outline tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := args[1]
			return withApp(storageRoot, func(app *App) error {
				out := outlineOutput
				if out == "" {
					out, err = exporters.DefaultExportPath(app.cfg.ExportsPath(), org, repo, version, "txt")
					if err != nil {
						return err
					}
				}
				if err := exporters.New(app.store, batchSize).ExportOutline(
					c.Context(), org, repo, version, out); err != nil {
					return err
				}
				fmt.Printf("Exported %s\n", out)
				return nil
			})
		},
	}
	outline.Flags().StringVarP(&outlineOutput, "output", "o", "", "output path (default under {root}/exports)")
	cmd.AddCommand(outline)

	return cmd
}
