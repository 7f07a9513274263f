package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/repolex/builder"
)

func graphCmd(storageRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build, rebuild and remove semantic graphs",
	}

	var addForce bool
	add := &cobra.Command{
		Use:   "add <org/repo> [version]",
		Short: "Build all graphs for a version (latest when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return withApp(storageRoot, func(app *App) error {
				report, err := app.graphMgr.Add(c.Context(), org, repo, version, addForce, progressPrinter())
				if err != nil {
					return err
				}
				printReport(report)
				return nil
			})
		},
	}
	add.Flags().BoolVar(&addForce, "force", false, "rebuild even when graphs exist")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "update <org/repo> [version]",
		Short: "Nuclear rebuild: replace version-scoped graphs in place",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return withApp(storageRoot, func(app *App) error {
				report, err := app.graphMgr.Update(c.Context(), org, repo, version, progressPrinter())
				if err != nil {
					return err
				}
				printReport(report)
				return nil
			})
		},
	})

	var removeForce bool
	remove := &cobra.Command{
		Use:   "remove <org/repo> [version]",
		Short: "Remove a version's graphs, or all graphs when no version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return withApp(storageRoot, func(app *App) error {
				scope := "ALL graphs"
				if version != "" {
					scope = "graphs for " + version
				}
				if !confirmOrForce(app, removeForce,
					fmt.Sprintf("Removing %s of %s/%s", scope, org, repo)) {
					fmt.Println("Aborted")
					return nil
				}
				if err := app.graphMgr.Remove(c.Context(), org, repo, version, true); err != nil {
					return err
				}
				fmt.Printf("Removed %s of %s/%s\n", scope, org, repo)
				return nil
			})
		},
	}
	remove.Flags().BoolVar(&removeForce, "force", false, "skip the confirmation prompt")
	cmd.AddCommand(remove)

	cmd.AddCommand(&cobra.Command{
		Use:   "list [org/repo]",
		Short: "List graphs and their triple counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo := "", ""
			if len(args) == 1 {
				var err error
				org, repo, err = splitOrgRepo(args[0])
				if err != nil {
					return err
				}
			}
			return withApp(storageRoot, func(app *App) error {
				infos, err := app.graphMgr.List(org, repo)
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					fmt.Println("No graphs")
					return nil
				}
				for _, info := range infos {
					fmt.Printf("%8d  %s\n", info.Triples, info.URI)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <org/repo> [version]",
		Short: "Show aggregated graph details",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return withApp(storageRoot, func(app *App) error {
				details, err := app.graphMgr.Show(org, repo, version)
				if err != nil {
					return err
				}
				fmt.Printf("Repository: %s/%s\n", details.Org, details.Repo)
				if details.Version != "" {
					fmt.Printf("Version:    %s\n", details.Version)
				}
				fmt.Printf("Graphs:     %d\n", details.TotalGraphs)
				fmt.Printf("Triples:    %d\n", details.TotalTriples)
				return nil
			})
		},
	})

	return cmd
}

func printReport(report *builder.Report) {
	fmt.Printf("Built %s/%s %s\n", report.Org, report.Repo, report.Version)
	fmt.Printf("  functions: %d, classes: %d, modules: %d\n",
		report.FunctionsFound, report.ClassesFound, report.ModulesFound)
	fmt.Printf("  commits: %d, developers: %d, change events: %d\n",
		report.CommitsAnalyzed, report.DevelopersProfiled, report.EventsGenerated)
	fmt.Printf("  graphs: %d, triples written: %d, elapsed: %s\n",
		report.GraphsWritten, report.TriplesWritten, report.Duration.Round(time.Millisecond))
	for _, warning := range report.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}
