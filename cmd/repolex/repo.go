package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func repoCmd(storageRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage tracked repositories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <org/repo>",
		Short: "Clone a repository and discover its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			return withApp(storageRoot, func(app *App) error {
				record, err := app.repoMgr.Add(c.Context(), org, repo, progressPrinter())
				if err != nil {
					return err
				}
				fmt.Printf("Added %s (status=%s)\n", record.OrgRepo(), record.Status)
				if len(record.Releases) > 0 {
					fmt.Printf("Releases: %s\n", strings.Join(record.Releases, ", "))
				} else {
					fmt.Println("Releases: none discovered")
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update <org/repo>",
		Short: "Fetch and report newly available versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			return withApp(storageRoot, func(app *App) error {
				record, fresh, err := app.repoMgr.Update(c.Context(), org, repo)
				if err != nil {
					return err
				}
				fmt.Printf("Updated %s: %d releases known\n", record.OrgRepo(), len(record.Releases))
				if len(fresh) > 0 {
					fmt.Printf("New: %s\n", strings.Join(fresh, ", "))
				}
				return nil
			})
		},
	})

	var force bool
	remove := &cobra.Command{
		Use:   "remove <org/repo>",
		Short: "Delete checkouts and all graphs of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			return withApp(storageRoot, func(app *App) error {
				if !confirmOrForce(app, force,
					fmt.Sprintf("Removing %s/%s and all its graphs", org, repo)) {
					fmt.Println("Aborted")
					return nil
				}
				if err := app.repoMgr.Remove(c.Context(), org, repo, true); err != nil {
					return err
				}
				fmt.Printf("Removed %s/%s\n", org, repo)
				return nil
			})
		},
	}
	remove.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	cmd.AddCommand(remove)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked repositories",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(storageRoot, func(app *App) error {
				records, err := app.repoMgr.List()
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No repositories tracked")
					return nil
				}
				for _, record := range records {
					fmt.Printf("%-40s %-12s %d releases\n",
						record.OrgRepo(), record.Status, len(record.Releases))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <org/repo>",
		Short: "Show one repository's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[0])
			if err != nil {
				return err
			}
			return withApp(storageRoot, func(app *App) error {
				record, err := app.repoMgr.Show(org, repo)
				if err != nil {
					return err
				}
				fmt.Printf("Repository: %s\n", record.OrgRepo())
				fmt.Printf("Status:     %s\n", record.Status)
				fmt.Printf("URL:        %s\n", record.URL)
				fmt.Printf("Releases:   %s\n", strings.Join(record.Releases, ", "))
				if !record.ClonedAt.IsZero() {
					fmt.Printf("Cloned:     %s\n", record.ClonedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	})

	return cmd
}
