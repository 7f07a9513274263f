package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/repolex/queries"
	"github.com/c360studio/repolex/store/sparql"
)

func queryCmd(storageRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SPARQL queries against the store",
	}

	var timeoutSeconds int
	raw := &cobra.Command{
		Use:   "sparql <query>",
		Short: "Execute a read-only SPARQL query (SELECT, ASK, CONSTRUCT)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(storageRoot, func(app *App) error {
				res, err := app.store.Query(c.Context(), args[0],
					time.Duration(timeoutSeconds)*time.Second)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	raw.Flags().IntVar(&timeoutSeconds, "timeout", 0, "query timeout in seconds (0 = configured default)")
	cmd.AddCommand(raw)

	run := &cobra.Command{
		Use:   "run <name> <org/repo> [version]",
		Short: "Execute a named query from the bank",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(c *cobra.Command, args []string) error {
			org, repo, err := splitOrgRepo(args[1])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 3 {
				version = args[2]
			}
			return withApp(storageRoot, func(app *App) error {
				bank, err := queries.Load()
				if err != nil {
					return err
				}
				rendered, err := bank.Render(args[0], org, repo, version)
				if err != nil {
					return err
				}
				res, err := app.store.Query(c.Context(), rendered, 0)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	cmd.AddCommand(run)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the named queries",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			bank, err := queries.Load()
			if err != nil {
				return err
			}
			for _, q := range bank.List() {
				fmt.Printf("%-24s %s\n", q.Name, q.Description)
			}
			return nil
		},
	})

	return cmd
}

func printResult(res *sparql.Result) {
	if res.Triples != nil {
		for _, t := range res.Triples {
			fmt.Println(t.NTriples())
		}
		return
	}
	if len(res.Vars) == 0 {
		fmt.Println(res.Bool)
		return
	}

	fmt.Println(strings.Join(res.Vars, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(res.Vars))
		for i, v := range res.Vars {
			if t, ok := row[v]; ok {
				cells[i] = sparql.FormatTerm(t)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}
