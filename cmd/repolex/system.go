package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/config"
	"github.com/c360studio/repolex/metrics"
)

func systemCmd(storageRoot *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect system state and configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(storageRoot, func(app *App) error {
				graphs, err := app.store.ListGraphs("")
				if err != nil {
					return err
				}
				total := 0
				for _, uri := range graphs {
					n, err := app.store.CountTriples(uri)
					if err != nil {
						return err
					}
					total += n
				}
				records, err := app.repoMgr.List()
				if err != nil {
					return err
				}

				fmt.Printf("Storage root:  %s\n", app.cfg.StorageRoot)
				fmt.Printf("Repositories:  %d\n", len(records))
				fmt.Printf("Graphs:        %d\n", len(graphs))
				fmt.Printf("Triples:       %d\n", total)
				printMetrics()
				return nil
			})
		},
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(storageRoot, func(app *App) error {
				data, err := json.MarshalIndent(app.cfg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			})
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one option; invalid values keep the prior config",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(storageRoot, func(app *App) error {
				updated := *app.cfg
				if err := applyOption(&updated, args[0], args[1]); err != nil {
					return err
				}
				if err := config.NewLoader(app.logger).Save(&updated); err != nil {
					return err
				}
				fmt.Printf("Set %s = %s\n", args[0], args[1])
				return nil
			})
		},
	})

	cmd.AddCommand(configCmd)
	return cmd
}

// applyOption maps a snake_case option name onto the config struct.
func applyOption(cfg *config.Config, key, value string) error {
	switch key {
	case "auth_token":
		cfg.AuthToken = value
	case "log_level":
		cfg.LogLevel = value
	case "processing_timeout_seconds":
		return setInt(&cfg.ProcessingTimeoutSeconds, value)
	case "max_file_size_mb":
		return setInt(&cfg.MaxFileSizeMB, value)
	case "max_concurrent_parsers":
		return setInt(&cfg.MaxConcurrentParsers, value)
	case "query_timeout_seconds":
		return setInt(&cfg.QueryTimeoutSeconds, value)
	case "require_confirmation_for_destructive":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return apperror.New(apperror.KindConfiguration,
				fmt.Sprintf("%s expects true or false, got %q", key, value))
		}
		cfg.RequireConfirmationForDestructive = b
	default:
		return apperror.New(apperror.KindConfiguration, fmt.Sprintf("unknown option %q", key))
	}
	return nil
}

func setInt(target *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return apperror.New(apperror.KindConfiguration,
			fmt.Sprintf("expected an integer, got %q", value))
	}
	*target = n
	return nil
}

// printMetrics renders the process-local prometheus counters.
func printMetrics() {
	families, err := metrics.Registry.Gather()
	if err != nil || len(families) == 0 {
		return
	}
	fmt.Println("Session metrics:")
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := 0.0
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				value = float64(metric.GetHistogram().GetSampleCount())
			}
			if value == 0 {
				continue
			}
			fmt.Printf("  %s%s = %g\n", family.GetName(), labelString(metric.GetLabel()), value)
		}
	}
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	s := "{"
	for i, pair := range pairs {
		if i > 0 {
			s += ","
		}
		s += pair.GetName() + "=" + pair.GetValue()
	}
	return s + "}"
}
