// Package main is the entry point for the Taskboard server.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/taskboard/backend/internal/config"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// Flags shared by every command.
var (
	configPath string
	envFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Taskboard - projects, tasks and a unified calendar timeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with TASKBOARD_* overrides")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(healthCheckCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "taskboard.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("listen:                 %s\n", cfg.Listen)
			fmt.Printf("data_dir:               %s\n", cfg.DataDir)
			fmt.Printf("static_dir:             %s\n", cfg.StaticDir)
			fmt.Printf("roster_cache_ttl:       %s\n", cfg.RosterCacheTTL)
			fmt.Printf("reminder_cron:          %s\n", cfg.ReminderCron)
			fmt.Printf("reminder_horizon_hours: %d\n", cfg.ReminderHorizonHours)
			fmt.Printf("week_start:             %s\n", cfg.WeekStart)
			fmt.Printf("timezone:               %s\n", cfg.Timezone)
			return nil
		},
	})

	return cmd
}
