package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smallbiznis/spotlight/internal/app"
	"github.com/smallbiznis/spotlight/internal/migration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const stopTimeout = 15 * time.Second

// flagBinding maps a CLI flag onto the environment variable config.Load reads.
type flagBinding struct {
	flag  string
	env   string
	usage string
}

var bindings = []flagBinding{
	{flag: "http-addr", env: "HTTP_ADDR", usage: "HTTP listen address"},
	{flag: "database-type", env: "DATABASE_TYPE", usage: "postgres or sqlite"},
	{flag: "database-host", env: "DATABASE_HOST", usage: "postgres host"},
	{flag: "database-port", env: "DATABASE_PORT", usage: "postgres port"},
	{flag: "database-name", env: "DATABASE_NAME", usage: "postgres database"},
	{flag: "database-path", env: "DATABASE_PATH", usage: "sqlite file path"},
	{flag: "redis-addr", env: "REDIS_ADDR", usage: "redis address for locks and rate limits"},
	{flag: "catalog-config", env: "CATALOG_CONFIG_PATH", usage: "catalog YAML file to sync and watch"},
	{flag: "log-level", env: "LOG_LEVEL", usage: "log level"},
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spotlight",
		Short:         "Featured ad placements and credit allocation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	for _, b := range bindings {
		cmd.PersistentFlags().String(b.flag, "", b.usage)
	}

	cmd.AddCommand(
		newRunCommand("serve", "Serve the HTTP API", app.API),
		newRunCommand("scheduler", "Run status sweeps and the outbox relay", app.Scheduler),
		newRunCommand("all", "Run the API and the scheduler in one process", app.All),
		newMigrateCommand(),
	)
	return cmd
}

// loadConfig pushes explicitly set flags into the environment so every
// fx module sees the same values through config.Load.
func loadConfig(cmd *cobra.Command) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, b := range bindings {
		if err := viper.BindEnv(b.flag, b.env); err != nil {
			return fmt.Errorf("bind env %s: %w", b.env, err)
		}
		if err := viper.BindPFlag(b.flag, cmd.Flags().Lookup(b.flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
		value := strings.TrimSpace(viper.GetString(b.flag))
		if value == "" {
			continue
		}
		if err := os.Setenv(b.env, value); err != nil {
			return fmt.Errorf("set %s: %w", b.env, err)
		}
	}
	return nil
}

func newRunCommand(use, short string, graph func() fx.Option) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runUntilDone(ctx, fx.New(graph()))
		},
	}
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(*gorm.DB) error { return nil }, migration.Module)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(conn *gorm.DB) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return migration.Rollback(sqlDB, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(conn *gorm.DB) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				v, dirty, err := migration.Version(sqlDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

// withStore starts a database-only graph, runs fn and shuts it down.
func withStore(ctx context.Context, fn func(*gorm.DB) error, extra ...fx.Option) error {
	var conn *gorm.DB
	opts := append([]fx.Option{app.Store(), fx.Populate(&conn), fx.NopLogger}, extra...)
	application := fx.New(opts...)
	if err := application.Err(); err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	runErr := fn(conn)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
