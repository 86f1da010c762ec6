package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/eroom/internal/clock"
	"github.com/smallbiznis/eroom/internal/config"
	"github.com/smallbiznis/eroom/internal/migration"
	"github.com/smallbiznis/eroom/internal/observability"
	obsmetrics "github.com/smallbiznis/eroom/internal/observability/metrics"
	"github.com/smallbiznis/eroom/internal/scheduler"
	"github.com/smallbiznis/eroom/internal/server"
	"github.com/smallbiznis/eroom/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const oneShotTimeout = 10 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:           "eroom",
		Short:         "Room rental contracts, pricing and tenant notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		schedulerCmd(),
		sweepCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func core() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Domains,
	)
}

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, plus the scheduler loop when SCHEDULER_ENABLED is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				core(),
				server.Module,
				scheduler.Module,
				scheduler.Loop,
			}
			if !skipMigrate {
				opts = append(opts, migration.Module)
			}
			fx.New(opts...).Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	return cmd
}

func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run only the background jobs loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(
				core(),
				scheduler.Module,
				fx.Decorate(func(cfg config.Config) config.Config {
					cfg.Scheduler.Enabled = true
					return cfg
				}),
				scheduler.Loop,
			).Run()
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run every scheduler job once for today and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched *scheduler.Scheduler
				cfg   config.Config
				log   *zap.Logger
			)
			return runOnce(cmd.Context(), []fx.Option{
				core(),
				scheduler.Module,
				fx.Populate(&sched, &cfg, &log),
			}, func(ctx context.Context) error {
				runErr := sched.RunOnce(ctx)
				if pusher := obsmetrics.NewPusher(cfg, log); pusher != nil {
					if err := pusher.Push(ctx, prometheus.DefaultGatherer); err != nil {
						log.Warn("metrics push failed", zap.Error(err))
					}
				}
				return runErr
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed default SMS templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), []fx.Option{
				core(),
				migration.Module,
			}, nil)
		},
	}
}

// runOnce starts the app, runs fn, and stops the app again.
func runOnce(parent context.Context, opts []fx.Option, fn func(ctx context.Context) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, oneShotTimeout)
	defer cancel()

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(ctx)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
