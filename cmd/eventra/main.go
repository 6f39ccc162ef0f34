package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/alert"
	"github.com/smallbiznis/eventra/internal/audit"
	"github.com/smallbiznis/eventra/internal/authorization"
	"github.com/smallbiznis/eventra/internal/clock"
	"github.com/smallbiznis/eventra/internal/config"
	"github.com/smallbiznis/eventra/internal/dashboard"
	"github.com/smallbiznis/eventra/internal/migration"
	"github.com/smallbiznis/eventra/internal/observability"
	"github.com/smallbiznis/eventra/internal/provisioning"
	"github.com/smallbiznis/eventra/internal/ratelimit"
	"github.com/smallbiznis/eventra/internal/scheduler"
	"github.com/smallbiznis/eventra/internal/server"
	"github.com/smallbiznis/eventra/internal/sponsorship"
	"github.com/smallbiznis/eventra/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "eventra",
		Short:   "Eventra CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed the default organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run admin UI + API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run background scheduler workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start admin UI + API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

// runServe starts the full server. server.Module carries config and every
// domain module, and scheduler.Module piggybacks on those providers so the
// default deployment runs jobs in-process.
func runServe() {
	app := fx.New(
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

// runScheduler runs the job loop without the HTTP surface. It only wires the
// domain modules the jobs touch.
func runScheduler() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		audit.Module,
		authorization.Module,
		sponsorship.Module,
		alert.Module,
		dashboard.Module,
		provisioning.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
