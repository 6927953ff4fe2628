package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/activitymap"
	"github.com/goliatone/go-membership/config"
)

var rootCmd = &cobra.Command{
	Use:           "membershipctl",
	Short:         "Manage members, tags and memberships",
	Long:          `Administer the membership store. Configuration is read from MEMBERSHIP_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("dsn", "", "Database DSN, overrides MEMBERSHIP_DSN")
	rootCmd.PersistentFlags().String("driver", "", "Database driver (sqlite or postgres), overrides MEMBERSHIP_DB_DRIVER")
}

// app holds the wired dependencies shared by subcommands
type app struct {
	specs   *config.EnvSpec
	zap     *zap.SugaredLogger
	logger  membership.Logger
	db      *bun.DB
	metrics *membership.Metrics
	repo    membership.RepositoryManager
}

func bootstrap(cmd *cobra.Command) (*app, error) {
	specs, err := config.Load()
	if err != nil {
		return nil, err
	}

	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		specs.DSN = dsn
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		specs.DBDriver = driver
	}

	zl, err := config.NewLogger(specs.LogLevel, specs.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger := membership.NewZapLogger(zl)
	logger.Debug("env vars: %v", specs)

	db, err := membership.OpenDB(cmd.Context(), specs.DBDriver, specs.DSN)
	if err != nil {
		return nil, err
	}

	metrics := membership.NewMetrics(prometheus.DefaultRegisterer)

	repo := membership.NewRepositoryManager(db,
		membership.WithLogger(logger),
		membership.WithMetrics(metrics),
		membership.WithTracer(otel.Tracer("github.com/goliatone/go-membership")),
		membership.WithPasswordHashCost(specs.BcryptCost),
		membership.WithActivitySink(membership.ActivitySinkFunc(func(_ context.Context, event membership.ActivityEvent) error {
			zl.Infow("activity", activitymap.Normalize(event, activitymap.WithActorFallback("membershipctl")).Fields()...)
			return nil
		})),
	)
	repo.MustValidate()

	return &app{
		specs:   specs,
		zap:     zl,
		logger:  logger,
		db:      db,
		metrics: metrics,
		repo:    repo,
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.zap.Sync()
}

func (a *app) memberByEmail(ctx context.Context, email string) (*membership.Member, error) {
	return a.repo.Members().GetByEmail(ctx, email)
}

// parseAt reads the --at flag, defaulting to now
func parseAt(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("at")
	if raw == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", raw, err)
	}
	return at, nil
}
