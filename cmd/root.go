package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/config"
	"github.com/abhisek/memora/internal/metrics"
	"github.com/abhisek/memora/internal/review"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "memora",
	Short: "Spaced-repetition scheduler",
	Long: `memora schedules reviews of learning items with an FSRS-6 memory model.

Items are opaque labels. Rate each recall with again, hard, good or easy and
memora decides when you should see the item next.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints a readable error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides MEMORA_CONFIG env var)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MEMORA_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rescheduleCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(versionCmd)
}

// describeError hides internals behind a short explanation for the errors a
// user can act on.
func describeError(err error) string {
	switch {
	case errors.Is(err, spacedrep.ErrInvalidState):
		return fmt.Sprintf("stored data is corrupted (%v)", err)
	case errors.Is(err, spacedrep.ErrConfig):
		return fmt.Sprintf("invalid configuration (%v)", err)
	case errors.Is(err, spacedrep.ErrInvalidRating):
		return "rating must be one of again, hard, good, easy or 1-4"
	case errors.Is(err, review.ErrAmbiguousID):
		return fmt.Sprintf("%v; use a longer id prefix", err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("no such item (%v)", err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Sprintf("item kept changing while reviewing, try again (%v)", err)
	}
	return err.Error()
}

// env holds what the data commands share once configuration is resolved.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	svc     *review.Service
	metrics *metrics.Metrics
}

// loadConfig resolves the config file and applies the --log-level flag.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flagPath, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Resolve(flagPath)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		logger.Debug("config loaded", "path", path)
	}
	return cfg, logger, nil
}

// openEnv loads the configuration, opens the store and builds the review
// service. Callers must Close the env.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return nil, err
	}
	sched, err := spacedrep.NewScheduler(schedCfg)
	if err != nil {
		return nil, err
	}

	dsn, err := resolveDSN(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database: %w", err)
	}
	st, err := store.OpenDriver(cfg.Database.Driver, dsn, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", "driver", cfg.Database.Driver)

	m := metrics.NewMetrics()
	svc := review.NewService(st.ItemRepo(), sched,
		review.WithLogger(logger),
		review.WithMetrics(m),
	)
	return &env{cfg: cfg, logger: logger, store: st, svc: svc, metrics: m}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// withEnv runs fn with an opened env and closes it afterwards.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(cmd.Context(), e)
}

// resolveDSN returns the database location: the --db flag first, then for
// sqlite MEMORA_DB, the configured dsn and the default XDG path.
func resolveDSN(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if cfg.Database.Driver == config.DriverSQLite {
			return p, store.EnsureDir(p)
		}
		return p, nil
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return cfg.Database.DSN, nil
	}
	if os.Getenv("MEMORA_DB") == "" && cfg.Database.DSN != "" {
		return cfg.Database.DSN, store.EnsureDir(cfg.Database.DSN)
	}
	return store.DefaultDBPath()
}
