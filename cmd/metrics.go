package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/spacedrep"
)

// scrapeTimeout bounds the database queries of one scrape.
const scrapeTimeout = 10 * time.Second

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve deck and review metrics for Prometheus",
	Long: `Serve metrics in the Prometheus exposition format on /metrics.
Deck gauges and review counters are computed from the database on every
scrape, so reviews committed by other memora processes are included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		return withEnv(cmd, func(ctx context.Context, e *env) error {
			if err := registerStored(ctx, e); err != nil {
				return err
			}
			return serveMetrics(ctx, e, listen)
		})
	},
}

func init() {
	metricsCmd.Flags().String("listen", ":9464", "Address to listen on")
}

// registerDeck publishes deck gauges computed from the database on scrape.
func registerDeck(ctx context.Context, e *env) error {
	err := e.metrics.RegisterDeck(func() (spacedrep.DeckStats, error) {
		sctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
		defer cancel()
		return e.svc.Stats(sctx)
	})
	if err != nil {
		return fmt.Errorf("register deck metrics: %w", err)
	}
	return nil
}

// registerStored publishes the deck gauges and the review series, both read
// from the database on scrape.
func registerStored(ctx context.Context, e *env) error {
	if err := registerDeck(ctx, e); err != nil {
		return err
	}
	err := e.metrics.RegisterHistory(func() ([]spacedrep.ReviewLog, error) {
		sctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
		defer cancel()
		return e.svc.AllReviews(sctx)
	})
	if err != nil {
		return fmt.Errorf("register review metrics: %w", err)
	}
	return nil
}

// serveMetrics serves e's registry on /metrics until ctx is done.
func serveMetrics(ctx context.Context, e *env, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	e.logger.Info("serving metrics", "addr", listen, "path", "/metrics")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	e.logger.Info("metrics server stopped")
	return nil
}
