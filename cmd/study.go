package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/app"
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Study due items in the terminal UI",
	Long: `Study due items in the terminal UI.

With --metrics-listen the session also serves /metrics, where the review
counters follow the reviews of this session as they are committed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		listen, _ := cmd.Flags().GetString("metrics-listen")
		// The terminal UI owns the screen; log lines would garble it.
		cmd.SetErr(io.Discard)

		return withEnv(cmd, func(ctx context.Context, e *env) error {
			if listen == "" {
				return app.Run(e.svc, limit)
			}

			if err := registerDeck(ctx, e); err != nil {
				return err
			}
			srvCtx, stop := context.WithCancel(ctx)
			defer stop()
			srvErr := make(chan error, 1)
			go func() { srvErr <- serveMetrics(srvCtx, e, listen) }()

			runErr := app.Run(e.svc, limit)
			stop()
			if err := <-srvErr; err != nil && runErr == nil {
				return err
			}
			return runErr
		})
	},
}

func init() {
	studyCmd.Flags().IntP("limit", "n", 0, "Maximum items per study session (0 = all due)")
	studyCmd.Flags().String("metrics-listen", "", "Also serve /metrics on this address during the session")
}
