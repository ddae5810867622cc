package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/review"
	"github.com/abhisek/memora/internal/spacedrep"
)

var reviewCmd = &cobra.Command{
	Use:   "review <id> <rating>",
	Short: "Rate a recall of an item",
	Long: `Rate a recall of an item and schedule its next review.

The id may be a unique prefix. The rating is again, hard, good or easy,
or its grade 1-4.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := spacedrep.ParseRating(args[1])
		if err != nil {
			return err
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			it, err := e.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := e.svc.Review(ctx, it.ID, rating)
			if err != nil {
				return err
			}

			after := out.Log.StateAfter
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", it.ID.String()[:8], it.Label)
			fmt.Fprintf(cmd.OutOrStdout(), "rated %s: %s → %s, next review %s (%s)\n",
				rating,
				out.Log.StateBefore.State,
				after.State,
				after.Due.Local().Format(timeLayout),
				humanDays(after.Due.Sub(out.Log.ReviewedAt)),
			)
			return nil
		})
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Show what each rating would do, without saving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			it, err := e.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			outcomes, err := e.svc.Preview(ctx, it.ID)
			if err != nil {
				return err
			}
			recall, err := e.svc.Retrievability(it)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n", it.ID.String()[:8], it.Label)
			fmt.Fprintf(out, "state %s, recall probability %.1f%%\n\n", it.State.State, recall*100)
			fmt.Fprintf(out, "%-6s  %-10s  %8s  %-16s  %9s  %10s\n",
				"Rating", "State", "Interval", "Due", "Stability", "Difficulty")
			fmt.Fprintln(out, strings.Repeat("─", 68))
			for _, r := range spacedrep.Ratings {
				next := outcomes[r]
				fmt.Fprintf(out, "%-6s  %-10s  %7dd  %-16s  %9.2f  %10.2f\n",
					r, next.State, next.ScheduledDays,
					next.Due.Local().Format(timeLayout),
					next.Stability, next.Difficulty,
				)
			}
			return nil
		})
	},
}

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule [<id>]",
	Short: "Recompute item states from their review history",
	Long: `Recompute item states by replaying their review history through the
current scheduler. Run it after changing the parameter table or the
scheduler settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		switch {
		case all && len(args) > 0:
			return errors.New("use an item id or --all, not both")
		case !all && len(args) == 0:
			return errors.New("missing item id (or --all)")
		}

		return withEnv(cmd, func(ctx context.Context, e *env) error {
			if all {
				n, err := e.svc.RescheduleAll(ctx, concurrency)
				if err != nil {
					return fmt.Errorf("rescheduled %d items before failing: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rescheduled %d items\n", n)
				return nil
			}

			it, err := e.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := e.svc.Reschedule(ctx, it.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s: %s, next review %s\n",
				updated.ID.String()[:8], updated.Label, updated.State.State,
				updated.State.Due.Local().Format(timeLayout))
			return nil
		})
	},
}

func init() {
	rescheduleCmd.Flags().Bool("all", false, "Reschedule every item")
	rescheduleCmd.Flags().Int("concurrency", review.DefaultConcurrency, "Items rescheduled in parallel with --all")
}
