package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
)

const (
	timeLayout = "2006-01-02 15:04"
	labelWidth = 32
)

var addCmd = &cobra.Command{
	Use:   "add <label>...",
	Short: "Add a learning item",
	Long:  "Add a learning item. The arguments are joined into one label. The new item is due immediately.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			it, err := e.svc.Add(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s  %s\n", it.ID, it.Label)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items ordered by due time",
	RunE: func(cmd *cobra.Command, args []string) error {
		stateVal, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		opts := store.ListOpts{Limit: limit}
		if stateVal != "" {
			st, err := spacedrep.ParseState(stateVal)
			if err != nil {
				return err
			}
			opts.State = st
		}

		return withEnv(cmd, func(ctx context.Context, e *env) error {
			items, err := e.svc.List(ctx, opts)
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items, "No items found.")
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an item and its review history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			it, err := e.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			if err := e.svc.Delete(ctx, it.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s  %s\n", it.ID, it.Label)
			return nil
		})
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List items due now, most overdue first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			items, err := e.svc.Due(ctx, limit)
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), items, "Nothing is due.")
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deck statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			stats, err := e.svc.Stats(ctx)
			if err != nil {
				return err
			}
			reviews, err := e.svc.ReviewCount(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					spacedrep.DeckStats
					Reviews int `json:"reviews"`
				}{stats, reviews})
			}

			fmt.Fprintf(out, "%-12s %6d\n", "Items", stats.Total)
			fmt.Fprintln(out, strings.Repeat("─", 19))
			fmt.Fprintf(out, "%-12s %6d\n", "New", stats.New)
			fmt.Fprintf(out, "%-12s %6d\n", "Learning", stats.Learning)
			fmt.Fprintf(out, "%-12s %6d\n", "Review", stats.Review)
			fmt.Fprintf(out, "%-12s %6d\n", "Relearning", stats.Relearning)
			fmt.Fprintln(out, strings.Repeat("─", 19))
			fmt.Fprintf(out, "%-12s %6d\n", "Due", stats.Due)
			fmt.Fprintf(out, "%-12s %6d\n", "Overdue", stats.Overdue)
			fmt.Fprintf(out, "%-12s %6d\n", "Reviews", reviews)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the review history of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			it, err := e.svc.Find(ctx, args[0])
			if err != nil {
				return err
			}
			logs, err := e.svc.History(ctx, it.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n\n", it.ID, it.Label)
			if len(logs) == 0 {
				fmt.Fprintln(out, "No reviews yet.")
				return nil
			}

			fmt.Fprintf(out, "%-16s  %-6s  %-23s  %7s  %8s  %9s  %10s\n",
				"Reviewed", "Rating", "Transition", "Elapsed", "Interval", "Stability", "Difficulty")
			fmt.Fprintln(out, strings.Repeat("─", 91))
			for _, l := range logs {
				fmt.Fprintf(out, "%-16s  %-6s  %-23s  %6dd  %7dd  %9.2f  %10.2f\n",
					l.ReviewedAt.Local().Format(timeLayout),
					l.Rating,
					fmt.Sprintf("%s → %s", l.StateBefore.State, l.StateAfter.State),
					l.ElapsedDays,
					l.StateAfter.ScheduledDays,
					l.StateAfter.Stability,
					l.StateAfter.Difficulty,
				)
			}
			return nil
		})
	},
}

func init() {
	listCmd.Flags().String("state", "", "Only list items in this state (new, learning, review, relearning)")
	listCmd.Flags().Int("limit", 0, "Maximum number of items (0 = all)")
	dueCmd.Flags().IntP("limit", "n", 0, "Maximum number of items (0 = all)")
	statsCmd.Flags().Bool("json", false, "Print statistics as JSON")
}

// printItems writes a table of items, or empty when there are none.
func printItems(out io.Writer, items []*store.Item, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(out, empty)
		return
	}

	fmt.Fprintf(out, "%-8s  %-10s  %-16s  %9s  %5s  %4s  %6s  %s\n",
		"ID", "State", "Due", "Stability", "Diff", "Reps", "Lapses", "Label")
	fmt.Fprintln(out, strings.Repeat("─", 100))
	for _, it := range items {
		st := it.State
		fmt.Fprintf(out, "%-8s  %-10s  %-16s  %9.2f  %5.2f  %4d  %6d  %s\n",
			it.ID.String()[:8],
			st.State,
			st.Due.Local().Format(timeLayout),
			st.Stability,
			st.Difficulty,
			st.Reps,
			st.Lapses,
			truncate(it.Label, labelWidth),
		)
	}
	fmt.Fprintf(out, "\n%d items\n", len(items))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// humanDays renders a whole number of days until due.
func humanDays(d time.Duration) string {
	days := int(d.Round(time.Hour).Hours() / 24)
	switch {
	case days <= 0:
		return "now"
	case days == 1:
		return "in 1 day"
	}
	return fmt.Sprintf("in %d days", days)
}
