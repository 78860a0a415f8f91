package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"drinktab/analytics"
	"drinktab/core"
	"drinktab/engine"
)

func statsCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats <user>",
		Short: "Summarize a user's drinking habits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				start, err := parseDate(from, svc.Location())
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				end, err := parseDate(to, svc.Location())
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				s, err := svc.Stats(ctx, core.UserID(args[0]), start, end)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "purchases: %d (%s)\ndeposits: %d (%s)\n", s.Purchases, s.Spent, s.Deposits, s.Deposited)
				w := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
				for i, n := range s.ByWeekday {
					fmt.Fprintf(w, "%s\t%d\n", analytics.WeekdayLabels[i], n)
				}
				_ = w.Flush()
				for _, ic := range s.TopItems {
					fmt.Fprintf(out, "top: %s x%d\n", ic.Item, ic.Count)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "last bound (YYYY-MM-DD), exclusive")
	return cmd
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, v, loc)
}

func badgesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "badges [user]",
		Short: "List all achievements, marking those the user has unlocked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				unlocked := map[string]struct{}{}
				if len(args) == 1 {
					u, err := svc.GetUser(ctx, core.UserID(args[0]))
					if err != nil {
						return err
					}
					unlocked = core.BadgeIDs(u.Badges)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				for _, r := range svc.Rules() {
					mark := " "
					if _, ok := unlocked[r.ID]; ok {
						mark = "x"
					}
					fmt.Fprintf(w, "[%s]\t%s\t%s\n", mark, r.Name, r.Description)
				}
				return nil
			})
		},
	}
}
