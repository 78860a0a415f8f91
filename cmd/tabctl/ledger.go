package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"drinktab/core"
	"drinktab/engine"
)

func purchaseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <user> <item>",
		Short: "Book one item on a user's tab",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				r, err := svc.Purchase(ctx, core.UserID(args[0]), core.ItemID(args[1]))
				if err != nil {
					return err
				}
				printReceipt(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
}

func depositCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <user> <amount>",
		Short: "Credit money to a user's tab, e.g. 20.00",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[1])
			if err != nil {
				return err
			}
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				r, err := svc.Deposit(ctx, core.UserID(args[0]), amount)
				if err != nil {
					return err
				}
				printReceipt(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
}

func evaluateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <user>",
		Short: "Re-check all achievements without a new transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				added, err := svc.EvaluateAchievements(ctx, core.UserID(args[0]))
				if err != nil {
					return err
				}
				if len(added) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no new achievements")
					return nil
				}
				printUnlocked(cmd.OutOrStdout(), added)
				return nil
			})
		},
	}
}

func printReceipt(w io.Writer, r engine.Receipt) {
	fmt.Fprintf(w, "#%d %s %s, balance %s\n", r.Transaction.ID, r.Transaction.Type, r.Transaction.Amount, r.Balance)
	printUnlocked(w, r.Unlocked)
}

func printUnlocked(w io.Writer, badges []core.Badge) {
	for _, b := range badges {
		fmt.Fprintf(w, "unlocked: %s (%s)\n", b.Name, b.Description)
	}
}
