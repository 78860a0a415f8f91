package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drinktab/core"
	"drinktab/engine"
)

func usersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(createUserCmd(opts))
	cmd.AddCommand(listUsersCmd(opts))
	cmd.AddCommand(showUserCmd(opts))
	return cmd
}

func createUserCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a user with an empty tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				u, err := svc.CreateUser(ctx, core.UserID(args[0]), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.ID, u.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	return cmd
}

func listUsersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				ids, err := svc.ListUsers(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tNAME\tBALANCE\tBADGES")
				for _, id := range ids {
					u, err := svc.GetUser(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", u.ID, u.Name, u.Balance, len(u.Badges))
				}
				return nil
			})
		},
	}
}

func showUserCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user's balance, badges and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				u, err := svc.GetUser(ctx, core.UserID(args[0]))
				if err != nil {
					return err
				}
				txs, err := svc.Transactions(ctx, u.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\nbalance: %s\n", u.ID, u.Name, u.Balance)
				for _, b := range u.Badges {
					fmt.Fprintf(out, "  * %s  %s\n", b.Name, b.UnlockedAt.In(svc.Location()).Format("2006-01-02 15:04"))
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tTIME\tTYPE\tITEM\tAMOUNT")
				for _, tx := range tail(txs, 10) {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", tx.ID, tx.CreatedAt.In(svc.Location()).Format("2006-01-02 15:04"), tx.Type, tx.Item, tx.Amount)
				}
				return nil
			})
		},
	}
}

func tail(txs []core.Transaction, n int) []core.Transaction {
	if len(txs) <= n {
		return txs
	}
	return txs[len(txs)-n:]
}
