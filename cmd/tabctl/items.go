package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drinktab/core"
	"drinktab/engine"
)

func itemsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage the inventory",
	}
	cmd.AddCommand(putItemCmd(opts))
	cmd.AddCommand(listItemsCmd(opts))
	cmd.AddCommand(restockCmd(opts))
	return cmd
}

func putItemCmd(opts *rootOptions) *cobra.Command {
	var (
		name     string
		price    string
		stock    int64
		category string
	)
	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Create or replace an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.ParseMoney(price)
			if err != nil {
				return err
			}
			item := core.Item{ID: core.ItemID(args[0]), Name: name, Price: p, Stock: stock, Category: core.Category(category)}
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				if err := svc.PutItem(ctx, item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s at %s, %d in stock\n", item.ID, item.Price, item.Stock)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	cmd.Flags().StringVar(&price, "price", "", "price, e.g. 1.50")
	cmd.Flags().Int64Var(&stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&category, "category", string(core.CategoryOther), "alcohol, softdrink, food, snack or other")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func listItemsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				items, err := svc.ListItems(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", it.ID, it.Name, it.Category, it.Price, it.Stock)
				}
				return nil
			})
		},
	}
}

func restockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restock <id> <delta>",
		Short: "Adjust stock by delta (negative to write off)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}
			return withService(cmd, opts, func(ctx context.Context, svc *engine.TabService) error {
				it, err := svc.Restock(ctx, core.ItemID(args[0]), delta)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d in stock\n", it.ID, it.Stock)
				return nil
			})
		},
	}
}
