package root

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/ui"
)

func newCoinsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coins",
		Short: "Show the coin balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := e.shop.Balance(ctx, e.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Balance", ui.Coins(b.Coins)))
			return nil
		},
	}
}

func newItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List accessories for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := e.shop.Catalog(ctx, e.userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconBag, "Store"))
			for _, it := range entries {
				status := ui.Coins(it.Price)
				if it.Owned {
					status = ui.Good.Render("owned")
				}
				fmt.Fprintf(out, "- %-16s %-16s %s\n", ui.Key.Render(it.ID), it.Name, status)
			}
			return nil
		},
	}
}

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <item-id>",
		Short: "Buy an accessory with coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			b, err := e.shop.Purchase(ctx, e.userID, args[0])
			switch {
			case errors.Is(err, internal.ErrItemNotFound):
				return fmt.Errorf("no item %q; see `sleepcat items`", args[0])
			case err != nil:
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Good.Render("bought "+args[0]))
			fmt.Fprintln(out, ui.LabelValue("Balance", ui.Coins(b.Coins)))
			return nil
		},
	}
}
