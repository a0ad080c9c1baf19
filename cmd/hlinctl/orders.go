package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/dukerupert/hlin/internal/mongo"
	"github.com/dukerupert/hlin/internal/postgres"
)

func ordersCmd(load func() (*Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect recorded orders",
	}

	var owner string
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List a shopper's orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, closeStore, err := openOrderStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			orders, err := store.ListByOwner(ctx, owner)
			if err != nil {
				return fmt.Errorf("list orders: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(orders)
			}
			return printOrders(cmd.OutOrStdout(), orders)
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "identity id of the shopper")
	list.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	_ = list.MarkFlagRequired("owner")

	cmd.AddCommand(list)
	return cmd
}

func openOrderStore(ctx context.Context, cfg *Config) (domain.OrderStore, func(), error) {
	switch cfg.OrderStore {
	case "mongo":
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return mongo.NewOrderStore(db), func() { db.Client().Disconnect(context.Background()) }, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewOrderStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown order store %q", cfg.OrderStore)
	}
}

func printOrders(w io.Writer, orders []domain.Order) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tTOTAL\tAUTHORIZATION")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
			o.ID,
			o.CreatedAt.Format(time.RFC3339),
			o.Status,
			o.TotalAmount.StringFixed(2),
			o.Currency,
			o.PaymentAuthorizationID,
		)
	}
	return tw.Flush()
}
