package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/hlin/internal/billing"
	"github.com/dukerupert/hlin/internal/domain"
)

func paymentsCmd(load func() (*Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Query the payment gateway",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status [authorization-id]",
		Short: "Show the gateway's current status for an authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.StripeSecretKey == "" {
				return fmt.Errorf("STRIPE_SECRET_KEY is required")
			}

			provider, err := billing.NewStripeProvider(billing.StripeConfig{
				APIKey:         cfg.StripeSecretKey,
				WebhookSecret:  "unused",
				TimeoutSeconds: 15,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()

			return printPaymentStatus(ctx, cmd, provider, args[0])
		},
	})

	return cmd
}

func printPaymentStatus(ctx context.Context, cmd *cobra.Command, provider billing.Provider, id string) error {
	pi, err := provider.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{PaymentIntentID: id})
	if err != nil {
		return fmt.Errorf("retrieve authorization %s: %w", id, err)
	}

	auth := pi.Authorization()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authorization: %s\n", auth.ID)
	fmt.Fprintf(out, "Gateway status: %s\n", pi.Status)
	fmt.Fprintf(out, "Attempt state: %s\n", domain.StateForStatus(auth.Status))
	fmt.Fprintf(out, "Amount: %d %s (minor units)\n", auth.AmountMinor, auth.Currency)
	if owner := auth.Metadata["user_id"]; owner != "" {
		fmt.Fprintf(out, "Owner: %s\n", owner)
	}
	if auth.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", auth.LastError)
	}
	return nil
}
