package main

import (
	"context"

	"github.com/spf13/cobra"
)

func syncCreditsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sync-credits",
		Short: "Append sale credits for verified sale lines not yet in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithServices(func(ctx context.Context, svc services) error {
				resp, err := svc.Ledger.SyncSaleCredits(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "sale lines scanned per run (1-1000)")
	return cmd
}
