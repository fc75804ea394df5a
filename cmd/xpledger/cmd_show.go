package main

import (
	"context"
	"xp-ledger/internal/presenter"
	"xp-ledger/internal/service"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Download the attack log and print the ledger",
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(ctx context.Context, svc *service.LedgerService) error {
		snap, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		return presenter.WriteLedger(cmd.OutOrStdout(), &snap.Result, nil)
	})
}
