package main

import (
	"context"
	"fmt"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/presenter"
	"xp-ledger/internal/service"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var paymentsLimit int

var payCmd = &cobra.Command{
	Use:   "pay <attacker-id>...",
	Short: "Mark attackers as paid up to their current balance",
	Long: `Refresh the ledger, then add each named attacker's current balance to
what they have paid, so their balance becomes zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPay,
}

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "List recorded payments, newest first",
	RunE:  runPayments,
}

func runPay(cmd *cobra.Command, args []string) error {
	ids, err := parseAttackerIDs(args)
	if err != nil {
		return err
	}

	return withService(cmd.Context(), func(ctx context.Context, svc *service.LedgerService) error {
		snap, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		next, err := svc.MarkPaid(ctx, snap.ID, ids)
		if err != nil {
			return err
		}
		return presenter.WriteLedger(cmd.OutOrStdout(), &next.Result, nil)
	})
}

func runPayments(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(ctx context.Context, svc *service.LedgerService) error {
		events, err := svc.PaymentHistory(ctx, paymentsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No payments recorded.")
			return nil
		}
		fmt.Fprintln(out, paymentsTable(events))
		return nil
	})
}

func paymentsTable(events []domain.PaymentEvent) string {
	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{
			e.PaidAt.Local().Format("2006-01-02 15:04"),
			e.AttackerID.String(),
			e.AttackerName,
			presenter.Money(e.Amount),
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("PAID AT", "ID", "NAME", "AMOUNT").
		Rows(rows...).
		String()
}

func parseAttackerIDs(args []string) ([]domain.PlayerID, error) {
	ids := make([]domain.PlayerID, 0, len(args))
	for _, arg := range args {
		id, err := domain.ParsePlayerID(arg)
		if err != nil {
			return nil, err
		}
		if id < 0 {
			return nil, fmt.Errorf("invalid attacker id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	paymentsCmd.Flags().IntVar(&paymentsLimit, "limit", constants.PaymentHistoryLimit, "number of payments to show")
}
