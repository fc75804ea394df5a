package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPaymentRepository(sqlDB *sql.DB, logger zerolog.Logger) *PaymentRepository {
	return &PaymentRepository{db: sqlDB, logger: logger}
}

// Load returns the cumulative amount paid per attacker.
func (r *PaymentRepository) Load(ctx context.Context) (domain.Payments, error) {
	payments := domain.Payments{}
	if _, err := getBlob(ctx, r.db, constants.PaymentsKey, &payments); err != nil {
		r.logger.Error().Err(err).Msg("failed to load payments")
		return nil, err
	}
	return payments, nil
}

// Add adds each amount to the attacker's cumulative total and records one
// payment event per entry, all in one transaction.
func (r *PaymentRepository) Add(ctx context.Context, events []domain.PaymentEvent) (domain.Payments, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payments := domain.Payments{}
	if _, err := getBlob(ctx, tx, constants.PaymentsKey, &payments); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, event := range events {
		id := event.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return nil, fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		paidAt := event.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}

		payments[event.AttackerID] = payments.PaidBy(event.AttackerID).Add(event.Amount)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_events (id, attacker_id, attacker_name, amount, paid_at)
			VALUES (?, ?, ?, ?, ?)`,
			id, int64(event.AttackerID), event.AttackerName, event.Amount.String(), paidAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment event: %w", err)
		}
	}

	if err := putBlob(ctx, tx, constants.PaymentsKey, payments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payments: %w", err)
	}

	r.logger.Debug().Int("events", len(events)).Msg("payments recorded")
	return payments, nil
}

// History returns the most recent payment events, newest first. Events of one
// batch share paid_at and come back in reverse insertion order.
func (r *PaymentRepository) History(ctx context.Context, limit int) ([]domain.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, attacker_id, attacker_name, amount, paid_at
		FROM payment_events
		ORDER BY paid_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var (
			event      domain.PaymentEvent
			attackerID int64
			amount     string
		)
		if err := rows.Scan(&event.ID, &attackerID, &event.AttackerName, &amount, &event.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment event: %w", err)
		}
		event.AttackerID = domain.PlayerID(attackerID)
		event.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for payment %s: %w", amount, event.ID, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment events: %w", err)
	}
	return events, nil
}
