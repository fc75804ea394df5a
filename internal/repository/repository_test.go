package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
	"xp-ledger/internal/database"
	"xp-ledger/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConfigRepositoryDefaultsToEmpty(t *testing.T) {
	repo := NewConfigRepository(openTestDB(t), zerolog.Nop())

	cfg, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Configured())
	assert.True(t, cfg.Price.IsZero())
}

func TestConfigRepositorySaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewConfigRepository(openTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Save(ctx, domain.Config{ID: 1, Key: "old", Price: decimal.NewFromInt(500)}))
	require.NoError(t, repo.Save(ctx, domain.Config{ID: 2, Key: "new", Price: decimal.RequireFromString("12.5")}))

	cfg, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PlayerID(2), cfg.ID)
	assert.Equal(t, "new", cfg.Key)
	assert.Equal(t, "12.5", cfg.Price.String())
}

func TestPaymentRepositoryAccumulates(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openTestDB(t), zerolog.Nop())

	payments, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, err = repo.Add(ctx, []domain.PaymentEvent{
		{AttackerID: 9, AttackerName: "Bob", Amount: decimal.NewFromInt(1500)},
		{AttackerID: 4, AttackerName: "Al", Amount: decimal.NewFromInt(200)},
	})
	require.NoError(t, err)

	updated, err := repo.Add(ctx, []domain.PaymentEvent{
		{AttackerID: 9, AttackerName: "Bob", Amount: decimal.NewFromInt(500)},
	})
	require.NoError(t, err)
	assert.True(t, updated.PaidBy(9).Equal(decimal.NewFromInt(2000)))

	payments, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.True(t, payments.PaidBy(9).Equal(decimal.NewFromInt(2000)))
	assert.True(t, payments.PaidBy(4).Equal(decimal.NewFromInt(200)))
}

func TestPaymentRepositoryHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openTestDB(t), zerolog.Nop())

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err := repo.Add(ctx, []domain.PaymentEvent{
		{ID: "first", AttackerID: 9, AttackerName: "Bob", Amount: decimal.NewFromInt(100), PaidAt: base},
		{ID: "second", AttackerID: 4, AttackerName: "Al", Amount: decimal.RequireFromString("2.5"), PaidAt: base.Add(time.Hour)},
	})
	require.NoError(t, err)

	events, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].ID)
	assert.Equal(t, domain.PlayerID(4), events[0].AttackerID)
	assert.Equal(t, "2.5", events[0].Amount.String())
	assert.True(t, events[0].PaidAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, "first", events[1].ID)

	limited, err := repo.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPaymentRepositoryHistoryBatchOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(openTestDB(t), zerolog.Nop())

	// ids sort differently from insertion order
	_, err := repo.Add(ctx, []domain.PaymentEvent{
		{ID: "zzz", AttackerID: 3, AttackerName: "Cy", Amount: decimal.NewFromInt(1)},
		{ID: "aaa", AttackerID: 1, AttackerName: "Al", Amount: decimal.NewFromInt(2)},
		{ID: "mmm", AttackerID: 2, AttackerName: "Bo", Amount: decimal.NewFromInt(3)},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		events, err := repo.History(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, "mmm", events[0].ID)
		assert.Equal(t, "aaa", events[1].ID)
		assert.Equal(t, "zzz", events[2].ID)
		assert.True(t, events[0].PaidAt.Equal(events[2].PaidAt))
	}
}

func TestPaymentRepositoryAddRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \?`).
		WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"9":"100"}`))
	mock.ExpectExec(`INSERT INTO payment_events`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := NewPaymentRepository(db, zerolog.Nop())
	_, err = repo.Add(context.Background(), []domain.PaymentEvent{
		{AttackerID: 9, Amount: decimal.NewFromInt(50)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepositoryLoadCorruptBlob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \?`).
		WithArgs("config").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{not json`))

	repo := NewConfigRepository(db, zerolog.Nop())
	_, err = repo.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryLoadsLegacyNumericBlob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \?`).
		WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"9":1500,"12":"250.5"}`))

	repo := NewPaymentRepository(db, zerolog.Nop())
	payments, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, payments.PaidBy(9).Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "250.5", payments.PaidBy(12).String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
