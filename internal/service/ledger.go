package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"xp-ledger/internal/api"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/ledger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	ErrRefreshInProgress = errors.New("a refresh is already in progress")
	ErrStaleSnapshot     = errors.New("ledger changed since it was displayed, refresh and try again")
	ErrUnknownAttacker   = errors.New("attacker is not in the displayed ledger")
)

type ConfigStore interface {
	Load(ctx context.Context) (domain.Config, error)
	Save(ctx context.Context, cfg domain.Config) error
}

type PaymentStore interface {
	Load(ctx context.Context) (domain.Payments, error)
	Add(ctx context.Context, events []domain.PaymentEvent) (domain.Payments, error)
	History(ctx context.Context, limit int) ([]domain.PaymentEvent, error)
}

type statsProvider interface {
	Stats() api.RequestStats
}

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

// Snapshot is one rendered ledger. Its ID is the token a payment must quote.
type Snapshot struct {
	ID      string        `json:"id"`
	Result  ledger.Result `json:"result"`
	BuiltAt time.Time     `json:"built_at"`
}

type LedgerService struct {
	fetcher  api.AttackFetcher
	configs  ConfigStore
	payments PaymentStore
	logger   zerolog.Logger

	// one pipeline run (refresh, save or pay) at a time
	run *semaphore.Weighted

	mu      sync.RWMutex
	state   State
	current *Snapshot
	spent   string
	lastErr error
}

func NewLedgerService(fetcher api.AttackFetcher, configs ConfigStore, payments PaymentStore, logger zerolog.Logger) *LedgerService {
	return &LedgerService{
		fetcher:  fetcher,
		configs:  configs,
		payments: payments,
		logger:   logger,
		run:      semaphore.NewWeighted(1),
		state:    StateIdle,
	}
}

// Current returns the last successfully built snapshot, nil before the
// first one. A failed refresh leaves it in place.
func (s *LedgerService) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *LedgerService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError is the error of the most recent pipeline run, nil if it succeeded.
func (s *LedgerService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// CanPay reports whether snapshotID names the current snapshot and nothing
// has been paid against it yet.
func (s *LedgerService) CanPay(snapshotID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotID != "" && s.current != nil && s.current.ID == snapshotID && snapshotID != s.spent
}

func (s *LedgerService) LoadConfig(ctx context.Context) (domain.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.configs.Load(ctx)
}

func (s *LedgerService) PaymentHistory(ctx context.Context, limit int) ([]domain.PaymentEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if limit <= 0 {
		limit = constants.PaymentHistoryLimit
	}
	events, err := s.payments.History(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load payment history")
		return nil, err
	}
	return events, nil
}

// Refresh downloads the attack log and rebuilds the ledger. It fails with
// ErrRefreshInProgress instead of overlapping a running pipeline.
func (s *LedgerService) Refresh(ctx context.Context) (*Snapshot, error) {
	if !s.run.TryAcquire(1) {
		s.logger.Warn().Msg("refresh rejected, pipeline busy")
		return nil, ErrRefreshInProgress
	}
	defer s.run.Release(1)

	return s.refresh(ctx)
}

// SaveConfig overwrites the stored config and refreshes.
func (s *LedgerService) SaveConfig(ctx context.Context, cfg domain.Config) (*Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !s.run.TryAcquire(1) {
		return nil, ErrRefreshInProgress
	}
	defer s.run.Release(1)

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.configs.Save(dbCtx, cfg); err != nil {
		s.logger.Error().Err(err).Msg("failed to save config")
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	s.logger.Info().Str("id", cfg.ID.String()).Str("price", cfg.Price.String()).Msg("config saved")

	return s.refresh(ctx)
}

// MarkPaid adds each selected attacker's balance, as shown in the snapshot
// named by snapshotID, to what they have paid. A snapshot can be paid
// against once; quoting it again fails with ErrStaleSnapshot.
func (s *LedgerService) MarkPaid(ctx context.Context, snapshotID string, attackerIDs []domain.PlayerID) (*Snapshot, error) {
	if !s.run.TryAcquire(1) {
		return nil, ErrRefreshInProgress
	}
	defer s.run.Release(1)

	snap := s.Current()
	if !s.CanPay(snapshotID) {
		s.logger.Warn().Str("snapshot", snapshotID).Msg("payment against stale snapshot rejected")
		return nil, ErrStaleSnapshot
	}

	events, err := paymentEvents(snap.Result, attackerIDs)
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		defer cancel()

		if _, err := s.payments.Add(dbCtx, events); err != nil {
			s.logger.Error().Err(err).Msg("failed to record payments")
			return nil, fmt.Errorf("failed to record payments: %w", err)
		}
	}

	s.mu.Lock()
	s.spent = snapshotID
	s.mu.Unlock()

	for _, e := range events {
		s.logger.Info().
			Str("attacker_id", e.AttackerID.String()).
			Str("attacker_name", e.AttackerName).
			Str("amount", e.Amount.String()).
			Msg("payment recorded")
	}

	return s.refresh(ctx)
}

func paymentEvents(res ledger.Result, attackerIDs []domain.PlayerID) ([]domain.PaymentEvent, error) {
	seen := make(map[domain.PlayerID]bool, len(attackerIDs))
	var events []domain.PaymentEvent
	for _, id := range attackerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		row, ok := res.Row(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAttacker, id)
		}
		if row.Balance.IsZero() {
			continue
		}
		events = append(events, domain.PaymentEvent{
			AttackerID:   row.AttackerID,
			AttackerName: row.AttackerName,
			Amount:       row.Balance,
		})
	}
	return events, nil
}

func (s *LedgerService) refresh(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.setState(StateFetching)
	defer s.setState(StateIdle)

	snap, err := s.build(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return nil, err
	}
	s.current = snap
	return snap, nil
}

func (s *LedgerService) build(ctx context.Context) (*Snapshot, error) {
	cfg, err := s.configs.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load config")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Configured() {
		s.logger.Info().Msg("ledger not configured, skipping download")
		return newSnapshot(ledger.NotConfigured())
	}

	s.logger.Info().Str("id", cfg.ID.String()).Msg("downloading attack log")

	var (
		encounters []domain.Encounter
		payments   domain.Payments
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		apiCtx, apiCancel := context.WithTimeout(gCtx, constants.ExternalAPITimeout)
		defer apiCancel()

		var err error
		encounters, err = s.fetcher.GetAttacks(apiCtx, cfg.ID, cfg.Key)
		if err != nil {
			return fmt.Errorf("failed to fetch attacks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payments, err = s.payments.Load(gCtx)
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("id", cfg.ID.String()).Msg("refresh failed")
		return nil, err
	}

	if sp, ok := s.fetcher.(statsProvider); ok {
		stats := sp.Stats()
		s.logger.Debug().
			Int("requests", stats.Requests).
			Int("failures", stats.Failures).
			Int("last_status", stats.LastStatus).
			Msg("api client stats")
	}

	res := ledger.Build(encounters, cfg, payments)

	s.logger.Info().
		Int("fights", res.Fights).
		Int("attackers", len(res.Rows)).
		Int("losses", res.Stats.Losses).
		Str("outstanding", res.Stats.Outstanding.String()).
		Msg("ledger built")

	return newSnapshot(res)
}

func newSnapshot(res ledger.Result) (*Snapshot, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate snapshot id: %w", err)
	}
	return &Snapshot{ID: id, Result: res, BuiltAt: time.Now()}, nil
}

func (s *LedgerService) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
