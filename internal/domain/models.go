package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ResultLost is the attack result recorded when the attacker lost.
const ResultLost = "Lost"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ID    PlayerID        `json:"id"`
	Key   string          `json:"key"`
	Price decimal.Decimal `json:"price"`
}

// Configured reports whether the config carries enough to call the API.
func (c Config) Configured() bool {
	return c.ID > 0 && c.Key != ""
}

func (c Config) Validate() error {
	if c.ID < 0 {
		return fmt.Errorf("%w: id must not be negative", ErrInvalidConfig)
	}
	if c.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidConfig)
	}
	return nil
}

type Encounter struct {
	Code         string
	DefenderID   PlayerID
	DefenderName string
	AttackerID   PlayerID
	AttackerName string
	Result       string
	StartedAt    time.Time
	EndedAt      time.Time
}

// Payments maps an attacker to the cumulative amount they have paid.
type Payments map[PlayerID]decimal.Decimal

func (p Payments) PaidBy(id PlayerID) decimal.Decimal {
	if amount, ok := p[id]; ok {
		return amount
	}
	return decimal.Zero
}

type PaymentEvent struct {
	ID           string // nanoid
	AttackerID   PlayerID
	AttackerName string
	Amount       decimal.Decimal
	PaidAt       time.Time
}
