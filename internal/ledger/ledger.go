// Package ledger turns an attack log into per-attacker rows of losses,
// money owed, money paid and outstanding balance.
package ledger

import (
	"cmp"
	"slices"
	"xp-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOK            Status = "ok"
	StatusNotConfigured Status = "not_configured"
)

// Aggregate is the loss tally for one attacker within a single build.
type Aggregate struct {
	AttackerID   domain.PlayerID
	AttackerName string
	Losses       int
}

type Row struct {
	AttackerID   domain.PlayerID `json:"attacker_id"`
	AttackerName string          `json:"attacker_name"`
	Losses       int             `json:"losses"`
	Owed         decimal.Decimal `json:"owed"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
}

type Stats struct {
	Losses      int             `json:"losses"`
	Owed        decimal.Decimal `json:"owed"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Best        *Row            `json:"best,omitempty"`
	Top         *Row            `json:"top,omitempty"`
}

type Result struct {
	Status Status `json:"status"`
	Rows   []Row  `json:"rows"`
	Stats  Stats  `json:"stats"`
	// Fights is the size of the downloaded log before filtering.
	Fights int `json:"fights"`
}

// NotConfigured is the result returned before an id and key are saved.
func NotConfigured() Result {
	return Result{
		Status: StatusNotConfigured,
		Rows:   []Row{},
		Stats:  computeStats(nil),
	}
}

// Row looks up the row for an attacker.
func (r Result) Row(id domain.PlayerID) (Row, bool) {
	for _, row := range r.Rows {
		if row.AttackerID == id {
			return row, true
		}
	}
	return Row{}, false
}

// Build keeps encounters where cfg.ID defended and the attacker lost, tallies
// them per attacker and prices them against cfg.Price and payments.
func Build(encounters []domain.Encounter, cfg domain.Config, payments domain.Payments) Result {
	if !cfg.Configured() {
		return NotConfigured()
	}

	aggregates := Tally(encounters, cfg.ID)
	rows := make([]Row, 0, len(aggregates))
	for _, agg := range aggregates {
		owed := decimal.NewFromInt(int64(agg.Losses)).Mul(cfg.Price)
		paid := payments.PaidBy(agg.AttackerID)
		rows = append(rows, Row{
			AttackerID:   agg.AttackerID,
			AttackerName: agg.AttackerName,
			Losses:       agg.Losses,
			Owed:         owed,
			Paid:         paid,
			Balance:      owed.Sub(paid),
		})
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := b.Balance.Cmp(a.Balance); c != 0 {
			return c
		}
		return cmp.Compare(a.AttackerID, b.AttackerID)
	})

	return Result{
		Status: StatusOK,
		Rows:   rows,
		Stats:  computeStats(rows),
		Fights: len(encounters),
	}
}

// Tally groups qualifying losses by attacker in first-seen order.
func Tally(encounters []domain.Encounter, owner domain.PlayerID) []Aggregate {
	index := make(map[domain.PlayerID]int)
	var out []Aggregate
	for _, e := range encounters {
		if e.DefenderID != owner || e.Result != domain.ResultLost {
			continue
		}
		i, ok := index[e.AttackerID]
		if !ok {
			i = len(out)
			index[e.AttackerID] = i
			out = append(out, Aggregate{AttackerID: e.AttackerID})
		}
		out[i].Losses++
		out[i].AttackerName = e.AttackerName
	}
	return out
}

func computeStats(rows []Row) Stats {
	stats := Stats{
		Owed: decimal.Zero,
		Paid: decimal.Zero,
	}

	var best, top *Row
	for i := range rows {
		r := &rows[i]
		stats.Losses += r.Losses
		stats.Owed = stats.Owed.Add(r.Owed)
		stats.Paid = stats.Paid.Add(r.Paid)

		if best == nil || r.Losses > best.Losses || (r.Losses == best.Losses && r.AttackerID < best.AttackerID) {
			best = r
		}
		// nobody is the top payer until someone has paid something
		if r.Paid.IsPositive() {
			if top == nil || r.Paid.GreaterThan(top.Paid) || (r.Paid.Equal(top.Paid) && r.AttackerID < top.AttackerID) {
				top = r
			}
		}
	}
	stats.Outstanding = stats.Owed.Sub(stats.Paid)

	if best != nil {
		b := *best
		stats.Best = &b
	}
	if top != nil {
		t := *top
		stats.Top = &t
	}
	return stats
}
