// Package presenter turns a built ledger into text for the terminal and
// the local web page.
package presenter

import (
	"fmt"
	"strings"
	"xp-ledger/internal/ledger"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	NotConfiguredMessage = "Enter your ID & API key, then “Save & Refresh”."
	DownloadingMessage   = "Downloading attack log …"
	noValue              = "–"
)

// Money formats an amount as US dollars with thousands separators and at
// most two decimals, e.g. $1,500 or -$12.5.
func Money(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole := humanize.BigComma(d.Truncate(0).BigInt())
	frac := ""
	if s := d.String(); strings.Contains(s, ".") {
		frac = s[strings.Index(s, "."):]
	}
	return sign + "$" + whole + frac
}

func Count(n int) string {
	return humanize.Comma(int64(n))
}

// StatusLine is the one-line summary shown above the table.
func StatusLine(res *ledger.Result, err error) string {
	if err != nil {
		return "Error: " + err.Error()
	}
	if res == nil {
		return ""
	}
	if res.Status == ledger.StatusNotConfigured {
		return NotConfiguredMessage
	}
	return fmt.Sprintf("Processed %s fights, %d attackers.", Count(res.Fights), len(res.Rows))
}

// RowClass buckets a row by the sign of its balance.
func RowClass(row ledger.Row) string {
	switch row.Balance.Sign() {
	case 1:
		return "pos"
	case -1:
		return "neg"
	}
	return "zero"
}

type RowView struct {
	AttackerID string
	Name       string
	Losses     string
	Owed       string
	Paid       string
	Balance    string
	Class      string
}

func Rows(rows []ledger.Row) []RowView {
	out := make([]RowView, len(rows))
	for i, r := range rows {
		out[i] = RowView{
			AttackerID: r.AttackerID.String(),
			Name:       displayName(r),
			Losses:     Count(r.Losses),
			Owed:       Money(r.Owed),
			Paid:       Money(r.Paid),
			Balance:    Money(r.Balance),
			Class:      RowClass(r),
		}
	}
	return out
}

type StatsView struct {
	Losses      string
	Owed        string
	Paid        string
	Outstanding string
	Best        string
	Top         string
}

func Summary(stats ledger.Stats) StatsView {
	view := StatsView{
		Losses:      Count(stats.Losses),
		Owed:        Money(stats.Owed),
		Paid:        Money(stats.Paid),
		Outstanding: Money(stats.Outstanding),
		Best:        noValue,
		Top:         noValue,
	}
	if stats.Best != nil {
		view.Best = fmt.Sprintf("%s (%s)", displayName(*stats.Best), Count(stats.Best.Losses))
	}
	if stats.Top != nil {
		view.Top = fmt.Sprintf("%s (%s)", displayName(*stats.Top), Money(stats.Top.Paid))
	}
	return view
}

// anonymous attacks arrive without a name
func displayName(r ledger.Row) string {
	if r.AttackerName != "" {
		return r.AttackerName
	}
	if r.AttackerID == 0 {
		return "Someone"
	}
	return "#" + r.AttackerID.String()
}
