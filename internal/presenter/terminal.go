package presenter

import (
	"fmt"
	"io"
	"xp-ledger/internal/ledger"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	posStyle    = cellStyle.Foreground(lipgloss.Color("#E06C75"))
	negStyle    = cellStyle.Foreground(lipgloss.Color("#61AFEF"))
	zeroStyle   = cellStyle.Foreground(lipgloss.Color("#98C379"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(13)
	statusStyle = lipgloss.NewStyle().Italic(true)
)

// numeric columns are right aligned
var rightAligned = map[int]bool{2: true, 3: true, 4: true, 5: true}

// WriteLedger renders the status line, the table and the summary.
func WriteLedger(w io.Writer, res *ledger.Result, err error) error {
	if line := StatusLine(res, err); line != "" {
		if _, werr := fmt.Fprintln(w, statusStyle.Render(line)); werr != nil {
			return werr
		}
	}
	if res == nil || res.Status != ledger.StatusOK {
		return nil
	}

	if _, err := fmt.Fprintln(w, Table(res.Rows)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, SummaryBlock(res.Stats))
	return err
}

func Table(rows []ledger.Row) string {
	views := Rows(rows)
	data := make([][]string, len(views))
	for i, v := range views {
		data[i] = []string{v.AttackerID, v.Name, v.Losses, v.Owed, v.Paid, v.Balance}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "NAME", "LOSSES", "OWED", "PAID", "BALANCE").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			var style lipgloss.Style
			switch views[row].Class {
			case "pos":
				style = posStyle
			case "neg":
				style = negStyle
			default:
				style = zeroStyle
			}
			if rightAligned[col] {
				style = style.Align(lipgloss.Right)
			}
			return style
		})

	return t.Render()
}

func SummaryBlock(stats ledger.Stats) string {
	view := Summary(stats)
	lines := []string{
		labelStyle.Render("Losses") + view.Losses,
		labelStyle.Render("Owed") + view.Owed,
		labelStyle.Render("Paid") + view.Paid,
		labelStyle.Render("Outstanding") + view.Outstanding,
		labelStyle.Render("Most losses") + view.Best,
		labelStyle.Render("Top payer") + view.Top,
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
