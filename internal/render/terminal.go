package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"market_board/internal/items"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	changedStyle     = cellStyle.Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	unavailableStyle = cellStyle.Faint(true)
	statusStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Terminal draws the projection as a table on a writer.
type Terminal struct {
	out         io.Writer
	clearScreen bool
}

func NewTerminal(out io.Writer, clearScreen bool) *Terminal {
	return &Terminal{out: out, clearScreen: clearScreen}
}

func (t *Terminal) Render(_ context.Context, v View) error {
	var sb strings.Builder
	if t.clearScreen {
		sb.WriteString("\033[H\033[2J")
	}

	switch {
	case !v.Status.ShowTable() && v.Status.Phase == PhaseLoading:
		sb.WriteString("Loading items...\n")
	case v.Status.Outcome == OutcomeNoData && len(v.Rows) == 0:
		sb.WriteString("No item data found.\n")
	case !v.Status.ShowTable():
	default:
		sb.WriteString(buildTable(v.Rows).Render())
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("%d of %d items", len(v.Rows), v.Total)))
		sb.WriteString("\n")
	}

	if v.Status.Outcome == OutcomeFailed && v.Status.Phase == PhaseIdle {
		sb.WriteString(errorStyle.Render("Failed to load item data."))
		sb.WriteString("\n")
	}
	if text := v.Status.Text(); text != "" {
		sb.WriteString(statusStyle.Render(text))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(t.out, sb.String())
	return err
}

func buildTable(rows []Row) *table.Table {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		owned := ""
		if r.Owned {
			owned = "✓"
		}
		data = append(data, []string{r.Item.Name, FormatPrice(r.Item.Price), FormatTime(r.Item.UpdateTime), owned})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Item", "Price", "Updated", "Owned").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return cellStyle
			}
			switch {
			case rows[row].Changed:
				return changedStyle
			case !rows[row].Item.Price.Available():
				return unavailableStyle
			}
			return cellStyle
		})
}

func FormatPrice(p items.Price) string {
	amount, ok := p.Amount()
	if !ok {
		return "not on market"
	}
	return humanize.Comma(amount)
}

func FormatTime(ts items.Timestamp) string {
	tm, ok := ts.Time()
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%s (%s)", tm.Local().Format("2006-01-02 15:04:05"), humanize.Time(tm))
}
