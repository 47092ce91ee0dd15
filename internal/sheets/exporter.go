package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market_board/internal/render"
	"market_board/internal/retry"

	"github.com/rs/zerolog/log"
)

// ValueWriter is the part of the Sheets API the exporter needs.
type ValueWriter interface {
	ClearRange(ctx context.Context, spreadsheetID, range_ string) error
	UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
}

// Exporter mirrors the current projection into a spreadsheet tab. Render only
// queues the view and Run does the writing. Views queued while a write is in
// flight collapse to the latest one.
type Exporter struct {
	client        ValueWriter
	spreadsheetID string
	sheetRange    string
	retryConfig   retry.Config
	pending       chan render.View
}

func NewExporter(client ValueWriter, spreadsheetID, sheetRange string, retryConfig retry.Config) *Exporter {
	return &Exporter{
		client:        client,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetRange,
		retryConfig:   retryConfig,
		pending:       make(chan render.View, 1),
	}
}

// Render queues the view for export. Views that are still loading or failed
// are skipped so the sheet only ever holds settled data.
func (e *Exporter) Render(_ context.Context, v render.View) error {
	if v.Status.Phase == render.PhaseLoading || v.Status.Outcome == render.OutcomeFailed {
		return nil
	}
	for {
		select {
		case e.pending <- v:
			return nil
		default:
		}
		select {
		case stale := <-e.pending:
			log.Debug().Int("rows", len(stale.Rows)).Msg("Replacing queued sheet export")
		default:
		}
	}
}

// Run writes queued views until ctx is done.
func (e *Exporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-e.pending:
			if err := e.Export(ctx, v); err != nil {
				log.Error().Err(err).Msg("Sheet export failed")
			}
		}
	}
}

// Export replaces the tab contents with the view, retrying failed writes.
func (e *Exporter) Export(ctx context.Context, v render.View) error {
	values := BuildValues(v.Rows)
	sheetName := strings.Split(e.sheetRange, "!")[0]
	clearRange := sheetName + "!A:E"

	log.Debug().
		Str("sheet", sheetName).
		Int("rows", len(v.Rows)).
		Msg("Exporting projection to sheet")

	_, err := retry.WithRetry(ctx, e.retryConfig, func(ctx context.Context) (struct{}, error) {
		if err := e.client.ClearRange(ctx, e.spreadsheetID, clearRange); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, e.client.UpdateRange(ctx, e.spreadsheetID, e.sheetRange, values)
	})
	if err != nil {
		return fmt.Errorf("failed to export to sheet %s: %w", sheetName, err)
	}

	log.Info().Str("sheet", sheetName).Int("rows", len(v.Rows)).Msg("Sheet export complete")
	return nil
}

// BuildValues converts rows into sheet values, header first.
func BuildValues(rows []render.Row) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, []interface{}{"Item", "Price", "Updated (UTC)", "Owned", "Image"})

	for _, r := range rows {
		var price interface{} = ""
		if amount, ok := r.Item.Price.Amount(); ok {
			price = amount
		}

		updated := ""
		if tm, ok := r.Item.UpdateTime.Time(); ok {
			updated = tm.UTC().Format(time.DateTime)
		}

		image := ""
		if r.ImageURL != "" {
			image = fmt.Sprintf("=IMAGE(%q)", r.ImageURL)
		}

		values = append(values, []interface{}{r.Item.Name, price, updated, r.Owned, image})
	}
	return values
}
