package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"market_board/internal/items"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalRendersRows(t *testing.T) {
	var buf bytes.Buffer
	v := View{
		Rows: []Row{
			{Item: items.Item{Name: "Binoculars", Price: items.Purchasable(1234567), UpdateTime: 1_700_000_000}, Changed: true},
			{Item: items.Item{Name: "Crowbar", Price: items.Unavailable()}, Owned: true},
		},
		Status: Status{Outcome: OutcomeSuccess, LastUpdated: time.Now()},
		Total:  5,
	}

	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), v))
	out := buf.String()

	assert.Contains(t, out, "Binoculars")
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "Crowbar")
	assert.Contains(t, out, "not on market")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "2 of 5 items")
	assert.Contains(t, out, "Last updated")
}

func TestTerminalFirstLoadShowsLoadingOnly(t *testing.T) {
	var buf bytes.Buffer
	v := View{
		Rows:   []Row{{Item: items.Item{Name: "Binoculars"}}},
		Status: Status{Phase: PhaseLoading, FirstLoad: true},
	}

	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), v))
	assert.Contains(t, buf.String(), "Loading items...")
	assert.NotContains(t, buf.String(), "Binoculars")
}

func TestTerminalLaterLoadKeepsTable(t *testing.T) {
	var buf bytes.Buffer
	v := View{
		Rows:   []Row{{Item: items.Item{Name: "Binoculars", Price: items.Purchasable(1)}}},
		Status: Status{Phase: PhaseLoading},
		Total:  1,
	}

	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), v))
	assert.Contains(t, buf.String(), "Binoculars")
	assert.Contains(t, buf.String(), "Updating...")
}

func TestTerminalNoDataAndFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), View{Status: Status{Outcome: OutcomeNoData}}))
	assert.Contains(t, buf.String(), "No item data found.")
	assert.NotContains(t, buf.String(), "Update failed")

	buf.Reset()
	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), View{Status: Status{Outcome: OutcomeFailed}}))
	assert.Contains(t, buf.String(), "Update failed!")
}

func TestTerminalFailedFirstLoadHidesTable(t *testing.T) {
	var buf bytes.Buffer
	v := View{Status: Status{Outcome: OutcomeFailed, FirstLoad: true}}

	require.NoError(t, NewTerminal(&buf, false).Render(context.Background(), v))
	out := buf.String()
	assert.Contains(t, out, "Failed to load item data.")
	assert.Contains(t, out, "Update failed!")
	assert.NotContains(t, out, "Loading items...")
	assert.NotContains(t, out, "items\n")
	assert.NotContains(t, out, "Item")
}

type failingRenderer struct{ calls int }

func (f *failingRenderer) Render(context.Context, View) error {
	f.calls++
	return errors.New("boom")
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	bad := &failingRenderer{}
	m := Multi{bad, NewTerminal(&buf, false)}

	err := m.Render(context.Background(), View{Status: Status{Outcome: OutcomeNoData}})
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Contains(t, buf.String(), "No item data found.")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0", FormatPrice(items.Purchasable(0)))
	assert.Equal(t, "12,000", FormatPrice(items.Purchasable(12000)))
	assert.Equal(t, "not on market", FormatPrice(items.Unavailable()))
}
