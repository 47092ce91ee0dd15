package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type prefsOutput struct {
	Filters struct {
		NameSubstring   string `json:"itemName"`
		PriceMin        *int64 `json:"priceMin"`
		PriceMax        *int64 `json:"priceMax"`
		Ownership       string `json:"ownership"`
		ExcludeSetItems bool   `json:"excludeSetItems"`
	} `json:"filters"`
	Sort struct {
		By    string `json:"by"`
		Order string `json:"order"`
	} `json:"sort"`
	Owned []string `json:"owned"`
}

func decodePrefs(t *testing.T, out string) prefsOutput {
	t.Helper()
	var p prefsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p), "output: %s", out)
	return p
}

func TestPreferenceCommands(t *testing.T) {
	for _, backend := range []string{"file", "sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			flags := []string{"--prefs-backend", backend, "--prefs-dir", dir}

			_, err := runCLI(t, append([]string{"own", "Small", "First", "Aid", "Kit"}, flags...)...)
			require.NoError(t, err)
			_, err = runCLI(t, append([]string{"own", "Ring"}, flags...)...)
			require.NoError(t, err)
			_, err = runCLI(t, append([]string{"disown", "Ring"}, flags...)...)
			require.NoError(t, err)

			out, err := runCLI(t, append([]string{"filter", "--name", "kit", "--max", "5000", "--ownership", "uncollected", "--exclude-sets"}, flags...)...)
			require.NoError(t, err)
			p := decodePrefs(t, out)
			assert.Equal(t, "kit", p.Filters.NameSubstring)
			require.NotNil(t, p.Filters.PriceMax)
			assert.Equal(t, int64(5000), *p.Filters.PriceMax)
			assert.Equal(t, "unowned", p.Filters.Ownership)
			assert.True(t, p.Filters.ExcludeSetItems)

			out, err = runCLI(t, append([]string{"sort", "price", "desc"}, flags...)...)
			require.NoError(t, err)
			p = decodePrefs(t, out)
			assert.Equal(t, "price", p.Sort.By)
			assert.Equal(t, "desc", p.Sort.Order)
			assert.Equal(t, "kit", p.Filters.NameSubstring, "sort keeps the filters")

			out, err = runCLI(t, append([]string{"prefs"}, flags...)...)
			require.NoError(t, err)
			assert.Equal(t, []string{"Small First Aid Kit"}, decodePrefs(t, out).Owned)

			out, err = runCLI(t, append([]string{"reset"}, flags...)...)
			require.NoError(t, err)
			p = decodePrefs(t, out)
			assert.Empty(t, p.Filters.NameSubstring)
			assert.Nil(t, p.Filters.PriceMax)
			assert.Equal(t, "all", p.Filters.Ownership)
			assert.Equal(t, "itemName", p.Sort.By)
			assert.Equal(t, []string{"Small First Aid Kit"}, p.Owned)
		})
	}
}

func TestFilterRejectsInvertedRange(t *testing.T) {
	_, err := runCLI(t, "filter", "--min", "10", "--max", "5", "--prefs-dir", t.TempDir())
	assert.Error(t, err)
}

func TestSortRejectsUnknownField(t *testing.T) {
	_, err := runCLI(t, "sort", "colour", "--prefs-dir", t.TempDir())
	assert.Error(t, err)
}

func TestListPrintsProjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Binoculars": {"price": 1500, "updateTimeUTC": 1700000000},
			"Crowbar": {"price": -1},
			"Small First Aid Kit": {"price": 250, "updateTimeUTC": 1700000000000}
		}`))
	}))
	defer srv.Close()

	t.Setenv("MARKET_API_URL", srv.URL)
	t.Setenv("CATALOG_URL", "")

	out, err := runCLI(t, "list", "--max", "1000", "--prefs-dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, out, "Small First Aid Kit")
	assert.Contains(t, out, "Crowbar", "unavailable prices bypass the price range")
	assert.NotContains(t, out, "Binoculars")
	assert.Contains(t, out, "2 of 3 items")
	assert.NotContains(t, out, "Loading items...")
}

func TestListReportsFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	t.Setenv("MARKET_API_URL", srv.URL)
	t.Setenv("CATALOG_URL", "")

	_, err := runCLI(t, "list", "--prefs-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
