package preferences

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"market_board/internal/projection"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(n int64) *int64 { return &n }

func openBackends(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()

	out := make(map[string]KV)
	for _, backend := range []string{BackendFile, BackendSQLite, BackendBadger} {
		kv, err := Open(ctx, backend, t.TempDir())
		require.NoError(t, err, "open %s backend", backend)
		t.Cleanup(func() { _ = kv.Close() })
		out[backend] = kv
	}
	return out
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	want := Preferences{
		Filters: projection.Filters{
			NameSubstring:   "ring",
			PriceMin:        int64p(10),
			PriceMax:        int64p(5000),
			Ownership:       projection.OwnershipUnowned,
			ExcludeSetItems: true,
		},
		Sort: projection.Sort{Field: projection.FieldPrice, Order: projection.Descending},
	}

	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository(kv)
			require.NoError(t, repo.SavePreferences(ctx, want))

			got := repo.LoadPreferences(ctx)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Preferences mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadPreferencesDefaultsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			got := NewRepository(kv).LoadPreferences(ctx)
			if diff := cmp.Diff(Defaults(), got); diff != "" {
				t.Errorf("Expected defaults (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadPreferencesRepairsCorruptFields(t *testing.T) {
	ctx := context.Background()
	kv := NewFileKV(filepath.Join(t.TempDir(), "preferences.json"))

	require.NoError(t, kv.Put(ctx, KeyFilters, []byte(`{"itemName":"gem","priceMin":"lots","ownership":"sometimes","excludeSetItems":true}`)))
	require.NoError(t, kv.Put(ctx, KeySort, []byte(`{"by":"colour","order":"desc"}`)))

	got := NewRepository(kv).LoadPreferences(ctx)
	want := Preferences{
		Filters: projection.Filters{
			NameSubstring:   "gem",
			Ownership:       projection.OwnershipAll,
			ExcludeSetItems: true,
		},
		Sort: projection.Sort{Field: projection.FieldName, Order: projection.Descending},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Preferences mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPreferencesSurvivesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	repo := NewRepository(NewFileKV(path))
	got := repo.LoadPreferences(context.Background())
	assert.Equal(t, Defaults(), got)
	assert.Empty(t, repo.LoadOwned(context.Background()))
}

func TestSavePreferencesRejectsInvertedRange(t *testing.T) {
	repo := NewRepository(NewFileKV(filepath.Join(t.TempDir(), "preferences.json")))
	p := Defaults()
	p.Filters.PriceMin = int64p(100)
	p.Filters.PriceMax = int64p(1)
	assert.Error(t, repo.SavePreferences(context.Background(), p))
}

func TestToggleOwned(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository(kv)

			set, err := repo.ToggleOwned(ctx, "Binoculars", true)
			require.NoError(t, err)
			assert.True(t, set.Has("Binoculars"))

			_, err = repo.ToggleOwned(ctx, "Crowbar", true)
			require.NoError(t, err)
			_, err = repo.ToggleOwned(ctx, "Binoculars", false)
			require.NoError(t, err)

			assert.Equal(t, []string{"Crowbar"}, repo.LoadOwned(ctx).Names())
		})
	}
}

func TestOwnedItemsStoredAsJSONArray(t *testing.T) {
	ctx := context.Background()
	kv := NewFileKV(filepath.Join(t.TempDir(), "preferences.json"))
	repo := NewRepository(kv)

	require.NoError(t, repo.SaveOwned(ctx, projection.NewSet("b", "a")))

	raw, ok, err := kv.Get(ctx, KeyOwned)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["a","b"]`, string(raw))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "etcd", t.TempDir())
	assert.Error(t, err)
}
