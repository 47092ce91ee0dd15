package preferences

import (
	"context"
	"encoding/json"
	"fmt"

	"market_board/internal/projection"

	"github.com/rs/zerolog/log"
)

const (
	KeyOwned   = "ownedItems"
	KeyFilters = "currentFilters"
	KeySort    = "currentSort"
)

// Preferences are the persisted view settings.
type Preferences struct {
	Filters projection.Filters
	Sort    projection.Sort
}

func Defaults() Preferences {
	return Preferences{
		Filters: projection.DefaultFilters(),
		Sort:    projection.DefaultSort(),
	}
}

// Repository maps view settings and the owned set onto a KV store.
type Repository struct {
	kv KV
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// LoadPreferences never fails: missing or unreadable fields fall back to defaults.
func (r *Repository) LoadPreferences(ctx context.Context) Preferences {
	p := Defaults()

	if raw, ok := r.get(ctx, KeyFilters); ok {
		p.Filters = decodeFilters(raw)
	}
	if raw, ok := r.get(ctx, KeySort); ok {
		p.Sort = decodeSort(raw)
	}
	return p
}

func (r *Repository) SavePreferences(ctx context.Context, p Preferences) error {
	filters := p.Filters.Normalize()
	if err := filters.Validate(); err != nil {
		return err
	}
	if err := r.put(ctx, KeyFilters, filters); err != nil {
		return err
	}
	return r.put(ctx, KeySort, p.Sort.Normalize())
}

// LoadOwned returns the owned set, empty if nothing was stored or the stored value is unreadable.
func (r *Repository) LoadOwned(ctx context.Context) projection.Set {
	raw, ok := r.get(ctx, KeyOwned)
	if !ok {
		return projection.NewSet()
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		log.Warn().Err(err).Str("key", KeyOwned).Msg("Ignoring unreadable owned items")
		return projection.NewSet()
	}
	return projection.NewSet(names...)
}

func (r *Repository) SaveOwned(ctx context.Context, owned projection.Set) error {
	return r.put(ctx, KeyOwned, owned.Names())
}

// ToggleOwned marks or unmarks an item and persists the set immediately.
func (r *Repository) ToggleOwned(ctx context.Context, name string, owned bool) (projection.Set, error) {
	set := r.LoadOwned(ctx)
	if owned {
		set.Add(name)
	} else {
		set.Remove(name)
	}
	if err := r.SaveOwned(ctx, set); err != nil {
		return nil, err
	}
	log.Debug().Str("item", name).Bool("owned", owned).Int("owned_total", len(set)).Msg("Updated owned items")
	return set, nil
}

func (r *Repository) get(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read preference, using defaults")
		return nil, false
	}
	return raw, ok
}

func (r *Repository) put(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.kv.Put(ctx, key, b)
}

// decodeFilters decodes field by field so one bad value does not discard the rest.
func decodeFilters(raw []byte) projection.Filters {
	f := projection.DefaultFilters()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		log.Warn().Err(err).Str("key", KeyFilters).Msg("Ignoring unreadable filters")
		return f
	}

	decodeField(fields, "itemName", &f.NameSubstring)
	decodeField(fields, "priceMin", &f.PriceMin)
	decodeField(fields, "priceMax", &f.PriceMax)
	decodeField(fields, "ownership", &f.Ownership)
	decodeField(fields, "excludeSetItems", &f.ExcludeSetItems)

	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		log.Warn().Int64("min", *f.PriceMin).Int64("max", *f.PriceMax).Msg("Ignoring inverted stored price range")
		f.PriceMin, f.PriceMax = nil, nil
	}
	return f.Normalize()
}

func decodeSort(raw []byte) projection.Sort {
	s := projection.DefaultSort()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		log.Warn().Err(err).Str("key", KeySort).Msg("Ignoring unreadable sort")
		return s
	}
	decodeField(fields, "by", &s.Field)
	decodeField(fields, "order", &s.Order)
	return s.Normalize()
}

func decodeField[T any](fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("field", name).Msg("Ignoring unreadable preference field")
		return
	}
	*dst = v
}
