package projection

import (
	"sort"
	"strings"

	"market_board/internal/items"
)

// Project filters and sorts the collection for display. It does not modify
// its inputs and returns the same order for the same inputs.
func Project(collection []items.Item, f Filters, s Sort, owned, excluded Set) []items.Item {
	f = f.Normalize()
	s = s.Normalize()

	out := make([]items.Item, 0, len(collection))
	needle := strings.ToLower(f.NameSubstring)
	for _, it := range collection {
		if matches(it, f, needle, owned, excluded) {
			out = append(out, it)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], s)
	})
	return out
}

func matches(it items.Item, f Filters, needle string, owned, excluded Set) bool {
	if needle != "" && !strings.Contains(strings.ToLower(it.Name), needle) {
		return false
	}

	// Unavailable items are never excluded by the price range.
	if amount, ok := it.Price.Amount(); ok {
		if f.PriceMin != nil && amount < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && amount > *f.PriceMax {
			return false
		}
	}

	switch f.Ownership {
	case OwnershipOwned:
		if !owned.Has(it.Name) {
			return false
		}
	case OwnershipUnowned:
		if owned.Has(it.Name) {
			return false
		}
	}

	if f.ExcludeSetItems && excluded.Has(it.Name) {
		return false
	}
	return true
}

func less(a, b items.Item, s Sort) bool {
	if s.Field == FieldPrice {
		pa, okA := a.Price.Amount()
		pb, okB := b.Price.Amount()
		// Unavailable sorts last in both directions.
		if !okA || !okB {
			return okA && !okB
		}
		return ordered(compareInt(pa, pb), s.Order)
	}

	var c int
	switch s.Field {
	case FieldName:
		c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case FieldUpdateTime:
		c = compareInt(unixMilli(a.UpdateTime), unixMilli(b.UpdateTime))
	}
	return ordered(c, s.Order)
}

func ordered(c int, o Order) bool {
	if o == Descending {
		return c > 0
	}
	return c < 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func unixMilli(t items.Timestamp) int64 {
	tm, ok := t.Time()
	if !ok {
		return 0
	}
	return tm.UnixMilli()
}
