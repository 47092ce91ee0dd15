package projection

import (
	"fmt"
	"sort"
	"strings"
)

type Ownership string

const (
	OwnershipAll     Ownership = "all"
	OwnershipOwned   Ownership = "owned"
	OwnershipUnowned Ownership = "unowned"
)

// ParseOwnership accepts "uncollected" as an alias for unowned.
func ParseOwnership(s string) (Ownership, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return OwnershipAll, nil
	case "owned", "collected":
		return OwnershipOwned, nil
	case "unowned", "uncollected":
		return OwnershipUnowned, nil
	}
	return "", fmt.Errorf("unknown ownership filter %q (want all, owned or unowned)", s)
}

// Filters are the user-chosen predicates. Nil bounds are open.
type Filters struct {
	NameSubstring   string    `json:"itemName"`
	PriceMin        *int64    `json:"priceMin"`
	PriceMax        *int64    `json:"priceMax"`
	Ownership       Ownership `json:"ownership"`
	ExcludeSetItems bool      `json:"excludeSetItems"`
}

func DefaultFilters() Filters {
	return Filters{Ownership: OwnershipAll}
}

// Normalize replaces unknown values with defaults.
func (f Filters) Normalize() Filters {
	if o, err := ParseOwnership(string(f.Ownership)); err == nil {
		f.Ownership = o
	} else {
		f.Ownership = OwnershipAll
	}
	f.NameSubstring = strings.TrimSpace(f.NameSubstring)
	return f
}

func (f Filters) Validate() error {
	if _, err := ParseOwnership(string(f.Ownership)); err != nil {
		return err
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return fmt.Errorf("price min %d is greater than max %d", *f.PriceMin, *f.PriceMax)
	}
	return nil
}

// NeedsReprojection reports whether toggling an owned flag can change what is visible.
func (f Filters) NeedsReprojection() bool {
	return f.Normalize().Ownership != OwnershipAll
}

type Field string

const (
	FieldName       Field = "itemName"
	FieldPrice      Field = "price"
	FieldUpdateTime Field = "updateTimeUTC"
)

func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "itemname", "name":
		return FieldName, nil
	case "price":
		return FieldPrice, nil
	case "updatetimeutc", "updatetime", "updated", "time":
		return FieldUpdateTime, nil
	}
	return "", fmt.Errorf("unknown sort field %q (want itemName, price or updateTimeUTC)", s)
}

type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want asc or desc)", s)
}

type Sort struct {
	Field Field `json:"by"`
	Order Order `json:"order"`
}

func DefaultSort() Sort {
	return Sort{Field: FieldName, Order: Ascending}
}

func (s Sort) Normalize() Sort {
	field, err := ParseField(string(s.Field))
	if err != nil {
		field = FieldName
	}
	order, err := ParseOrder(string(s.Order))
	if err != nil {
		order = Ascending
	}
	return Sort{Field: field, Order: order}
}

// Set is a set of item names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Add(name string) {
	s[name] = struct{}{}
}

func (s Set) Remove(name string) {
	delete(s, name)
}

// Names returns the members in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
