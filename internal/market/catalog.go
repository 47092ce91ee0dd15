package market

import (
	"market_board/internal/items"
	"market_board/internal/projection"
)

// SetCategory is the catalog category whose items belong to bundles.
const SetCategory = "set"

// Catalog maps item names to ids, grouped by category ("normal", "set", ...).
// A nil Catalog behaves as an empty one.
type Catalog struct {
	categories map[string]map[string]items.ID
	ids        map[string]items.ID
}

func NewCatalog(categories map[string]map[string]items.ID) *Catalog {
	c := &Catalog{
		categories: categories,
		ids:        make(map[string]items.ID),
	}
	for _, byName := range categories {
		for name, id := range byName {
			c.ids[name] = id
		}
	}
	return c
}

// ExclusionSet returns the names in the set category.
func (c *Catalog) ExclusionSet() projection.Set {
	set := projection.NewSet()
	if c == nil {
		return set
	}
	for name := range c.categories[SetCategory] {
		set.Add(name)
	}
	return set
}

func (c *Catalog) ItemID(name string) (items.ID, bool) {
	if c == nil {
		return "", false
	}
	id, ok := c.ids[name]
	return id, ok && id != ""
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}
