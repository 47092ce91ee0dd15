package resolution

import (
	"strings"

	"market_board/internal/items"
	"market_board/internal/market"

	"github.com/rs/zerolog/log"
)

// IDPlaceholder is replaced with the item id in image URL templates.
const IDPlaceholder = "{id}"

// ImageURL picks the display image for an item. An explicit imageUrl wins,
// then the item's own id, then the id listed in the catalog.
func ImageURL(it items.Item, catalog *market.Catalog, template string) string {
	if it.ImageURL != "" {
		return it.ImageURL
	}
	if template == "" {
		return ""
	}

	id := it.ItemID
	if id == "" {
		var ok bool
		id, ok = catalog.ItemID(it.Name)
		if !ok {
			log.Debug().Str("item", it.Name).Msg("No image id for item")
			return ""
		}
	}
	return strings.ReplaceAll(template, IDPlaceholder, string(id))
}
