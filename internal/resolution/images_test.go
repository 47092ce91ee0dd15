package resolution

import (
	"testing"

	"market_board/internal/items"
	"market_board/internal/market"
)

func TestImageURL(t *testing.T) {
	catalog := market.NewCatalog(map[string]map[string]items.ID{
		"normal": {"Binoculars": "1258"},
	})
	template := "https://img.example.com/items/{id}/large.png"

	tests := []struct {
		name string
		item items.Item
		want string
	}{
		{"explicit url wins", items.Item{Name: "Binoculars", ImageURL: "https://cdn/b.png", ItemID: "9"}, "https://cdn/b.png"},
		{"item id", items.Item{Name: "Binoculars", ItemID: "9"}, "https://img.example.com/items/9/large.png"},
		{"catalog id", items.Item{Name: "Binoculars"}, "https://img.example.com/items/1258/large.png"},
		{"unknown", items.Item{Name: "Mystery"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageURL(tt.item, catalog, template); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestImageURLWithoutTemplate(t *testing.T) {
	if got := ImageURL(items.Item{Name: "Binoculars", ItemID: "9"}, nil, ""); got != "" {
		t.Errorf("Expected no url without a template, got %q", got)
	}
}
