package items

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMissingName = errors.New("item record has no itemName")

// Patch is a partial item record from a push message. Nil fields were not
// present in the message and must be left untouched on merge.
type Patch struct {
	Name       string
	Price      *Price
	UpdateTime *Timestamp
	ImageURL   *string
	ItemID     *ID
}

// Item builds a full record from the patch, for when no existing record exists.
func (p Patch) Item() Item {
	it := Item{Name: p.Name}
	p.ApplyTo(&it)
	return it
}

// ApplyTo overwrites the fields of it that are present in the patch.
func (p Patch) ApplyTo(it *Item) {
	if p.Price != nil {
		it.Price = *p.Price
	}
	if p.UpdateTime != nil {
		it.UpdateTime = *p.UpdateTime
	}
	if p.ImageURL != nil {
		it.ImageURL = *p.ImageURL
	}
	if p.ItemID != nil {
		it.ItemID = *p.ItemID
	}
}

// DecodePatch parses a single-item push message.
func DecodePatch(b []byte) (Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Patch{}, fmt.Errorf("failed to decode item update: %w", err)
	}

	var p Patch
	if raw, ok := fields["itemName"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &p.Name); err != nil {
			return Patch{}, fmt.Errorf("invalid itemName: %w", err)
		}
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Patch{}, ErrMissingName
	}

	if raw, ok := fields["price"]; ok {
		var price Price
		if err := price.UnmarshalJSON(raw); err != nil {
			return Patch{}, err
		}
		p.Price = &price
	}
	if raw, ok := fields["updateTimeUTC"]; ok {
		var ts Timestamp
		if err := ts.UnmarshalJSON(raw); err != nil {
			return Patch{}, err
		}
		p.UpdateTime = &ts
	}
	if raw, ok := fields["imageUrl"]; ok {
		var s string
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &s); err != nil {
				return Patch{}, fmt.Errorf("invalid imageUrl: %w", err)
			}
		}
		p.ImageURL = &s
	}
	if raw, ok := fields["itemId"]; ok {
		var id ID
		if err := id.UnmarshalJSON(raw); err != nil {
			return Patch{}, err
		}
		p.ItemID = &id
	}
	return p, nil
}

// DecodeSnapshot parses a full price list: a JSON object mapping item name to
// its record. Document order is preserved and a repeated name replaces the
// earlier record in place.
func DecodeSnapshot(r io.Reader) ([]Item, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read price list: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("price list must be a JSON object, got %v", tok)
	}

	var out []Item
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read item name: %w", err)
		}
		name, _ := tok.(string)

		var it Item
		if err := dec.Decode(&it); err != nil {
			return nil, fmt.Errorf("failed to decode item %q: %w", name, err)
		}
		it.Name = name

		if i, ok := index[name]; ok {
			out[i] = it
			continue
		}
		index[name] = len(out)
		out = append(out, it)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read end of price list: %w", err)
	}
	return out, nil
}
