package items

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Item is a single marketplace listing. Name is the unique key within a collection.
type Item struct {
	Name       string    `json:"itemName"`
	Price      Price     `json:"price"`
	UpdateTime Timestamp `json:"updateTimeUTC"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	ItemID     ID        `json:"itemId,omitempty"`
}

// Price is either a purchasable amount or unavailable. The zero value is unavailable.
type Price struct {
	amount    int64
	available bool
}

// unavailableWire is what the upstream feed sends for items nobody is selling.
const unavailableWire = -1

func Purchasable(amount int64) Price {
	if amount < 0 {
		return Unavailable()
	}
	return Price{amount: amount, available: true}
}

func Unavailable() Price {
	return Price{}
}

func (p Price) Available() bool {
	return p.available
}

// Amount returns the price and whether the item can be bought at all.
func (p Price) Amount() (int64, bool) {
	return p.amount, p.available
}

func (p Price) String() string {
	if !p.available {
		return "unavailable"
	}
	return strconv.FormatInt(p.amount, 10)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.available {
		return []byte(strconv.Itoa(unavailableWire)), nil
	}
	return []byte(strconv.FormatInt(p.amount, 10)), nil
}

// UnmarshalJSON maps null and any negative number to Unavailable.
func (p *Price) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*p = Unavailable()
		return nil
	}
	n, err := parseInt(b)
	if err != nil {
		return fmt.Errorf("invalid price %s: %w", string(b), err)
	}
	*p = Purchasable(n)
	return nil
}

// Timestamp is the raw update time as sent upstream. The feed mixes seconds
// and milliseconds, so the unit is inferred from the magnitude.
type Timestamp int64

// Anything at or above this is treated as milliseconds. 1e11 seconds is
// year 5138, 1e11 milliseconds is March 1973.
const millisecondThreshold = 100_000_000_000

// Time converts the timestamp to a time.Time. ok is false for a zero timestamp.
func (t Timestamp) Time() (time.Time, bool) {
	if t <= 0 {
		return time.Time{}, false
	}
	if t >= millisecondThreshold {
		return time.UnixMilli(int64(t)), true
	}
	return time.Unix(int64(t), 0), true
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*t = 0
		return nil
	}
	n, err := parseInt(b)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", string(b), err)
	}
	*t = Timestamp(n)
	return nil
}

// ID identifies an item for image lookups. Upstream sends it as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid item id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func parseInt(b []byte) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
