package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"market_board/internal/preferences"
	"market_board/internal/projection"

	"github.com/rs/zerolog/log"
)

// ErrQuit is returned by ParseCommand for the quit command.
var ErrQuit = errors.New("quit")

// Command is a user action applied on the dashboard goroutine.
type Command interface {
	apply(ctx context.Context, d *Dashboard) error
}

type SetFilters struct {
	Filters projection.Filters
}

func (c SetFilters) apply(ctx context.Context, d *Dashboard) error {
	filters := c.Filters.Normalize()
	if err := filters.Validate(); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	if err := d.prefs.SavePreferences(ctx, preferences.Preferences{Filters: filters, Sort: d.sort}); err != nil {
		return fmt.Errorf("failed to save filters: %w", err)
	}
	d.filters = filters
	d.render(ctx, nil)
	return nil
}

// EditFilters derives new filters from the current ones.
type EditFilters func(projection.Filters) projection.Filters

func (c EditFilters) apply(ctx context.Context, d *Dashboard) error {
	return SetFilters{Filters: c(d.filters)}.apply(ctx, d)
}

type SetSort struct {
	Sort projection.Sort
}

func (c SetSort) apply(ctx context.Context, d *Dashboard) error {
	sort := c.Sort.Normalize()
	if err := d.prefs.SavePreferences(ctx, preferences.Preferences{Filters: d.filters, Sort: sort}); err != nil {
		return fmt.Errorf("failed to save sort: %w", err)
	}
	d.sort = sort
	d.render(ctx, nil)
	return nil
}

// ResetPreferences restores default filters and sort. The owned set is kept.
type ResetPreferences struct{}

func (ResetPreferences) apply(ctx context.Context, d *Dashboard) error {
	defaults := preferences.Defaults()
	if err := d.prefs.SavePreferences(ctx, defaults); err != nil {
		return fmt.Errorf("failed to reset preferences: %w", err)
	}
	d.filters = defaults.Filters
	d.sort = defaults.Sort
	d.render(ctx, nil)
	return nil
}

type ToggleOwned struct {
	Name  string
	Owned bool
}

func (c ToggleOwned) apply(ctx context.Context, d *Dashboard) error {
	if c.Name == "" {
		return errors.New("item name is required")
	}
	if _, ok := d.store.Get(c.Name); !ok {
		log.Warn().Str("item", c.Name).Msg("Marking an item that is not in the current price list")
	}

	owned, err := d.prefs.ToggleOwned(ctx, c.Name, c.Owned)
	if err != nil {
		return fmt.Errorf("failed to save owned items: %w", err)
	}
	d.owned = owned

	reproject := d.filters.NeedsReprojection()
	log.Info().
		Str("item", c.Name).
		Bool("owned", c.Owned).
		Bool("reprojected", reproject).
		Msg("Updated owned item")
	if reproject {
		d.render(ctx, nil)
	} else {
		d.redrawOwned(ctx)
	}
	return nil
}

// Refresh polls immediately instead of waiting for the next tick.
type Refresh struct{}

func (Refresh) apply(ctx context.Context, d *Dashboard) error {
	d.Poll(ctx)
	return nil
}

// ParseCommand parses one line typed in watch mode.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty command")
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "own", "disown":
		name := strings.Join(args, " ")
		if name == "" {
			return nil, fmt.Errorf("usage: %s <item name>", verb)
		}
		return ToggleOwned{Name: name, Owned: verb == "own"}, nil

	case "filter":
		return parseFilter(args)

	case "sort":
		if len(args) == 0 || len(args) > 2 {
			return nil, errors.New("usage: sort <itemName|price|updateTimeUTC> [asc|desc]")
		}
		field, err := projection.ParseField(args[0])
		if err != nil {
			return nil, err
		}
		order := projection.Ascending
		if len(args) == 2 {
			if order, err = projection.ParseOrder(args[1]); err != nil {
				return nil, err
			}
		}
		return SetSort{Sort: projection.Sort{Field: field, Order: order}}, nil

	case "reset":
		return ResetPreferences{}, nil
	case "refresh":
		return Refresh{}, nil
	case "quit", "exit":
		return nil, ErrQuit
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}

func parseFilter(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: filter name <text>|min <n>|max <n>|owned|unowned|all|sets on|off")
	}
	what, rest := strings.ToLower(args[0]), args[1:]

	switch what {
	case "name":
		name := strings.Join(rest, " ")
		return EditFilters(func(f projection.Filters) projection.Filters {
			f.NameSubstring = name
			return f
		}), nil

	case "min", "max":
		bound, err := parseBound(rest)
		if err != nil {
			return nil, err
		}
		return EditFilters(func(f projection.Filters) projection.Filters {
			if what == "min" {
				f.PriceMin = bound
			} else {
				f.PriceMax = bound
			}
			return f
		}), nil

	case "sets":
		if len(rest) != 1 {
			return nil, errors.New("usage: filter sets on|off")
		}
		var include bool
		switch strings.ToLower(rest[0]) {
		case "on":
			include = true
		case "off":
			include = false
		default:
			return nil, fmt.Errorf("expected on or off, got %q", rest[0])
		}
		return EditFilters(func(f projection.Filters) projection.Filters {
			f.ExcludeSetItems = !include
			return f
		}), nil
	}

	ownership, err := projection.ParseOwnership(what)
	if err != nil {
		return nil, err
	}
	return EditFilters(func(f projection.Filters) projection.Filters {
		f.Ownership = ownership
		return f
	}), nil
}

// parseBound reads an optional price bound; no argument clears it.
func parseBound(args []string) (*int64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) > 1 {
		return nil, errors.New("expected a single price")
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(args[0], ",", ""), 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid price %q", args[0])
	}
	return &n, nil
}
