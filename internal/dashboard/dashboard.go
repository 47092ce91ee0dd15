package dashboard

import (
	"context"
	"errors"
	"time"

	"market_board/internal/items"
	"market_board/internal/market"
	"market_board/internal/notifications"
	"market_board/internal/preferences"
	"market_board/internal/projection"
	"market_board/internal/reconcile"
	"market_board/internal/render"
	"market_board/internal/resolution"

	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = time.Minute
	DefaultPollTimeout  = 15 * time.Second
)

// Fetcher downloads the full price list.
type Fetcher interface {
	FetchPrices(ctx context.Context) ([]items.Item, error)
}

// Notifier is told about price moves after each poll.
type Notifier interface {
	NotifyPriceChanges(ctx context.Context, changes []notifications.PriceChange)
}

type Config struct {
	PollInterval  time.Duration
	PollTimeout   time.Duration
	ImageTemplate string
}

// Dashboard owns the item store and the view settings. All mutation happens
// on the goroutine running Run, so polls, push updates and commands are
// applied one at a time.
type Dashboard struct {
	cfg      Config
	fetcher  Fetcher
	store    *reconcile.Store
	prefs    *preferences.Repository
	catalog  *market.Catalog
	renderer render.Renderer
	notifier Notifier
	updates  <-chan items.Patch
	commands chan Command

	filters  projection.Filters
	sort     projection.Sort
	owned    projection.Set
	excluded projection.Set
	status   render.Status
	shown    []render.Row
}

type Option func(*Dashboard)

// WithUpdates feeds push updates into the loop.
func WithUpdates(updates <-chan items.Patch) Option {
	return func(d *Dashboard) { d.updates = updates }
}

func WithNotifier(n Notifier) Option {
	return func(d *Dashboard) { d.notifier = n }
}

func WithCatalog(c *market.Catalog) Option {
	return func(d *Dashboard) { d.catalog = c }
}

func New(cfg Config, fetcher Fetcher, store *reconcile.Store, prefs *preferences.Repository, renderer render.Renderer, opts ...Option) *Dashboard {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}

	d := &Dashboard{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		prefs:    prefs,
		renderer: renderer,
		commands: make(chan Command),
		status:   render.Status{FirstLoad: true},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit hands a command to the running loop.
func (d *Dashboard) Submit(ctx context.Context, cmd Command) error {
	select {
	case d.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls immediately, then on every tick, and applies push updates and
// commands as they arrive. It returns when ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	d.Load(ctx)

	log.Info().
		Dur("poll_interval", d.cfg.PollInterval).
		Dur("poll_timeout", d.cfg.PollTimeout).
		Int("owned", len(d.owned)).
		Int("excluded", len(d.excluded)).
		Msg("Starting dashboard")

	d.Poll(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	updates := d.updates
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Dashboard stopped")
			return ctx.Err()

		case <-ticker.C:
			d.Poll(ctx)

		case p, ok := <-updates:
			if !ok {
				log.Warn().Msg("Push channel closed, continuing with polling only")
				updates = nil
				continue
			}
			d.ApplyPush(ctx, p)

		case cmd := <-d.commands:
			if err := cmd.apply(ctx, d); err != nil {
				log.Warn().Err(err).Msg("Command failed")
			}
		}
	}
}

// Load reads the stored view settings and owned set.
func (d *Dashboard) Load(ctx context.Context) {
	p := d.prefs.LoadPreferences(ctx)
	d.filters = p.Filters
	d.sort = p.Sort
	d.owned = d.prefs.LoadOwned(ctx)
	d.excluded = d.catalog.ExclusionSet()
}

// Poll runs one full refresh. A failed fetch leaves the store untouched.
func (d *Dashboard) Poll(ctx context.Context) {
	d.status.Phase = render.PhaseLoading
	d.render(ctx, nil)

	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, d.cfg.PollTimeout)
	list, err := d.fetcher.FetchPrices(pollCtx)
	cancel()

	d.status.Phase = render.PhaseIdle

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Dur("timeout", d.cfg.PollTimeout).Msg("Price poll timed out")
		} else {
			log.Error().Err(err).Msg("Price poll failed")
		}
		d.status.Outcome = render.OutcomeFailed
		d.status.Err = err
		d.render(ctx, nil)
		return
	}

	summary := d.store.ApplyFullSnapshot(list)
	d.status.FirstLoad = d.store.Len() == 0
	d.status.Err = nil
	if summary.Empty {
		log.Warn().Msg("Price poll returned no items")
		d.status.Outcome = render.OutcomeNoData
	} else {
		d.status.Outcome = render.OutcomeSuccess
		d.status.LastUpdated = time.Now()
	}

	changed := d.store.Changed()
	log.Info().
		Int("items", summary.Count).
		Int("previous", summary.Previous).
		Int("changed", len(changed)).
		Dur("elapsed", time.Since(start)).
		Msg("Price poll complete")

	if summary.Previous > 0 {
		d.notify(ctx, changed)
	}
	d.render(ctx, projection.NewSet(changed...))
}

// ApplyPush merges one pushed record. Malformed records are dropped.
func (d *Dashboard) ApplyPush(ctx context.Context, p items.Patch) {
	change, err := d.store.ApplyIncrementalUpdate(p)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping push update")
		return
	}

	log.Debug().
		Str("item", change.Name).
		Bool("added", change.Added).
		Bool("changed", change.Changed).
		Msg("Applied push update")

	d.status.Outcome = render.OutcomeSuccess
	d.status.FirstLoad = false
	d.status.Err = nil
	d.status.LastUpdated = time.Now()

	highlight := projection.NewSet()
	if change.Changed {
		highlight.Add(change.Name)
	}
	d.render(ctx, highlight)
}

func (d *Dashboard) notify(ctx context.Context, changed []string) {
	if d.notifier == nil {
		return
	}

	var changes []notifications.PriceChange
	for _, name := range changed {
		old, ok := d.store.Previous(name)
		if !ok {
			continue
		}
		cur, ok := d.store.Get(name)
		if !ok || cur.Price == old.Price {
			continue
		}
		changes = append(changes, notifications.PriceChange{Name: name, Old: old.Price, New: cur.Price})
	}
	d.notifier.NotifyPriceChanges(ctx, changes)
}

// View projects the store with the current settings. Rows named in highlight
// are marked changed.
func (d *Dashboard) View(highlight projection.Set) render.View {
	collection := d.store.Items()
	visible := projection.Project(collection, d.filters, d.sort, d.owned, d.excluded)

	rows := make([]render.Row, 0, len(visible))
	for _, it := range visible {
		rows = append(rows, render.Row{
			Item:     it,
			Owned:    d.owned.Has(it.Name),
			ImageURL: resolution.ImageURL(it, d.catalog, d.cfg.ImageTemplate),
			Changed:  highlight.Has(it.Name),
		})
	}
	return render.View{Rows: rows, Status: d.status, Total: len(collection)}
}

func (d *Dashboard) Status() render.Status {
	return d.status
}

func (d *Dashboard) Preferences() preferences.Preferences {
	return preferences.Preferences{Filters: d.filters, Sort: d.sort}
}

// UsePreferences replaces the view settings for this session without saving them.
func (d *Dashboard) UsePreferences(p preferences.Preferences) {
	d.filters = p.Filters.Normalize()
	d.sort = p.Sort.Normalize()
}

func (d *Dashboard) render(ctx context.Context, highlight projection.Set) {
	d.draw(ctx, d.View(highlight))
}

// redrawOwned redraws the last projected rows with fresh owned flags.
func (d *Dashboard) redrawOwned(ctx context.Context) {
	rows := make([]render.Row, len(d.shown))
	for i, r := range d.shown {
		r.Owned = d.owned.Has(r.Item.Name)
		r.Changed = false
		rows[i] = r
	}
	d.draw(ctx, render.View{Rows: rows, Status: d.status, Total: d.store.Len()})
}

func (d *Dashboard) draw(ctx context.Context, v render.View) {
	d.shown = v.Rows
	if err := d.renderer.Render(ctx, v); err != nil {
		log.Warn().Err(err).Msg("Render failed")
	}
}
