package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"market_board/internal/app"
	"market_board/internal/dashboard"
	"market_board/internal/preferences"
	"market_board/internal/projection"
	"market_board/internal/reconcile"
	"market_board/internal/render"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	s := &session{}
	var prefsBackend, prefsDir string

	cmd := &cobra.Command{
		Use:           "market_board",
		Short:         "Watch marketplace prices and track the items you own",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Live table, refreshed every POLL_INTERVAL and on push updates
  market_board watch

  # One-shot listing with temporary filters
  market_board list --name kit --max 5000 --sort price

  # Persisted settings
  market_board own "Small First Aid Kit"
  market_board filter --ownership unowned --exclude-sets
  market_board sort updateTimeUTC desc
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s.cfg = app.LoadConfig()
			if cmd.Flags().Changed("prefs-backend") {
				s.cfg.PrefsBackend = prefsBackend
			}
			if cmd.Flags().Changed("prefs-dir") {
				s.cfg.PrefsDir = prefsDir
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&prefsBackend, "prefs-backend", "file", "Preferences store (file|sqlite|badger); overrides PREFS_BACKEND")
	cmd.PersistentFlags().StringVar(&prefsDir, "prefs-dir", "", "Directory holding the preferences store; overrides PREFS_DIR")

	watch := newWatchCmd(s)
	cmd.RunE = watch.RunE
	cmd.Flags().AddFlagSet(watch.Flags())

	cmd.AddCommand(watch)
	cmd.AddCommand(newListCmd(s))
	cmd.AddCommand(newOwnCmd(s, true))
	cmd.AddCommand(newOwnCmd(s, false))
	cmd.AddCommand(newFilterCmd(s))
	cmd.AddCommand(newSortCmd(s))
	cmd.AddCommand(newPrefsCmd(s))
	cmd.AddCommand(newResetCmd(s))

	return cmd
}

func newWatchCmd(s *session) *cobra.Command {
	var noClear, noInput bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the live price table",
		Long: strings.TrimSpace(`
Polls the price list immediately and then every POLL_INTERVAL, applies push
updates as they arrive and redraws the table after each change.

Commands can be typed while watching:
  own <item>            mark an item as owned
  disown <item>         unmark an item
  filter name <text>    filter by name (no text clears)
  filter min|max <n>    price bounds (no number clears)
  filter owned|unowned|all
  filter sets on|off    show or hide set items
  sort <field> [asc|desc]
  reset                 restore default filters and sort
  refresh               poll now
  quit
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.runWatch(ctx, cmd.OutOrStdout(), cmd.InOrStdin(), !noClear, !noInput)
		},
	}

	cmd.Flags().BoolVar(&noClear, "no-clear", false, "Append each redraw instead of clearing the screen")
	cmd.Flags().BoolVar(&noInput, "no-input", false, "Do not read commands from stdin")
	return cmd
}

// filterFlags are the filter options shared by list and filter.
type filterFlags struct {
	name        string
	min         int64
	max         int64
	noMin       bool
	noMax       bool
	ownership   string
	excludeSets bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Case-insensitive name substring")
	cmd.Flags().Int64Var(&f.min, "min", 0, "Minimum price")
	cmd.Flags().Int64Var(&f.max, "max", 0, "Maximum price")
	cmd.Flags().BoolVar(&f.noMin, "no-min", false, "Clear the minimum price")
	cmd.Flags().BoolVar(&f.noMax, "no-max", false, "Clear the maximum price")
	cmd.Flags().StringVar(&f.ownership, "ownership", "all", "Ownership filter (all|owned|unowned)")
	cmd.Flags().BoolVar(&f.excludeSets, "exclude-sets", false, "Hide items that belong to sets")
}

// apply changes only the fields whose flags were given.
func (f *filterFlags) apply(cmd *cobra.Command, filters projection.Filters) (projection.Filters, error) {
	changed := cmd.Flags().Changed

	if changed("name") {
		filters.NameSubstring = f.name
	}
	if changed("min") {
		if f.min < 0 {
			return filters, fmt.Errorf("--min must not be negative")
		}
		filters.PriceMin = &f.min
	}
	if changed("max") {
		if f.max < 0 {
			return filters, fmt.Errorf("--max must not be negative")
		}
		filters.PriceMax = &f.max
	}
	if f.noMin {
		filters.PriceMin = nil
	}
	if f.noMax {
		filters.PriceMax = nil
	}
	if changed("ownership") {
		o, err := projection.ParseOwnership(f.ownership)
		if err != nil {
			return filters, err
		}
		filters.Ownership = o
	}
	if changed("exclude-sets") {
		filters.ExcludeSetItems = f.excludeSets
	}
	return filters, filters.Validate()
}

func parseSort(field, order string) (projection.Sort, error) {
	f, err := projection.ParseField(field)
	if err != nil {
		return projection.Sort{}, err
	}
	o, err := projection.ParseOrder(order)
	if err != nil {
		return projection.Sort{}, err
	}
	return projection.Sort{Field: f, Order: o}, nil
}

func newListCmd(s *session) *cobra.Command {
	var filters filterFlags
	var sortField, sortOrder string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch prices once and print the table",
		Long:  "Fetches the price list once and prints it with the saved filters and sort. Flags override the saved settings for this run only.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeRepo, err := s.openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			client := app.InitializeMarketClient(s.cfg)
			catalog := app.LoadCatalog(ctx, client)

			d := dashboard.New(s.dashboardConfig(), client, reconcile.NewStore(), repo,
				settled{next: render.NewTerminal(cmd.OutOrStdout(), false)},
				dashboard.WithCatalog(catalog))
			d.Load(ctx)

			p := d.Preferences()
			if p.Filters, err = filters.apply(cmd, p.Filters); err != nil {
				return err
			}
			if cmd.Flags().Changed("sort") || cmd.Flags().Changed("order") {
				field, order := string(p.Sort.Field), string(p.Sort.Order)
				if cmd.Flags().Changed("sort") {
					field = sortField
				}
				if cmd.Flags().Changed("order") {
					order = sortOrder
				}
				if p.Sort, err = parseSort(field, order); err != nil {
					return err
				}
			}
			d.UsePreferences(p)

			d.Poll(ctx)
			if status := d.Status(); status.Outcome == render.OutcomeFailed {
				return fmt.Errorf("failed to fetch prices: %w", status.Err)
			}
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&sortField, "sort", "itemName", "Sort field (itemName|price|updateTimeUTC)")
	cmd.Flags().StringVar(&sortOrder, "order", "asc", "Sort order (asc|desc)")
	return cmd
}

func newOwnCmd(s *session, owned bool) *cobra.Command {
	use, short := "own <item name>", "Mark an item as owned"
	if !owned {
		use, short = "disown <item name>", "Unmark an owned item"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeRepo, err := s.openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			name := strings.Join(args, " ")
			set, err := repo.ToggleOwned(ctx, name, owned)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d owned items\n", len(set))
			return nil
		},
	}
}

func newFilterCmd(s *session) *cobra.Command {
	var filters filterFlags
	var fromDefaults bool

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Change the saved filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.updatePreferences(cmd, func(p *preferences.Preferences) error {
				if fromDefaults {
					p.Filters = projection.DefaultFilters()
				}
				var err error
				p.Filters, err = filters.apply(cmd, p.Filters)
				return err
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&fromDefaults, "clear", false, "Start from the default filters")
	return cmd
}

func newSortCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sort <itemName|price|updateTimeUTC> [asc|desc]",
		Short: "Change the saved sort",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order := ""
			if len(args) == 2 {
				order = args[1]
			}
			sort, err := parseSort(args[0], order)
			if err != nil {
				return err
			}
			return s.updatePreferences(cmd, func(p *preferences.Preferences) error {
				p.Sort = sort
				return nil
			})
		},
	}
}

func newResetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default filters and sort",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.updatePreferences(cmd, func(p *preferences.Preferences) error {
				*p = preferences.Defaults()
				return nil
			})
		},
	}
}

func newPrefsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show the saved filters, sort and owned items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeRepo, err := s.openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()
			return writePreferences(cmd, repo.LoadPreferences(ctx), repo.LoadOwned(ctx))
		},
	}
}

func (s *session) updatePreferences(cmd *cobra.Command, edit func(*preferences.Preferences) error) error {
	ctx := cmd.Context()
	repo, closeRepo, err := s.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	p := repo.LoadPreferences(ctx)
	if err := edit(&p); err != nil {
		return err
	}
	if err := repo.SavePreferences(ctx, p); err != nil {
		return err
	}
	return writePreferences(cmd, repo.LoadPreferences(ctx), repo.LoadOwned(ctx))
}

func writePreferences(cmd *cobra.Command, p preferences.Preferences, owned projection.Set) error {
	out := struct {
		Filters projection.Filters `json:"filters"`
		Sort    projection.Sort    `json:"sort"`
		Owned   []string           `json:"owned"`
	}{p.Filters, p.Sort, owned.Names()}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
