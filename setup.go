package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"market_board/internal/app"
	"market_board/internal/config"
	"market_board/internal/dashboard"
	"market_board/internal/preferences"
	"market_board/internal/push"
	"market_board/internal/reconcile"
	"market_board/internal/render"

	"github.com/rs/zerolog/log"
)

// session carries the configuration shared by every command.
type session struct {
	cfg app.Config
}

func (s *session) openRepository(ctx context.Context) (*preferences.Repository, func(), error) {
	kv, err := preferences.Open(ctx, s.cfg.PrefsBackend, s.cfg.PrefsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s preferences in %s: %w", s.cfg.PrefsBackend, s.cfg.PrefsDir, err)
	}
	log.Debug().Str("backend", s.cfg.PrefsBackend).Str("dir", s.cfg.PrefsDir).Msg("Opened preferences")

	closeFn := func() {
		if err := kv.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close preferences")
		}
	}
	return preferences.NewRepository(kv), closeFn, nil
}

func (s *session) dashboardConfig() dashboard.Config {
	return dashboard.Config{
		PollInterval:  s.cfg.PollInterval,
		PollTimeout:   s.cfg.PollTimeout,
		ImageTemplate: s.cfg.ImageTemplate,
	}
}

// startPush subscribes to the push channel when one is configured.
func (s *session) startPush(ctx context.Context) (dashboard.Option, bool) {
	if s.cfg.PushURL == "" {
		log.Debug().Msg("No push channel configured, polling only")
		return nil, false
	}

	header := http.Header{}
	if s.cfg.MarketAPIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.MarketAPIKey)
	}

	sub := push.NewSubscriber(push.Config{
		URL:       s.cfg.PushURL,
		Topic:     s.cfg.PushTopic,
		Header:    header,
		Reconnect: config.DefaultResilienceConfig.PushReconnect,
	})
	go sub.Run(ctx)

	log.Info().Str("url", s.cfg.PushURL).Str("topic", s.cfg.PushTopic).Msg("Subscribed to push updates")
	return dashboard.WithUpdates(sub.Updates()), true
}

func (s *session) runWatch(ctx context.Context, out io.Writer, in io.Reader, clearScreen, readInput bool) error {
	repo, closeRepo, err := s.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	client := app.InitializeMarketClient(s.cfg)
	catalog := app.LoadCatalog(ctx, client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderers := render.Multi{render.NewTerminal(out, clearScreen)}
	if exporter := app.InitializeSheetsExporter(ctx, s.cfg); exporter != nil {
		go exporter.Run(ctx)
		renderers = append(renderers, exporter)
	}

	opts := []dashboard.Option{
		dashboard.WithCatalog(catalog),
		dashboard.WithNotifier(app.InitializeNotificationClient()),
	}
	if opt, ok := s.startPush(ctx); ok {
		opts = append(opts, opt)
	}

	d := dashboard.New(s.dashboardConfig(), client, reconcile.NewStore(), repo, renderers, opts...)
	if readInput {
		go readCommands(ctx, in, d, cancel)
	}

	err = d.Run(ctx)
	log.Debug().Int64("api_calls", client.GetAPICallCount()).Msg("Watch finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readCommands feeds typed lines to the dashboard until quit or end of input.
func readCommands(ctx context.Context, in io.Reader, d *dashboard.Dashboard, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := dashboard.ParseCommand(line)
		if errors.Is(err, dashboard.ErrQuit) {
			quit()
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("input", line).Msg("Ignoring command")
			continue
		}
		if err := d.Submit(ctx, cmd); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Stopped reading commands")
	}
}

// settled drops in-progress views so one-shot output holds only the result.
type settled struct {
	next render.Renderer
}

func (s settled) Render(ctx context.Context, v render.View) error {
	if v.Status.Phase == render.PhaseLoading {
		return nil
	}
	return s.next.Render(ctx, v)
}
