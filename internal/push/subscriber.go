package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"market_board/internal/items"
	"market_board/internal/retry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL       string
	Topic     string
	ClientID  string
	Header    http.Header
	Reconnect retry.Config
}

// Subscriber keeps a websocket subscription to one topic open and turns each
// message into an item patch.
type Subscriber struct {
	cfg     Config
	dialer  *websocket.Dialer
	updates chan items.Patch

	received atomic.Int64
	dropped  atomic.Int64
}

type subscribeRequest struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	ClientID string `json:"clientId"`
}

type envelope struct {
	Type     string          `json:"type"`
	Topic    string          `json:"topic"`
	Data     json.RawMessage `json:"data"`
	ItemName json.RawMessage `json:"itemName"`
}

func NewSubscriber(cfg Config) *Subscriber {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	return &Subscriber{
		cfg:     cfg,
		dialer:  websocket.DefaultDialer,
		updates: make(chan items.Patch, 64),
	}
}

// Updates is closed when Run returns.
func (s *Subscriber) Updates() <-chan items.Patch {
	return s.updates
}

// Stats returns the number of delivered and dropped messages.
func (s *Subscriber) Stats() (received, dropped int64) {
	return s.received.Load(), s.dropped.Load()
}

// Run connects and reconnects until ctx is done.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.updates)

	attempt := 0
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			received, dropped := s.Stats()
			log.Debug().
				Str("topic", s.cfg.Topic).
				Int64("received", received).
				Int64("dropped", dropped).
				Msg("Push subscriber stopped")
			return
		}
		if connected {
			attempt = 0
		}

		delay := retry.Backoff(attempt, s.cfg.Reconnect)
		received, dropped := s.Stats()
		log.Warn().
			Err(err).
			Str("topic", s.cfg.Topic).
			Int64("received", received).
			Int64("dropped", dropped).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Push connection lost, reconnecting")
		attempt++

		if err := retry.Sleep(ctx, delay); err != nil {
			return
		}
	}
}

// session runs one connection. connected reports whether the subscription was established.
func (s *Subscriber) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("failed to dial push channel (status %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("failed to dial push channel: %w", err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	sub := subscribeRequest{Type: "subscribe", Topic: s.cfg.Topic, ClientID: s.cfg.ClientID}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("failed to subscribe to %q: %w", s.cfg.Topic, err)
	}
	log.Info().Str("topic", s.cfg.Topic).Str("client_id", s.cfg.ClientID).Msg("Subscribed to push channel")

	// Unblock ReadMessage when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("push read failed: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		patch, ok, err := s.decode(data)
		if err != nil {
			s.dropped.Add(1)
			log.Warn().Err(err).Str("topic", s.cfg.Topic).Msg("Dropping malformed push message")
			continue
		}
		if !ok {
			continue
		}

		s.received.Add(1)
		select {
		case s.updates <- patch:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// decode accepts a bare item record or a {"type":"message","topic":..,"data":{..}}
// envelope. A frame is an envelope only when it carries data; a bare record
// may have its own type field. ok is false for control frames and other topics.
func (s *Subscriber) decode(data []byte) (items.Patch, bool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return items.Patch{}, false, fmt.Errorf("invalid push message: %w", err)
	}

	payload := data
	switch {
	case len(env.Data) > 0 && string(env.Data) != "null":
		if env.Type != "" && env.Type != "message" {
			log.Debug().Str("type", env.Type).Msg("Ignoring push control message")
			return items.Patch{}, false, nil
		}
		if env.Topic != "" && env.Topic != s.cfg.Topic {
			return items.Patch{}, false, nil
		}
		payload = env.Data
	case env.Type != "" && len(env.ItemName) == 0:
		log.Debug().Str("type", env.Type).Msg("Ignoring push control message")
		return items.Patch{}, false, nil
	}

	patch, err := items.DecodePatch(payload)
	if err != nil {
		return items.Patch{}, false, err
	}
	return patch, true, nil
}
