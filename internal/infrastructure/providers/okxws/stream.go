package okxws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/assetrank/internal/telemetry"
)

// TickHandler receives each live ticker update.
type TickHandler func(tick Tick)

// Tick is one live price update from the tickers channel.
type Tick struct {
	InstID string
	Last   float64
	Vol24h float64
	TS     time.Time
}

// Stream maintains one OKX public WebSocket connection and streams the
// tickers channel for subscribed instruments into a TickHandler and the
// live-price gauge.
type Stream struct {
	baseURL     string
	conn        *websocket.Conn
	mu          sync.RWMutex
	handler     TickHandler
	subscribed  map[string]bool
	reconnectCh chan struct{}
	closeCh     chan struct{}
	isConnected bool
}

type subscribeRequest struct {
	Op   string       `json:"op"`
	Args []channelArg `json:"args"`
}

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type streamMessage struct {
	Event string          `json:"event"`
	Arg   channelArg      `json:"arg"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Vol24h string `json:"vol24h"`
	TS     string `json:"ts"`
}

// NewStream creates a ticker stream client. An empty baseURL uses the OKX
// public endpoint.
func NewStream(baseURL string) *Stream {
	if baseURL == "" {
		baseURL = "wss://ws.okx.com:8443/ws/v5/public"
	}

	return &Stream{
		baseURL:     baseURL,
		subscribed:  make(map[string]bool),
		reconnectCh: make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
	}
}

// SetTickHandler sets the callback invoked for each ticker update.
func (s *Stream) SetTickHandler(handler TickHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return fmt.Errorf("already connected")
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	log.Info().Str("url", s.baseURL).Msg("Connecting to OKX WebSocket")

	// Copy so the handshake timeout never leaks into the shared default.
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 30 * time.Second

	headers := make(map[string][]string)
	headers["User-Agent"] = []string{"assetrank/1.0 (Exchange-Native WebSocket)"}

	conn, _, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("WebSocket connection failed: %w", err)
	}

	s.conn = conn
	s.isConnected = true

	go s.messageLoop(ctx)
	go s.pingLoop(ctx)

	log.Info().Msg("OKX WebSocket connected")
	return nil
}

// SubscribeTickers subscribes to the tickers channel for the given
// instruments.
func (s *Stream) SubscribeTickers(instIDs []string) error {
	if len(instIDs) == 0 {
		return fmt.Errorf("no instruments to subscribe")
	}

	args := make([]channelArg, 0, len(instIDs))
	for _, instID := range instIDs {
		args = append(args, channelArg{Channel: "tickers", InstID: instID})
	}

	return s.send(subscribeRequest{Op: "subscribe", Args: args})
}

// IsConnected reports whether the connection is up.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// Subscribed returns the instruments with confirmed subscriptions.
func (s *Stream) Subscribed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.subscribed))
	for instID := range s.subscribed {
		out = append(out, instID)
	}
	return out
}

// ReconnectChannel signals when the connection dropped and a reconnect is
// needed.
func (s *Stream) ReconnectChannel() <-chan struct{} {
	return s.reconnectCh
}

// Close tears down the connection and stops all loops.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isConnected {
		return nil
	}

	close(s.closeCh)

	err := s.conn.Close()
	s.conn = nil
	s.isConnected = false

	log.Info().Msg("OKX WebSocket connection closed")
	return err
}

func (s *Stream) send(req subscribeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isConnected {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().RawJSON("request", data).Msg("Sending WebSocket subscription")

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	return nil
}

func (s *Stream) messageLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("WebSocket message loop panic")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return
		default:
			// Close may nil out s.conn concurrently; read a snapshot.
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Msg("WebSocket closed unexpectedly")
					s.triggerReconnect()
					return
				}
				log.Error().Err(err).Msg("WebSocket read error")
				s.triggerReconnect()
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}

			if err := s.processMessage(data); err != nil {
				log.Error().Err(err).Msg("Failed to process WebSocket message")
			}
		}
	}
}

func (s *Stream) processMessage(data []byte) error {
	// The server answers text pings with "pong".
	if string(data) == "pong" {
		return nil
	}

	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Event {
	case "subscribe":
		s.mu.Lock()
		s.subscribed[msg.Arg.InstID] = true
		s.mu.Unlock()

		log.Info().
			Str("channel", msg.Arg.Channel).
			Str("inst_id", msg.Arg.InstID).
			Msg("WebSocket subscription confirmed")
		return nil
	case "error":
		return fmt.Errorf("stream error: %s - %s", msg.Code, msg.Msg)
	}

	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return nil
	}
	return s.handleTickerData(msg.Data)
}

func (s *Stream) handleTickerData(data json.RawMessage) error {
	var rows []tickerData
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse ticker data: %w", err)
	}

	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	for _, row := range rows {
		tick := Tick{
			InstID: row.InstID,
			Last:   parseFloat(row.Last),
			Vol24h: parseFloat(row.Vol24h),
			TS:     parseMillis(row.TS),
		}

		telemetry.LivePrice.WithLabelValues(tick.InstID).Set(tick.Last)

		if handler != nil {
			handler(tick)
		}
	}
	return nil
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				log.Error().Err(err).Msg("WebSocket ping failed")
				s.triggerReconnect()
				return
			}
		}
	}
}

func (s *Stream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isConnected {
		return fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	// OKX expects a text "ping" rather than a control frame.
	return s.conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}

func (s *Stream) triggerReconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
