// Package broker holds the order gateway adapter: an HTTP client for the
// MT5 bridge sidecar that fronts the MetaTrader terminal. The bridge owns
// the terminal session (connect, login, disconnect); this adapter only
// translates the engine's calls into its REST endpoints:
//   - GET  /tick/{symbol}                  -> {symbol, bid, ask, time}
//   - GET  /account/equity                 -> {equity}
//   - POST /order/market                   -> {ticket, fill_price, volume} | {error}
//   - POST /order/close                    -> {closed} | {error}
//   - GET  /position/{ticket}              -> position | 404
//   - GET  /positions                      -> [position]
//   - GET  /candles?symbol=&timeframe=&limit=
//
// An optional websocket tick stream keeps a last-quote cache so GetTick can
// avoid a round trip per cycle; REST is the fallback when the cache is cold.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tickMaxAge bounds how stale a streamed quote may be before falling back
// to REST.
const tickMaxAge = 2 * time.Second

type MT5Bridge struct {
	baseURL  string
	wsURL    string
	apiToken string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu        sync.Mutex
	wsConn    *websocket.Conn
	lastTicks map[string]*domain.Tick
}

func NewMT5Bridge(baseURL, wsURL, apiToken string, logger *zap.Logger) *MT5Bridge {
	return &MT5Bridge{
		baseURL:  strings.TrimRight(baseURL, "/"),
		wsURL:    wsURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 10 * time.Second},
		// The bridge proxies a single terminal session; keep request
		// bursts gentle.
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		logger:    logger,
		lastTicks: make(map[string]*domain.Tick),
	}
}

// --- REST ---

func (b *MT5Bridge) sendRequest(ctx context.Context, method, path string, payload any, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &domain.TransientError{Op: method + " " + path, Err: err}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiToken != "" {
		req.Header.Set("X-API-TOKEN", b.apiToken)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &domain.TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransientError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Only the ticket lookup uses 404 as a signal; anywhere else it
		// means a bad route, not a closed position.
		if strings.HasPrefix(path, "/position/") {
			return domain.ErrPositionNotFound
		}
		return &domain.RejectionError{Op: method + " " + path, Reason: "not found"}
	case resp.StatusCode >= 500:
		return &domain.TransientError{
			Op:  method + " " + path,
			Err: fmt.Errorf("bridge %d: %s", resp.StatusCode, string(respBody)),
		}
	case resp.StatusCode >= 400:
		// Business refusal, e.g. insufficient margin or volume below
		// the broker minimum.
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &e)
		if e.Error == "" {
			e.Error = string(respBody)
		}
		return &domain.RejectionError{Op: method + " " + path, Reason: e.Error}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func (b *MT5Bridge) GetTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	b.mu.Lock()
	cached := b.lastTicks[symbol]
	b.mu.Unlock()
	if cached != nil && time.Since(cached.Time) < tickMaxAge {
		cp := *cached
		return &cp, nil
	}

	var tick domain.Tick
	if err := b.sendRequest(ctx, http.MethodGet, "/tick/"+url.PathEscape(symbol), nil, &tick); err != nil {
		return nil, err
	}
	if tick.Time.IsZero() {
		tick.Time = time.Now()
	}
	return &tick, nil
}

func (b *MT5Bridge) GetAccountEquity(ctx context.Context) (float64, error) {
	var out struct {
		Equity float64 `json:"equity"`
	}
	if err := b.sendRequest(ctx, http.MethodGet, "/account/equity", nil, &out); err != nil {
		return 0, err
	}
	return out.Equity, nil
}

func (b *MT5Bridge) SubmitMarketOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	payload := map[string]any{
		"client_id": req.ClientID,
		"symbol":    req.Symbol,
		"direction": req.Direction,
		"volume":    req.Volume,
	}
	if req.StopLoss > 0 {
		payload["stop_loss"] = req.StopLoss
	}

	var out struct {
		Ticket    string  `json:"ticket"`
		FillPrice float64 `json:"fill_price"`
		Volume    float64 `json:"volume"`
	}
	if err := b.sendRequest(ctx, http.MethodPost, "/order/market", payload, &out); err != nil {
		return nil, err
	}
	return &domain.OrderResult{Ticket: out.Ticket, FillPrice: out.FillPrice, Volume: out.Volume}, nil
}

func (b *MT5Bridge) SubmitPartialClose(ctx context.Context, ticket, symbol string, volume float64) error {
	payload := map[string]any{
		"ticket": ticket,
		"symbol": symbol,
		"volume": volume,
	}
	return b.sendRequest(ctx, http.MethodPost, "/order/close", payload, nil)
}

func (b *MT5Bridge) GetOpenPosition(ctx context.Context, ticket string) (*domain.BrokerPosition, error) {
	var pos bridgePosition
	if err := b.sendRequest(ctx, http.MethodGet, "/position/"+url.PathEscape(ticket), nil, &pos); err != nil {
		return nil, err
	}
	return pos.toDomain(), nil
}

func (b *MT5Bridge) ListOpenPositions(ctx context.Context) ([]*domain.BrokerPosition, error) {
	var list []bridgePosition
	if err := b.sendRequest(ctx, http.MethodGet, "/positions", nil, &list); err != nil {
		return nil, err
	}
	out := make([]*domain.BrokerPosition, len(list))
	for i := range list {
		out[i] = list[i].toDomain()
	}
	return out, nil
}

func (b *MT5Bridge) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/candles?symbol=%s&timeframe=%s&limit=%d",
		url.QueryEscape(symbol), url.QueryEscape(timeframe), limit)
	var candles []domain.Candle
	if err := b.sendRequest(ctx, http.MethodGet, path, nil, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

type bridgePosition struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
}

func (p *bridgePosition) toDomain() *domain.BrokerPosition {
	dir := domain.DirectionLong
	if p.Direction == string(domain.DirectionShort) {
		dir = domain.DirectionShort
	}
	return &domain.BrokerPosition{
		Ticket:     p.Ticket,
		Symbol:     p.Symbol,
		Direction:  dir,
		Volume:     p.Volume,
		EntryPrice: p.EntryPrice,
		StopLoss:   p.StopLoss,
	}
}

// --- WebSocket tick stream ---

// ConnectTickStream subscribes to the bridge's streaming quotes for the
// given symbols. Optional: GetTick falls back to REST without it.
func (b *MT5Bridge) ConnectTickStream(symbols []string) error {
	if b.wsURL == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(b.wsURL, nil)
		if err != nil {
			return err
		}
		b.wsConn = c
		go b.readLoop()
	}

	sub := map[string]any{"op": "subscribe", "symbols": symbols}
	return b.wsConn.WriteJSON(sub)
}

func (b *MT5Bridge) readLoop() {
	defer func() {
		b.mu.Lock()
		if b.wsConn != nil {
			b.wsConn.Close()
			b.wsConn = nil
		}
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		conn := b.wsConn
		b.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			b.logger.Warn("tick stream closed, falling back to REST", zap.Error(err))
			return
		}

		var tick domain.Tick
		if err := json.Unmarshal(message, &tick); err != nil {
			b.logger.Warn("bad tick stream message", zap.Error(err))
			continue
		}
		if tick.Symbol == "" || tick.Bid <= 0 || tick.Ask <= 0 {
			continue
		}
		tick.Time = time.Now()

		b.mu.Lock()
		b.lastTicks[tick.Symbol] = &tick
		b.mu.Unlock()
	}
}

// Close shuts the tick stream down.
func (b *MT5Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wsConn != nil {
		b.wsConn.Close()
		b.wsConn = nil
	}
}
