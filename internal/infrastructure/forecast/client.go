// Package forecast is the HTTP signal source backed by the external
// price-forecasting service. The service is a black box: we POST recent
// candles and get back a predicted price; direction is the prediction
// relative to the last close.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitos/forex_trade_ladder/internal/domain"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type predictRequest struct {
	Features []candleFeatures `json:"features"`
}

type candleFeatures struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type predictResponse struct {
	Prediction []float64 `json:"prediction"`
}

func (c *Client) GetSignal(ctx context.Context, symbol string, candles []domain.Candle) (*domain.Signal, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("forecast %s: no candles", symbol)
	}

	payload := predictRequest{Features: make([]candleFeatures, len(candles))}
	for i, cd := range candles {
		payload.Features[i] = candleFeatures{Open: cd.Open, High: cd.High, Low: cd.Low, Close: cd.Close}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "forecast predict", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("forecast %s: status %d: %s", symbol, resp.StatusCode, string(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("forecast %s: decode: %w", symbol, err)
	}
	if len(out.Prediction) == 0 {
		return nil, fmt.Errorf("forecast %s: empty prediction", symbol)
	}

	predicted := out.Prediction[len(out.Prediction)-1]
	lastClose := candles[len(candles)-1].Close

	dir := domain.DirectionShort
	if predicted > lastClose {
		dir = domain.DirectionLong
	}

	c.logger.Debug("forecast signal",
		zap.String("symbol", symbol),
		zap.Float64("predicted", predicted),
		zap.Float64("last_close", lastClose),
		zap.String("direction", string(dir)))

	return &domain.Signal{
		Direction:   dir,
		TargetPrice: predicted,
		GeneratedAt: time.Now(),
		Source:      "forecast",
	}, nil
}
