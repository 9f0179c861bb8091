package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"go.uber.org/zap"
)

func testCandles(lastClose float64) []domain.Candle {
	return []domain.Candle{
		{Time: time.Now().Add(-time.Hour).Unix(), Open: 1.0990, High: 1.1010, Low: 1.0980, Close: 1.1000},
		{Time: time.Now().Unix(), Open: 1.1000, High: lastClose + 0.001, Low: 1.0990, Close: lastClose},
	}
}

func predictServer(t *testing.T, prediction []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Features, 2)

		json.NewEncoder(w).Encode(predictResponse{Prediction: prediction})
	}))
}

func TestClient_LongWhenPredictionAboveClose(t *testing.T) {
	srv := predictServer(t, []float64{1.1050})
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	sig, err := client.GetSignal(context.Background(), "EURUSD", testCandles(1.1000))
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
	assert.Equal(t, 1.1050, sig.TargetPrice)
	assert.Equal(t, "forecast", sig.Source)
}

func TestClient_ShortWhenPredictionBelowClose(t *testing.T) {
	srv := predictServer(t, []float64{1.0950})
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	sig, err := client.GetSignal(context.Background(), "EURUSD", testCandles(1.1000))
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionShort, sig.Direction)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	_, err := client.GetSignal(context.Background(), "EURUSD", testCandles(1.1000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_ConnectionFailureIsTransient(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", zap.NewNop())
	_, err := client.GetSignal(context.Background(), "EURUSD", testCandles(1.1000))
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_EmptyPrediction(t *testing.T) {
	srv := predictServer(t, nil)
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	_, err := client.GetSignal(context.Background(), "EURUSD", testCandles(1.1000))
	assert.Error(t, err)
}

func TestClient_NoCandles(t *testing.T) {
	client := NewClient("http://unused", zap.NewNop())
	_, err := client.GetSignal(context.Background(), "EURUSD", nil)
	assert.Error(t, err)
}
