package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/usecase"
)

func TestInstrumentRegistry_LookupAndOrder(t *testing.T) {
	registry, err := usecase.NewInstrumentRegistry([]domain.Instrument{eurusd, gbpusd})
	require.NoError(t, err)

	inst, ok := registry.Get("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 0.0001, inst.Point)

	_, ok = registry.Get("USDCHF")
	assert.False(t, ok)

	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, registry.Symbols())
}

func TestInstrumentRegistry_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name        string
		instruments []domain.Instrument
	}{
		{"empty set", nil},
		{"empty symbol", []domain.Instrument{{Point: 0.0001, PipValue: 10, MinLot: 0.01, LotStep: 0.01}}},
		{"duplicate symbol", []domain.Instrument{eurusd, eurusd}},
		{"zero point", []domain.Instrument{{Symbol: "EURUSD", PipValue: 10, MinLot: 0.01, LotStep: 0.01}}},
		{"zero lot step", []domain.Instrument{{Symbol: "EURUSD", Point: 0.0001, PipValue: 10, MinLot: 0.01}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := usecase.NewInstrumentRegistry(tc.instruments)
			require.Error(t, err)
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}
