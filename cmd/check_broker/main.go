package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/broker"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bridge struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"bridge"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing MT5 bridge at %s...\n", cfg.Bridge.RESTEndpoint)

	log := zap.NewNop()
	gateway := broker.NewMT5Bridge(cfg.Bridge.RESTEndpoint, "", os.Getenv("BRIDGE_API_TOKEN"), log)
	ctx := context.Background()

	symbol := "EURUSD"
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	tick, err := gateway.GetTick(ctx, symbol)
	if err != nil {
		fmt.Printf("❌ Failed to get tick: %v\n", err)
	} else {
		fmt.Printf("✅ Tick (%s): bid=%f ask=%f\n", symbol, tick.Bid, tick.Ask)
	}

	equity, err := gateway.GetAccountEquity(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get equity: %v\n", err)
	} else {
		fmt.Printf("✅ Account equity: %f\n", equity)
	}

	candles, err := gateway.GetCandles(ctx, symbol, "H1", 10)
	if err != nil {
		fmt.Printf("❌ Failed to get candles: %v\n", err)
	} else {
		fmt.Printf("✅ Got %d candles, last close: %f\n", len(candles), candles[len(candles)-1].Close)
	}

	positions, err := gateway.ListOpenPositions(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to list positions: %v\n", err)
	} else {
		fmt.Printf("✅ Open positions: %d\n", len(positions))
	}
}
