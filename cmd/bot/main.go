package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/broker"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/forecast"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/logger"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/storage"
	"github.com/vitos/forex_trade_ladder/internal/usecase"
	"github.com/vitos/forex_trade_ladder/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bridge struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"bridge"`
	Forecast struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"forecast"`
	Risk struct {
		Fraction float64              `yaml:"fraction"`
		StopPips float64              `yaml:"stop_pips"`
		Ladder   []usecase.LadderStep `yaml:"ladder"`
	} `yaml:"risk"`
	Instruments []domain.Instrument `yaml:"instruments"`
	Scheduler   struct {
		IntervalSec int `yaml:"interval_sec"`
		Workers     int `yaml:"workers"`
	} `yaml:"scheduler"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"` // empty means stderr
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
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
	// 1. Load Config (.env carries the bridge token so secrets stay out of YAML)
	_ = godotenv.Load()

	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Validate trading parameters; bad risk/ladder config is fatal here,
	// never discovered mid-cycle.
	ladder, err := usecase.NewExitLadder(cfg.Risk.Ladder)
	if err != nil {
		log.Fatal("Invalid exit ladder", zap.Error(err))
	}
	registry, err := usecase.NewInstrumentRegistry(cfg.Instruments)
	if err != nil {
		log.Fatal("Invalid instrument config", zap.Error(err))
	}
	if cfg.Risk.Fraction <= 0 || cfg.Risk.Fraction > 1 || cfg.Risk.StopPips <= 0 {
		log.Fatal("Invalid risk config",
			zap.Float64("fraction", cfg.Risk.Fraction),
			zap.Float64("stop_pips", cfg.Risk.StopPips))
	}

	// 4. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 5. Init Broker Gateway
	gateway := broker.NewMT5Bridge(
		cfg.Bridge.RESTEndpoint,
		cfg.Bridge.WSEndpoint,
		os.Getenv("BRIDGE_API_TOKEN"),
		log,
	)
	defer gateway.Close()
	if err := gateway.ConnectTickStream(registry.Symbols()); err != nil {
		log.Warn("Tick stream unavailable, using REST quotes", zap.Error(err))
	}

	// 6. Init Signal Source
	var signals domain.SignalSource
	if cfg.Forecast.Enabled {
		signals = forecast.NewClient(cfg.Forecast.URL, log)
	} else {
		signals = usecase.NewIndicatorSignalSource(log)
	}

	// 7. Init Lifecycle Manager and rebuild the registry from checkpoints
	risk := usecase.RiskParameters{
		RiskFraction: cfg.Risk.Fraction,
		StopPips:     cfg.Risk.StopPips,
		Ladder:       ladder,
	}
	manager := usecase.NewLifecycleManager(gateway, store, registry, risk, log)
	if err := manager.Restore(context.Background()); err != nil {
		log.Error("Failed to restore positions, starting with empty registry", zap.Error(err))
	}

	// 8. Init Scheduler
	interval := time.Duration(cfg.Scheduler.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	scheduler := usecase.NewScheduler(registry, signals, manager, gateway, interval, cfg.Scheduler.Workers, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedDone)
	}()

	// 9. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, manager, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 10. Wait for Shutdown; the in-flight cycle finishes before we exit
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	<-schedDone
	server.Shutdown(context.Background())
}
