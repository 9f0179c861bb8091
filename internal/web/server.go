package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	manager *usecase.LifecycleManager
	repo    domain.PositionRepository
	logger  *zap.Logger
}

func NewServer(
	port int,
	manager *usecase.LifecycleManager,
	repo domain.PositionRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		manager: manager,
		repo:    repo,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handlePositions)

	// Closed trades
	s.router.HandleFunc("GET /api/history", s.handleHistory)

	// Prometheus exposition
	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
