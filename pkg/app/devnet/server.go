// Package devnet implements app.Runner for the self-contained devnet process:
// both ledgers, their bridges and the relayer in one binary.
package devnet

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/token-bridge/pkg/app/http"
	apprelayer "github.com/chainsafe/token-bridge/pkg/app/relayer"
	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/devnet"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

// Server holds configuration for the devnet process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new devnet Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run deploys the devnet, starts relaying in both directions and serves the
// devnet and relayer APIs until an OS shutdown signal is received.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	network, err := devnet.NewNetwork(cfg.Devnet)
	if err != nil {
		return fmt.Errorf("deploy devnet: %w", err)
	}
	logger.Info("Devnet deployed",
		zap.String("admin", network.Admin.Hex()),
		zap.String("operator", network.Operator.Hex()),
		zap.String("bridge_a", network.A.Bridge.Address().Hex()),
		zap.String("bridge_b", network.B.Bridge.Address().Hex()),
		zap.String("token_a", network.A.Token.Address().Hex()),
		zap.String("token_b", network.B.Token.Address().Hex()))

	store, err := apprelayer.OpenStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	processors := network.Processors(store, logger, cfg.Relayer, cfg.Devnet.ScanInterval)
	engine := relayer.NewEngine(store, logger, cfg.Relayer.ReconcileInterval, processors...)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start relayer engine: %w", err)
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Error("Relayer engine stopped with error", zap.Error(err))
		}
	}()

	go reportEscrow(ctx, network, cfg.Devnet.ScanInterval)

	router := apphttp.NewOpsRouter(engine.IsReady, cfg.Monitoring.Enabled, logger)
	router.Route("/api/v1", func(r chi.Router) {
		relayer.RegisterRoutes(r, store, engine, logger)
		devnet.NewAPI(network, logger, nil).RegisterRoutes(r)
	})

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func reportEscrow(ctx context.Context, network *devnet.Network, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		network.ReportEscrow()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
