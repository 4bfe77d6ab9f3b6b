// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/token-bridge/pkg/app/http"
	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/db"
	"github.com/chainsafe/token-bridge/pkg/ethereum"
	"github.com/chainsafe/token-bridge/pkg/pgutil"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

// StoreCloser is a relayer store that owns a connection
type StoreCloser interface {
	relayer.BridgeStore
	Close() error
}

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the relayer engine and the operational HTTP server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg
	if err := cfg.ValidateRelayer(); err != nil {
		return fmt.Errorf("invalid relayer config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting token bridge relayer", zap.Int("routes", len(cfg.Routes)))

	store, err := OpenStore(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	clients := make(map[string]*ethereum.Client)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	client := func(name string) (*ethereum.Client, error) {
		if c, ok := clients[name]; ok {
			return c, nil
		}
		chainCfg := cfg.Chains[name]
		c, err := ethereum.NewClient(name, &chainCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize %s client: %w", name, err)
		}
		clients[name] = c
		return c, nil
	}

	processors := make([]*relayer.Processor, 0, len(cfg.Routes))
	for _, route := range cfg.Routes {
		src, err := client(route.Source)
		if err != nil {
			return err
		}
		dst, err := client(route.Destination)
		if err != nil {
			return err
		}
		srcCfg, _ := cfg.Route(route)
		settings := relayer.NewSettings(route, srcCfg, cfg.Relayer)
		processors = append(processors, relayer.NewProcessor(src, dst, store, logger, settings))
	}

	engine := relayer.NewEngine(store, logger, cfg.Relayer.ReconcileInterval, processors...)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start relayer engine: %w", err)
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Error("Relayer engine stopped with error", zap.Error(err))
		}
	}()

	router := apphttp.NewOpsRouter(engine.IsReady, cfg.Monitoring.Enabled, logger)
	router.Route("/api/v1", func(r chi.Router) {
		relayer.RegisterRoutes(r, store, engine, logger)
	})

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// OpenStore connects the Postgres audit store when the database is enabled and
// falls back to an in-memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (StoreCloser, error) {
	if !cfg.Enabled {
		logger.Info("Database disabled, relay history is kept in memory")
		return db.NewMemoryStore(), nil
	}
	bunDB, err := pgutil.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect relayer db: %w", err)
	}
	logger.Info("Database connection established", zap.String("database", cfg.Database))
	return db.NewStore(bunDB), nil
}
