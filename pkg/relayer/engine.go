package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/token-bridge/internal/metrics"
)

// Engine orchestrates the relay directions of a bridge deployment
type Engine struct {
	store             BridgeStore
	logger            *zap.Logger
	processors        []*Processor
	reconcileInterval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// NewEngine creates a new relayer engine running one processor per direction
func NewEngine(store BridgeStore, logger *zap.Logger, reconcileInterval time.Duration, processors ...*Processor) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reconcileInterval <= 0 {
		reconcileInterval = 5 * time.Minute
	}
	return &Engine{
		store:             store,
		logger:            logger,
		processors:        processors,
		reconcileInterval: reconcileInterval,
	}
}

// Start launches every processor and the reconciliation loop in the
// background. It returns once they are running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("relayer engine already started")
	}
	if len(e.processors) == 0 {
		return errors.New("relayer engine has no routes")
	}

	e.logger.Info("Starting relayer engine", zap.Int("routes", len(e.processors)))

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range e.processors {
		g.Go(func() error {
			if err := p.Start(gctx); err != nil {
				return fmt.Errorf("processor %s: %w", p.Route(), err)
			}
			return nil
		})
	}
	if e.store != nil {
		g.Go(func() error {
			e.reconcile(gctx)
			return nil
		})
	}

	e.cancel = cancel
	e.group = g
	e.started = true
	e.logger.Info("Relayer engine started")
	return nil
}

// Stop cancels the processors and waits for them to return
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel, g := e.cancel, e.group
	e.started = false
	e.mu.Unlock()
	if g == nil {
		return nil
	}

	e.logger.Info("Stopping relayer engine")
	cancel()
	err := g.Wait()
	e.logger.Info("Relayer engine stopped")
	return err
}

// IsReady reports whether every direction completed a scan
func (e *Engine) IsReady() bool {
	for _, p := range e.processors {
		if !p.IsReady() {
			return false
		}
	}
	return len(e.processors) > 0
}

// Status returns the progress of every direction
func (e *Engine) Status() []Status {
	out := make([]Status, 0, len(e.processors))
	for _, p := range e.processors {
		out = append(out, p.Status())
	}
	return out
}

// reconcile periodically reports transfers that have not settled
func (e *Engine) reconcile(ctx context.Context) {
	ticker := time.NewTicker(e.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.runReconciliation(ctx); err != nil {
				e.logger.Error("Reconciliation failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) runReconciliation(ctx context.Context) error {
	for _, p := range e.processors {
		pending, err := e.store.GetPendingTransfers(ctx, p.Route())
		if err != nil {
			return fmt.Errorf("failed to get pending transfers of %s: %w", p.Route(), err)
		}
		metrics.PendingTransfers.WithLabelValues(p.Route()).Set(float64(len(pending)))
		if len(pending) > 0 {
			e.logger.Info("Unsettled transfers",
				zap.String("route", p.Route()),
				zap.Int("count", len(pending)),
				zap.String("oldest", pending[0].ID))
		}
	}
	return nil
}
