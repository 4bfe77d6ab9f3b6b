package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/internal/metrics"
	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/db"
)

// Event is an OUT record observed on a source chain.
type Event struct {
	ID               string
	SourceChain      string
	DestinationChain string
	SourceTxHash     string
	BlockNumber      uint64
	LogIndex         uint
	Sender           common.Address
	Recipient        common.Address
	Amount           *big.Int
	Nonce            uint64
	Timestamp        uint64
}

// Receipt is the outcome of a mined inbound transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Success     bool
	GasUsed     uint64
}

// Source reads OUT records from the ledger transfers leave.
type Source interface {
	// GetChainID returns the chain name used in logs, metrics and ids
	GetChainID() string
	LatestBlockNumber(ctx context.Context) (uint64, error)
	// FetchTransfersOut returns OUT records emitted in blocks [fromBlock, toBlock]
	FetchTransfersOut(ctx context.Context, fromBlock, toBlock uint64) ([]*Event, error)
}

// Destination completes transfers on the ledger they arrive at.
type Destination interface {
	GetChainID() string
	// IsProcessed reports whether the inbound transfer for nonce was applied
	IsProcessed(ctx context.Context, nonce uint64) (bool, error)
	// EstimateTransferIn returns the gas the inbound call needs. It fails with
	// ErrAlreadyProcessed or ErrRejected when the call would revert.
	EstimateTransferIn(ctx context.Context, event *Event) (uint64, error)
	// SubmitTransferIn sends the inbound call and returns its transaction hash
	SubmitTransferIn(ctx context.Context, event *Event, gasLimit uint64) (string, error)
	// GetReceipt returns ErrReceiptNotFound until the transaction is mined
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// BridgeStore persists the scan cursor and the transfer audit trail. Neither
// is used for deduplication: the destination's processed nonces are.
type BridgeStore interface {
	GetTransfer(ctx context.Context, id string) (*db.Transfer, error)
	CreateTransfer(ctx context.Context, transfer *db.Transfer) error
	UpdateTransferStatus(ctx context.Context, id string, status db.TransferStatus, destTxHash, errMsg *string) error
	GetPendingTransfers(ctx context.Context, route string) ([]*db.Transfer, error)
	ListTransfers(ctx context.Context, limit int) ([]*db.Transfer, error)
	GetChainState(ctx context.Context, key string) (*db.ChainState, error)
	SetChainState(ctx context.Context, key string, blockNumber uint64, blockHash string) error
}

// Settings configures one relay direction.
type Settings struct {
	Route              string
	StartBlock         uint64
	ConfirmationBlocks uint64
	MaxBlockRange      uint64
	TokenDecimals      int32

	ScanInterval        time.Duration
	CallDelay           time.Duration
	ReceiptPollInterval time.Duration
	ReceiptMaxAttempts  int
	Retry               config.RetryConfig
}

// NewSettings builds the settings of route from the loaded configuration.
func NewSettings(route config.RouteConfig, src config.ChainConfig, rc config.RelayerConfig) Settings {
	return Settings{
		Route:               route.Name,
		StartBlock:          src.StartBlock,
		ConfirmationBlocks:  src.ConfirmationBlocks,
		MaxBlockRange:       src.MaxBlockRange,
		TokenDecimals:       src.TokenDecimals,
		ScanInterval:        rc.ScanInterval,
		CallDelay:           rc.CallDelay,
		ReceiptPollInterval: rc.ReceiptPollInterval,
		ReceiptMaxAttempts:  rc.ReceiptMaxAttempts,
		Retry:               rc.Retry,
	}
}

func (s Settings) withDefaults() Settings {
	if s.MaxBlockRange == 0 {
		s.MaxBlockRange = 1000
	}
	if s.ScanInterval <= 0 {
		s.ScanInterval = time.Minute
	}
	if s.ReceiptPollInterval <= 0 {
		s.ReceiptPollInterval = 20 * time.Second
	}
	if s.ReceiptMaxAttempts <= 0 {
		s.ReceiptMaxAttempts = 30
	}
	return s
}

// Option configures a Processor.
type Option func(*Processor)

// WithSleep replaces the function used for every relayer delay.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Processor) { p.sleep = sleep }
}

// Status is a snapshot of one direction's progress.
type Status struct {
	Route       string    `json:"route"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	NextBlock   uint64    `json:"next_block"`
	Ready       bool      `json:"ready"`
	LastScanAt  time.Time `json:"last_scan_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Processor relays OUT records from source to destination. Scans run one at a
// time and events inside a scan are relayed strictly in nonce order.
type Processor struct {
	source      Source
	destination Destination
	store       BridgeStore
	logger      *zap.Logger
	settings    Settings
	sleep       func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	nextBlock  uint64
	lastScanAt time.Time
	lastErr    error
	ready      atomic.Bool
}

// NewProcessor creates a new transfer processor. A nil store keeps the audit
// trail in memory.
func NewProcessor(
	source Source,
	destination Destination,
	store BridgeStore,
	logger *zap.Logger,
	settings Settings,
	opts ...Option,
) *Processor {
	if store == nil {
		store = db.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settings = settings.withDefaults()
	p := &Processor{
		source:      source,
		destination: destination,
		store:       store,
		logger:      logger.With(zap.String("route", settings.Route)),
		settings:    settings,
		sleep:       sleepCtx,
		nextBlock:   settings.StartBlock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Processor) Route() string { return p.settings.Route }

// IsReady reports whether at least one scan completed.
func (p *Processor) IsReady() bool { return p.ready.Load() }

// Status returns the current progress of the direction.
func (p *Processor) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Route:       p.settings.Route,
		Source:      p.source.GetChainID(),
		Destination: p.destination.GetChainID(),
		NextBlock:   p.nextBlock,
		Ready:       p.ready.Load(),
		LastScanAt:  p.lastScanAt,
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

// Start loads the persisted cursor and scans every ScanInterval until ctx is
// canceled. Scan failures are logged and retried on the next tick.
func (p *Processor) Start(ctx context.Context) error {
	p.loadCursor(ctx)
	p.logger.Info("Starting processor",
		zap.String("source", p.source.GetChainID()),
		zap.String("destination", p.destination.GetChainID()),
		zap.Uint64("from_block", p.cursor()),
		zap.Duration("scan_interval", p.settings.ScanInterval))

	for {
		if err := p.Scan(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Scan failed", zap.Error(err))
		}
		if err := p.sleep(ctx, p.settings.ScanInterval); err != nil {
			p.logger.Info("Processor stopped")
			return nil
		}
	}
}

// loadCursor resumes from the persisted cursor when there is one. The cursor
// is an optimization only, so a store failure falls back to StartBlock.
func (p *Processor) loadCursor(ctx context.Context) {
	state, err := p.store.GetChainState(ctx, p.settings.Route)
	if err != nil {
		p.logger.Warn("Failed to load scan cursor, starting from configured block", zap.Error(err))
		return
	}
	if state == nil {
		return
	}
	p.mu.Lock()
	if state.LastBlock+1 > p.nextBlock {
		p.nextBlock = state.LastBlock + 1
	}
	p.mu.Unlock()
	p.logger.Info("Loaded scan cursor", zap.Uint64("last_block", state.LastBlock))
}

func (p *Processor) cursor() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextBlock
}

// Scan relays every OUT record between the cursor and the latest confirmed
// block. The cursor only moves past a block range once every event in it was
// completed or found already processed.
func (p *Processor) Scan(ctx context.Context) (err error) {
	scanID := uuid.NewString()
	logger := p.logger.With(zap.String("scan_id", scanID))
	defer func() {
		p.mu.Lock()
		p.lastScanAt = time.Now()
		p.lastErr = err
		p.mu.Unlock()
		if err != nil {
			metrics.ScansTotal.WithLabelValues(p.settings.Route, "error").Inc()
			return
		}
		metrics.ScansTotal.WithLabelValues(p.settings.Route, "ok").Inc()
		p.ready.Store(true)
	}()

	latest, err := retry(ctx, p, "latest_block", func() (uint64, error) {
		return p.source.LatestBlockNumber(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}
	if latest < p.settings.ConfirmationBlocks {
		return nil
	}
	safe := latest - p.settings.ConfirmationBlocks

	for from := p.cursor(); from <= safe; {
		to := safe
		if span := p.settings.MaxBlockRange - 1; to-from > span {
			to = from + span
		}

		events, err := retry(ctx, p, "fetch_events", func() ([]*Event, error) {
			return p.source.FetchTransfersOut(ctx, from, to)
		})
		if err != nil {
			return fmt.Errorf("failed to fetch events in [%d, %d]: %w", from, to, err)
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].Nonce < events[j].Nonce })
		for _, ev := range events {
			if ev.ID == "" {
				ev.ID = fmt.Sprintf("%s:%d", p.settings.Route, ev.Nonce)
			}
			if ev.DestinationChain == "" {
				ev.DestinationChain = p.destination.GetChainID()
			}
		}

		if len(events) > 0 {
			logger.Info("Found transfers",
				zap.Int("count", len(events)),
				zap.Uint64("from_block", from),
				zap.Uint64("to_block", to))
			metrics.EventsDetected.WithLabelValues(p.source.GetChainID(), "transfer_out").Add(float64(len(events)))
		}

		for _, ev := range events {
			if err := p.relayEvent(ctx, ev, logger); err != nil {
				return fmt.Errorf("relay nonce %d: %w", ev.Nonce, err)
			}
		}

		p.advance(ctx, to)
		from = to + 1
	}
	return nil
}

func (p *Processor) advance(ctx context.Context, block uint64) {
	p.mu.Lock()
	p.nextBlock = block + 1
	p.mu.Unlock()
	metrics.LastProcessedBlock.WithLabelValues(p.settings.Route).Set(float64(block))

	if err := p.store.SetChainState(ctx, p.settings.Route, block, ""); err != nil {
		p.logger.Warn("Failed to persist scan cursor", zap.Uint64("block", block), zap.Error(err))
	}
}

// relayEvent completes one transfer on the destination. The processed nonce
// check runs before anything is submitted.
func (p *Processor) relayEvent(ctx context.Context, ev *Event, logger *zap.Logger) error {
	started := time.Now()
	logger = logger.With(zap.String("id", ev.ID), zap.Uint64("nonce", ev.Nonce))

	processed, err := retry(ctx, p, "is_processed", func() (bool, error) {
		return p.destination.IsProcessed(ctx, ev.Nonce)
	})
	if err != nil {
		return fmt.Errorf("failed to check processed nonce: %w", err)
	}
	if processed {
		logger.Debug("Transfer already processed, skipping")
		p.markSkipped(ctx, ev)
		return nil
	}

	p.recordPending(ctx, ev)
	logger.Info("Relaying transfer",
		zap.String("sender", ev.Sender.Hex()),
		zap.String("recipient", ev.Recipient.Hex()),
		zap.String("amount", p.displayAmount(ev.Amount)))

	gas, err := retry(ctx, p, "estimate", func() (uint64, error) {
		return p.destination.EstimateTransferIn(ctx, ev)
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		p.markSkipped(ctx, ev)
		return nil
	}
	if err != nil {
		p.markFailed(ctx, ev, nil, err)
		return fmt.Errorf("failed to estimate transfer: %w", err)
	}

	if err := p.sleep(ctx, p.settings.CallDelay); err != nil {
		return err
	}

	attempt := 0
	txHash, err := retry(ctx, p, "submit", func() (string, error) {
		attempt++
		if attempt > 1 {
			// An earlier attempt may have landed despite the error it returned.
			processed, err := p.destination.IsProcessed(ctx, ev.Nonce)
			if err != nil {
				return "", err
			}
			if processed {
				return "", ErrAlreadyProcessed
			}
		}
		return p.destination.SubmitTransferIn(ctx, ev, gas)
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		metrics.TransactionsSent.WithLabelValues(p.destination.GetChainID(), "already_processed").Inc()
		p.markSkipped(ctx, ev)
		return nil
	}
	if err != nil {
		metrics.TransactionsSent.WithLabelValues(p.destination.GetChainID(), "error").Inc()
		p.markFailed(ctx, ev, nil, err)
		return fmt.Errorf("submission failed: %w", err)
	}
	metrics.TransactionsSent.WithLabelValues(p.destination.GetChainID(), "sent").Inc()
	logger.Info("Submitted transfer", zap.String("dest_tx_hash", txHash), zap.Uint64("gas", gas))

	receipt, err := p.waitForReceipt(ctx, txHash)
	if err != nil {
		p.markFailed(ctx, ev, &txHash, err)
		return fmt.Errorf("tx %s: %w", txHash, err)
	}
	metrics.GasUsed.WithLabelValues(p.destination.GetChainID()).Observe(float64(receipt.GasUsed))
	if !receipt.Success {
		p.markFailed(ctx, ev, &txHash, ErrTransferReverted)
		return fmt.Errorf("tx %s: %w", txHash, ErrTransferReverted)
	}

	if err := p.store.UpdateTransferStatus(ctx, ev.ID, db.TransferStatusCompleted, &txHash, nil); err != nil {
		logger.Warn("Failed to record completed transfer", zap.Error(err))
	}
	metrics.TransfersTotal.WithLabelValues(p.settings.Route, string(db.TransferStatusCompleted)).Inc()
	metrics.TransferDuration.WithLabelValues(p.settings.Route).Observe(time.Since(started).Seconds())
	if ev.Amount != nil {
		metrics.TransferAmount.WithLabelValues(p.settings.Route).
			Observe(decimal.NewFromBigInt(ev.Amount, -p.settings.TokenDecimals).InexactFloat64())
	}

	logger.Info("Transfer completed",
		zap.String("dest_tx_hash", txHash),
		zap.Uint64("dest_block", receipt.BlockNumber))
	return nil
}

// waitForReceipt polls the destination every ReceiptPollInterval, at most
// ReceiptMaxAttempts times.
func (p *Processor) waitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	for attempt := 1; ; attempt++ {
		receipt, err := p.destination.GetReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ErrReceiptNotFound) {
			p.logger.Warn("Failed to fetch receipt", zap.String("tx_hash", txHash), zap.Error(err))
		}
		if attempt >= p.settings.ReceiptMaxAttempts {
			return nil, ErrConfirmationTimeout
		}
		if err := p.sleep(ctx, p.settings.ReceiptPollInterval); err != nil {
			return nil, err
		}
	}
}

func (p *Processor) recordPending(ctx context.Context, ev *Event) {
	transfer := &db.Transfer{
		ID:                ev.ID,
		Route:             p.settings.Route,
		Status:            db.TransferStatusPending,
		SourceChain:       ev.SourceChain,
		DestinationChain:  ev.DestinationChain,
		SourceTxHash:      ev.SourceTxHash,
		Sender:            ev.Sender.Hex(),
		Recipient:         ev.Recipient.Hex(),
		Amount:            amountString(ev.Amount),
		Nonce:             ev.Nonce,
		SourceBlockNumber: ev.BlockNumber,
	}
	if err := p.store.CreateTransfer(ctx, transfer); err != nil {
		p.logger.Warn("Failed to record transfer", zap.String("id", ev.ID), zap.Error(err))
	}
}

func (p *Processor) markSkipped(ctx context.Context, ev *Event) {
	metrics.TransfersTotal.WithLabelValues(p.settings.Route, string(db.TransferStatusSkipped)).Inc()
	existing, err := p.store.GetTransfer(ctx, ev.ID)
	if err == nil && existing.IsFinal() {
		return
	}
	if err != nil {
		p.recordPending(ctx, ev)
	}
	if err := p.store.UpdateTransferStatus(ctx, ev.ID, db.TransferStatusSkipped, nil, nil); err != nil {
		p.logger.Warn("Failed to record skipped transfer", zap.String("id", ev.ID), zap.Error(err))
	}
}

func (p *Processor) markFailed(ctx context.Context, ev *Event, txHash *string, cause error) {
	metrics.TransfersTotal.WithLabelValues(p.settings.Route, string(db.TransferStatusFailed)).Inc()
	metrics.ErrorsTotal.WithLabelValues(p.settings.Route, errorType(cause)).Inc()
	msg := cause.Error()
	if err := p.store.UpdateTransferStatus(ctx, ev.ID, db.TransferStatusFailed, txHash, &msg); err != nil {
		p.logger.Warn("Failed to record failed transfer", zap.String("id", ev.ID), zap.Error(err))
	}
}

func (p *Processor) displayAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -p.settings.TokenDecimals).String()
}

// retry runs op with exponential backoff. Context errors and errors the
// destination marks as final are not retried.
func retry[T any](ctx context.Context, p *Processor, op string, fn func() (T, error)) (T, error) {
	operation := func() (T, error) {
		v, err := fn()
		if err != nil && isPermanent(ctx, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, next time.Duration) {
		metrics.RetriesTotal.WithLabelValues(p.settings.Route, op).Inc()
		p.logger.Warn("Retrying after transient failure",
			zap.String("operation", op),
			zap.Duration("backoff", next),
			zap.Error(err))
	}
	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}

func isPermanent(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrRejected)
}

func (p *Processor) backOff(ctx context.Context) backoff.BackOff {
	rc := p.settings.Retry
	eb := backoff.NewExponentialBackOff()
	if rc.InitialInterval > 0 {
		eb.InitialInterval = rc.InitialInterval
	}
	if rc.MaxInterval > 0 {
		eb.MaxInterval = rc.MaxInterval
	}
	eb.MaxElapsedTime = rc.MaxElapsedTime

	var b backoff.BackOff = eb
	if rc.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, rc.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrConfirmationTimeout):
		return "confirmation_timeout"
	case errors.Is(err, ErrTransferReverted):
		return "reverted"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "transport"
	}
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
