package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts relayed transfers by route and outcome
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_total",
			Help: "Total number of bridge transfers",
		},
		[]string{"route", "status"},
	)

	// TransferDuration tracks the time from detection to confirmation
	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_duration_seconds",
			Help:    "Transfer processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// TransferAmount tracks the amount of tokens transferred
	TransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_amount",
			Help:    "Amount of tokens transferred",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000},
		},
		[]string{"route"},
	)

	// ScansTotal counts completed scans per route
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_scans_total",
			Help: "Total number of event scans",
		},
		[]string{"route", "result"},
	)

	// EventsDetected counts OUT records found on each source chain
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_detected_total",
			Help: "Total number of bridge events detected",
		},
		[]string{"chain", "event_type"},
	)

	// TransactionsSent counts transactions sent to each chain
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transactions_sent_total",
			Help: "Total number of transactions sent",
		},
		[]string{"chain", "status"},
	)

	// RetriesTotal counts backoff retries of transient failures
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_retries_total",
			Help: "Total number of retried operations",
		},
		[]string{"route", "operation"},
	)

	// EscrowBalance tracks tokens held in custody by lock-custody bridges
	EscrowBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_escrow_balance",
			Help: "Tokens held in bridge custody by chain",
		},
		[]string{"chain"},
	)

	// PendingTransfers tracks number of pending transfers
	PendingTransfers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_pending_transfers",
			Help: "Number of pending transfers by route",
		},
		[]string{"route"},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// GasUsed tracks gas used for inbound transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_gas_used",
			Help:    "Gas used for bridge transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
		[]string{"chain"},
	)

	// LastProcessedBlock tracks the scan cursor of each route
	LastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_last_processed_block",
			Help: "Last fully processed block number by route",
		},
		[]string{"route"},
	)
)
