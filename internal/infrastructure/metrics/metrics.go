package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the coordination engine.
// HTTP request metrics live in the router middleware instead.
type Metrics struct {
	// Transaction metrics
	TransactionsCreated   *prometheus.CounterVec
	TransactionsCompleted *prometheus.CounterVec
	TransactionAmount     *prometheus.HistogramVec
	TransactionLifecycle  *prometheus.HistogramVec

	// Timeout and recovery metrics
	TimeoutsFired   *prometheus.CounterVec
	ActiveTimers    prometheus.Gauge
	GracePeriods    prometheus.Gauge
	RecoveryExpired *prometheus.CounterVec
	Reconnections   *prometheus.CounterVec

	// Connection metrics
	ConnectedClients *prometheus.GaugeVec
	PoolSize         prometheus.Gauge
	MessagesSent     *prometheus.CounterVec
	SendFailures     *prometheus.CounterVec

	// Processing guard metrics
	GuardRejections prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TransactionsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_transactions_created_total",
				Help: "Total number of transactions created",
			},
			[]string{"category"},
		),
		TransactionsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_transactions_completed_total",
				Help: "Total number of transactions reaching a terminal state",
			},
			[]string{"category", "state"},
		),
		TransactionAmount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashdesk_transaction_amount",
				Help:    "Transaction amounts in minor units",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
			},
			[]string{"category"},
		),
		TransactionLifecycle: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashdesk_transaction_lifecycle_seconds",
				Help:    "Time from request to terminal state",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"category"},
		),

		TimeoutsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_timeouts_fired_total",
				Help: "Total transaction timeouts fired",
			},
			[]string{"state"},
		),
		ActiveTimers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cashdesk_active_timers",
			Help: "Current number of armed timeout timers",
		}),
		GracePeriods: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cashdesk_grace_periods_active",
			Help: "Current number of participants within a reconnection grace period",
		}),
		RecoveryExpired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_recovery_expired_total",
				Help: "Total grace periods that expired without reconnection",
			},
			[]string{"role"},
		),
		Reconnections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_reconnections_total",
				Help: "Total successful reconnections within grace",
			},
			[]string{"role"},
		),

		ConnectedClients: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cashdesk_connected_clients",
				Help: "Current number of connected clients by role",
			},
			[]string{"role"},
		),
		PoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cashdesk_cashier_pool_size",
			Help: "Current number of available cashiers in the pool",
		}),
		MessagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_messages_sent_total",
				Help: "Total realtime messages sent by event type",
			},
			[]string{"event"},
		),
		SendFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashdesk_send_failures_total",
				Help: "Total realtime message send failures",
			},
			[]string{"event"},
		),

		GuardRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cashdesk_guard_rejections_total",
			Help: "Total operations rejected because the transaction was busy",
		}),
	}
}
