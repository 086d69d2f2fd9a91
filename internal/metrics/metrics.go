// Package metrics provides Prometheus instrumentation for the staking engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/port3/staking-engine/internal/amount"
)

var (
	// DepositsTotal counts completed deposits.
	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staking_deposits_total",
		Help: "Total number of completed deposits",
	})

	// WithdrawalsTotal counts completed withdrawals, partitioned by kind
	// (withdraw, emergency_withdraw).
	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_withdrawals_total",
		Help: "Total number of completed withdrawals",
	}, []string{"kind"})

	// PoolsTotal counts pools created.
	PoolsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staking_pools_total",
		Help: "Total number of pools created",
	})

	// TotalStaking tracks the global staked amount in base units.
	TotalStaking = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_total_staking_base_units",
		Help: "Global staked amount across all pools, in base units",
	})

	// RewardPaidTotal accumulates reward paid out, in base units.
	RewardPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staking_reward_paid_base_units_total",
		Help: "Cumulative reward paid out, in base units",
	})

	// OperationRejections counts operations rejected before any state
	// change, partitioned by error kind.
	OperationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_operation_rejections_total",
		Help: "Operations rejected by the engine",
	}, []string{"kind"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staking_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staking_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staking_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// SetTotalStaking updates the global staking gauge. Metrics are
// observational only; the float conversion never feeds back into money math.
func SetTotalStaking(a amount.Amount) {
	TotalStaking.Set(a.Decimal().InexactFloat64())
}

// RewardPaid adds a payout to the cumulative reward counter.
func RewardPaid(a amount.Amount) {
	if a.IsZero() {
		return
	}
	RewardPaidTotal.Add(a.Decimal().InexactFloat64())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
