package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ledger metrics
	CoinsMoved   *prometheus.CounterVec
	LedgerErrors *prometheus.CounterVec

	// Task metrics
	TasksCreated  prometheus.Counter
	TasksDeleted  prometheus.Counter
	SlotsConsumed prometheus.Counter

	// Submission metrics
	SubmissionsTotal *prometheus.CounterVec

	// Withdrawal metrics
	WithdrawalsTotal *prometheus.CounterVec

	// Payment metrics
	PaymentsTotal *prometheus.CounterVec
	RevenueUSD    prometheus.Counter

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Image upload circuit breaker state (0=closed, 1=open, 0.5=half-open)
	CircuitBreakerState *prometheus.GaugeVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		CoinsMoved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_coins_moved_total",
				Help: "Total coins moved by the ledger, labeled by operation",
			},
			[]string{"op"},
		),
		LedgerErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_errors_total",
				Help: "Total ledger operation failures",
			},
			[]string{"op", "reason"},
		),

		TasksCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_created_total",
				Help: "Total number of tasks created",
			},
		),
		TasksDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_deleted_total",
				Help: "Total number of tasks deleted",
			},
		),
		SlotsConsumed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "task_slots_consumed_total",
				Help: "Total task slots consumed by approvals",
			},
		),

		SubmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submissions_total",
				Help: "Total submissions by outcome",
			},
			[]string{"status"},
		),

		WithdrawalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawals_total",
				Help: "Total withdrawal requests by outcome",
			},
			[]string{"status"},
		),

		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_total",
				Help: "Total number of payments",
			},
			[]string{"method", "status"},
		),
		RevenueUSD: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "revenue_total_usd",
				Help: "Total recorded purchase revenue in USD",
			},
		),

		RateLimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
		),

		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
			},
			[]string{"upstream"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordCoinsMoved records a successful ledger movement
func RecordCoinsMoved(op string, coins int64) {
	Get().CoinsMoved.WithLabelValues(op).Add(float64(coins))
}

// RecordLedgerError records a failed ledger operation
func RecordLedgerError(op, reason string) {
	Get().LedgerErrors.WithLabelValues(op, reason).Inc()
}

// RecordTaskCreated records a task creation
func RecordTaskCreated() {
	Get().TasksCreated.Inc()
}

// RecordTaskDeleted records a task deletion
func RecordTaskDeleted() {
	Get().TasksDeleted.Inc()
}

// RecordSlotConsumed records an approval consuming a task slot
func RecordSlotConsumed() {
	Get().SlotsConsumed.Inc()
}

// RecordSubmission records a submission lifecycle event
func RecordSubmission(status string) {
	Get().SubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordWithdrawal records a withdrawal lifecycle event
func RecordWithdrawal(status string) {
	Get().WithdrawalsTotal.WithLabelValues(status).Inc()
}

// RecordPayment records a payment
func RecordPayment(method, status string) {
	Get().PaymentsTotal.WithLabelValues(method, status).Inc()
}

// RecordRevenue records purchase revenue
func RecordRevenue(amountUSD float64) {
	Get().RevenueUSD.Add(amountUSD)
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit() {
	Get().RateLimitHits.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge
func SetCircuitBreakerState(upstream string, state float64) {
	Get().CircuitBreakerState.WithLabelValues(upstream).Set(state)
}
