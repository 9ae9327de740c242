package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
	NotificationSkipped = "skipped"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ServiceName string

	RequestCounter           *prometheus.CounterVec
	RequestDurationHistogram *prometheus.HistogramVec
	StatusCategoryCounter    *prometheus.CounterVec

	AuthAttempts         *prometheus.CounterVec
	InvoicesCreated      prometheus.Counter
	PaymentVerifications *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	DBOperationDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg, prefixing every name with prefix.
func New(reg prometheus.Registerer, serviceName, prefix string) *Metrics {
	f := promauto.With(reg)
	name := func(n string) string {
		if prefix == "" {
			return n
		}
		return prefix + "_" + n
	}

	return &Metrics{
		ServiceName: serviceName,

		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("http_requests_total"),
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDurationHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("http_request_duration_seconds"),
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		StatusCategoryCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("http_status_category_total"),
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category", "method", "path"},
		),

		AuthAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("auth_attempts_total"),
				Help: "Register and login attempts by result",
			},
			[]string{"action", "result"},
		),
		InvoicesCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: name("invoices_created_total"),
				Help: "Total number of invoices created",
			},
		),
		PaymentVerifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("payment_verifications_total"),
				Help: "Payment callbacks by verification result",
			},
			[]string{"result"},
		),
		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: name("notifications_total"),
				Help: "Invoice emails by outcome",
			},
			[]string{"outcome"},
		),
		DBOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name("db_operation_duration_seconds"),
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return ""
	}
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			method := c.Request().Method
			path := c.Path() // route template, keeps label cardinality bounded
			statusStr := strconv.Itoa(status)

			m.RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			if category := statusCategory(status); category != "" {
				m.StatusCategoryCounter.WithLabelValues(m.ServiceName, category, method, path).Inc()
			}
			m.RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, statusStr).
				Observe(time.Since(start).Seconds())

			return nil
		}
	}
}

func (m *Metrics) RecordAuth(action, result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(action, result).Inc()
}

func (m *Metrics) RecordInvoiceCreated() {
	if m == nil {
		return
	}
	m.InvoicesCreated.Inc()
}

func (m *Metrics) RecordPaymentVerification(result string) {
	if m == nil {
		return
	}
	m.PaymentVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DBOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
