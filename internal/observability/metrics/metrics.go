package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

func (c Config) constLabels() prometheus.Labels {
	serviceName := strings.TrimSpace(c.ServiceName)
	if serviceName == "" {
		serviceName = "tablebill"
	}
	environment := strings.TrimSpace(c.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "env": environment}
}

// BillingMetrics tracks invoice issuance, settlement outcomes and collaborator calls.
type BillingMetrics struct {
	invoicesCreated *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	gatewayOrders   *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registered on the default registerer.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = NewBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := cfg.constLabels()

	m := &BillingMetrics{
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tablebill_invoices_created_total",
			Help:        "Invoices issued by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tablebill_settlements_total",
			Help:        "Payment verification outcomes.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tablebill_notifications_total",
			Help:        "Payment link notifications by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		gatewayOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tablebill_gateway_orders_total",
			Help:        "Gateway order creation attempts by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tablebill_rate_limited_total",
			Help:        "Requests rejected by the public rate limiter.",
			ConstLabels: labels,
		}, []string{"endpoint"}),
	}
	registerer.MustRegister(m.invoicesCreated, m.settlements, m.notifications, m.gatewayOrders, m.rateLimited)
	return m
}

func (m *BillingMetrics) IncInvoiceCreated(invoiceType string) {
	if m == nil {
		return
	}
	m.invoicesCreated.WithLabelValues(invoiceType).Inc()
}

// IncSettlement records paid, failed, already_processed or rejected outcomes.
func (m *BillingMetrics) IncSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) IncNotification(err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(resultLabel(err)).Inc()
}

func (m *BillingMetrics) IncGatewayOrder(err error) {
	if m == nil {
		return
	}
	m.gatewayOrders.WithLabelValues(resultLabel(err)).Inc()
}

func (m *BillingMetrics) IncRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// HTTPMetrics records request latency by route.
type HTTPMetrics struct {
	requests *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tablebill_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: cfg.constLabels(),
	}, []string{"method", "route", "status"})
	registerer.MustRegister(requests)
	return &HTTPMetrics{requests: requests}
}

// GinMiddleware observes request latency using the matched route template.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
