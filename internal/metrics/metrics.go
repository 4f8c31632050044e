// Package metrics holds the Prometheus collectors of the server and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taxlyzer"

// Metrics is a set of collectors bound to one registry. Each binary (and
// each test) builds its own so registrations never collide.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	InvoicesUploaded *prometheus.CounterVec
	ItemsClassified  *prometheus.CounterVec
	TaxableAmount    prometheus.Counter
	TaxAmount        prometheus.Counter
	SyncResults      *prometheus.CounterVec
	ReportsGenerated *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		InvoicesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_uploaded_total",
			Help:      "Processed invoice uploads by file type.",
		}, []string{"file_type"}),
		ItemsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_classified_total",
			Help:      "Line items that received a GST rate from the classifier, by rule source.",
		}, []string{"source"}),
		TaxableAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taxable_amount_total",
			Help:      "Sum of taxable amounts of uploaded invoices.",
		}),
		TaxAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_amount_total",
			Help:      "Sum of GST of uploaded invoices.",
		}),
		SyncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_sync_total",
			Help:      "Invoice exports to Google Sheets by result.",
		}, []string{"result"}),
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Generated reports by kind.",
		}, []string{"kind"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.InvoicesUploaded, m.ItemsClassified, m.TaxableAmount, m.TaxAmount,
		m.SyncResults, m.ReportsGenerated, m.RateLimited,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveUpload records a processed invoice. Negative amounts are skipped
// since counters only go up.
func (m *Metrics) ObserveUpload(fileType string, taxable, tax float64) {
	m.InvoicesUploaded.WithLabelValues(fileType).Inc()
	if taxable > 0 {
		m.TaxableAmount.Add(taxable)
	}
	if tax > 0 {
		m.TaxAmount.Add(tax)
	}
}

func (m *Metrics) ObserveClassified(source string) {
	m.ItemsClassified.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSync(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	m.SyncResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReport(kind string) {
	m.ReportsGenerated.WithLabelValues(kind).Inc()
}
