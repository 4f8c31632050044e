package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taxlyzer/internal/cache"
	"taxlyzer/internal/classifier"
	"taxlyzer/internal/core"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/report"
	"taxlyzer/internal/services"
	"taxlyzer/internal/storage/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const uploadCSV = "Item,Qty,Unit Price,Total,GST Rate\n" +
	"Rice,2,250,500,5\n" +
	"Phone,1,10000,10000,18\n"

type testServer struct {
	srv     *Server
	store   *memory.Store
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, mutate func(*Deps)) testServer {
	t.Helper()
	store := memory.New(memory.DefaultSlabs())
	m := metrics.New()
	manager := cache.NewManager(nil)
	d := Deps{
		Invoices: services.NewInvoiceService(services.InvoiceServiceDeps{
			Store:      store,
			Classifier: classifier.New(classifier.DefaultRules(), memory.DefaultSlabs()),
			Caches:     manager,
			Metrics:    m,
		}),
		Statistics:         services.NewStatisticsService(store, manager, 16, time.Minute, 2),
		Reports:            services.NewReportService(store, nil, m, report.DefaultGSTR1Options(), 2),
		Metrics:            m,
		RateLimitPerMinute: 100,
	}
	if mutate != nil {
		mutate(&d)
	}
	srv, err := NewServer(":0", d)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{srv: srv, store: store, metrics: m}
}

func (ts testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fileName, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/process-invoice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ts testServer) upload(t *testing.T) uploadResponse {
	t.Helper()
	rec := ts.do(t, uploadRequest(t, "bill.csv", uploadCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[uploadResponse](t, rec)
}

func TestProcessInvoice(t *testing.T) {
	ts := newTestServer(t, nil)
	res := ts.upload(t)

	if !res.Success || res.InvoiceID == "" || res.FileName != "bill.csv" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	five, ok := res.GSTBreakdown.Entry(5)
	if !ok || five.TaxableAmount != 500 || five.TaxAmount != 25 {
		t.Fatalf("5%% entry = %+v, %v", five, ok)
	}
	if res.Totals.GrandTotal != 12325 {
		t.Fatalf("grand total = %v, want 12325", res.Totals.GrandTotal)
	}
}

func TestProcessInvoiceErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		req  func() *http.Request
		want int
	}{
		{
			name: "not multipart",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/process-invoice", strings.NewReader("x"))
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unsupported file type",
			req:  func() *http.Request { return uploadRequest(t, "bill.exe", "MZ") },
			want: http.StatusUnsupportedMediaType,
		},
		{
			name: "no items",
			req:  func() *http.Request { return uploadRequest(t, "bill.csv", "Item,Total\n") },
			want: http.StatusBadRequest,
		},
		{
			name: "wrong method",
			req:  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/process-invoice", nil) },
			want: http.StatusMethodNotAllowed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.req())
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			body := decode[errorBody](t, rec)
			if body.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestProcessInvoiceTooLarge(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.MaxUploadBytes = 64 })
	rec := ts.do(t, uploadRequest(t, "bill.csv", uploadCSV+strings.Repeat("Pen,1,10,10,18\n", 20)))
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 413 or 400", rec.Code)
	}
}

func TestGetInvoice(t *testing.T) {
	ts := newTestServer(t, nil)
	up := ts.upload(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/invoice/"+up.InvoiceID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[invoiceResponse](t, rec)
	if got.Invoice.ID != up.InvoiceID || len(got.Items) != 2 || len(got.GSTBreakdown) != 2 {
		t.Fatalf("unexpected invoice: %+v", got)
	}
	if got.Totals.TotalGST != 1825 {
		t.Fatalf("total gst = %v, want 1825", got.Totals.TotalGST)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/invoice/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing invoice status = %d, want 404", rec.Code)
	}
}

func TestListInvoicesAndSlabs(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %s, want []", rec.Body.String())
	}

	ts.upload(t)
	ts.upload(t)
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	if got := decode[[]core.Invoice](t, rec); len(got) != 2 {
		t.Fatalf("invoices = %d, want 2", len(got))
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/gst-slabs", nil))
	if got := decode[[]core.GSTSlab](t, rec); len(got) != len(memory.DefaultSlabs()) {
		t.Fatalf("slabs = %d, want %d", len(got), len(memory.DefaultSlabs()))
	}
}

func TestUpdateItem(t *testing.T) {
	ts := newTestServer(t, nil)
	up := ts.upload(t)
	id, _ := up.Items[0]["id"].(string)

	post := func(body string) *httptest.ResponseRecorder {
		return ts.do(t, httptest.NewRequest(http.MethodPost, "/api/update-item", strings.NewReader(body)))
	}

	rec := post(`{"id":"` + id + `","gst_rate":12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Statistics must reflect the edit.
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/gst-statistics", nil))
	stats := decode[core.GSTStatistics](t, rec)
	if _, ok := stats.TaxBySlab.Entry(12); !ok {
		t.Fatalf("tax_by_slab = %+v, want a 12%% entry", stats.TaxBySlab)
	}

	tests := []struct {
		body string
		want int
	}{
		{`{"gst_rate":12}`, http.StatusBadRequest},
		{`{"id":"nope","gst_rate":12}`, http.StatusNotFound},
		{`{"id":"` + id + `","gst_rate":140}`, http.StatusUnprocessableEntity},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := post(tt.body); rec.Code != tt.want {
			t.Errorf("POST %s status = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
}

func TestStatisticsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/gst-statistics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty statistics status = %d, want 404", rec.Code)
	}

	ts.upload(t)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/gst-statistics", nil))
	stats := decode[core.GSTStatistics](t, rec)
	if stats.TotalTax != 1825 || stats.TotalTaxable != 10500 || len(stats.TaxBySlab) != 2 {
		t.Fatalf("statistics = %+v", stats)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/trend-analysis?group_by=day", nil))
	trend := decode[core.TrendAnalysis](t, rec)
	if trend.GroupBy != "day" || len(trend.TimeSeries) != 1 || trend.Summary.InvoiceCount != 1 {
		t.Fatalf("trend = %+v", trend)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/trend-analysis?group_by=year", nil))
	if trend := decode[core.TrendAnalysis](t, rec); trend.GroupBy != "month" {
		t.Fatalf("unknown group_by = %q, want month", trend.GroupBy)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/top-hsn-codes?limit=1", nil))
	if top := decode[[]core.HSNSummary](t, rec); len(top) != 1 {
		t.Fatalf("top hsn = %+v, want 1 entry", top)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/slab-distribution", nil))
	dist := decode[[]core.SlabSummary](t, rec)
	if len(dist) != 2 || dist[0].Slab != 5 || dist[1].Slab != 18 {
		t.Fatalf("distribution = %+v", dist)
	}

	bad := []string{
		"/api/trend-analysis?start_date=2024-13-01",
		"/api/trend-analysis?start_date=2024-05-01&end_date=2024-04-01",
		"/api/top-hsn-codes?limit=0",
		"/api/top-hsn-codes?limit=abc",
	}
	for _, path := range bad {
		if rec := ts.do(t, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestReportEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	up := ts.upload(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/pdf/"+up.InvoiceID, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("missing attachment disposition")
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/json/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing json report status = %d, want 404", rec.Code)
	}

	today := time.Now().UTC().Format(core.DateLayout)
	body := `{"start_date":"` + today + `","end_date":"` + today + `"}`
	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reports/gstr1", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("gstr1 status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if lines := strings.Count(strings.TrimSpace(rec.Body.String()), "\n"); lines != 2 {
		t.Fatalf("gstr1 csv has %d data lines, want 2:\n%s", lines, rec.Body.String())
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reports/gstr1", strings.NewReader(`{"format":"ods"}`)))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("ods status = %d, want 415", rec.Code)
	}
}

func TestRoutingAndMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/invoices", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("status = %d, Allow = %q", rec.Code, rec.Header().Get("Allow"))
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing middleware headers: %v", rec.Header())
	}

	want := float64(1)
	if got := testutil.ToFloat64(ts.metrics.HTTPRequests.WithLabelValues("/healthz", "GET", "200")); got != want {
		t.Fatalf("healthz request metric = %v, want %v", got, want)
	}

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "taxlyzer_http_requests_total") {
		t.Fatal("metrics endpoint does not expose request counter")
	}
}

func TestReadiness(t *testing.T) {
	var failing bool
	ts := newTestServer(t, func(d *Deps) {
		d.Ready = func(context.Context) error {
			if failing {
				return errors.New("database is locked")
			}
			return nil
		}
	})

	if rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d, want 200", rec.Code)
	}
	failing = true
	if rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestPostRateLimit(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		ts.do(t, httptest.NewRequest(http.MethodPost, "/api/update-item", strings.NewReader(`{}`)))
	}
	rec := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/update-item", strings.NewReader(`{}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST status = %d, want 429", rec.Code)
	}
	if got := testutil.ToFloat64(ts.metrics.RateLimited); got != 1 {
		t.Fatalf("rate limited metric = %v, want 1", got)
	}

	// GETs are not limited.
	if rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/invoices", nil)); rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
}
