package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/atoll-quote/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("atoll", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestHTTPMetricsUseChiPatternAfterRouting(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("atoll_routes", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/quotes/{quoteID}/versions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/q-1/versions", nil))

	got := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/quotes/{quoteID}/versions", "200"))
	if got != 1 {
		t.Fatalf("expected route pattern label, got %v", got)
	}
}

func TestDomainMetricsHelpers(t *testing.T) {
	obs.MustRegisterDomainMetrics("atoll_test", prometheus.NewRegistry())

	obs.ObserveCalculation("preview", "success", 0)
	obs.ObserveCache("hit")
	obs.ObserveWarnings([]string{"LOW_MARGIN", "LOW_MARGIN"})

	if got := testutil.ToFloat64(obs.QuoteCalculationsTotal.WithLabelValues("preview", "success")); got != 1 {
		t.Fatalf("expected 1 calculation, got %v", got)
	}
	if got := testutil.ToFloat64(obs.QuoteWarningsTotal.WithLabelValues("LOW_MARGIN")); got != 2 {
		t.Fatalf("expected 2 warnings, got %v", got)
	}
}

func TestHTTPMetricsDefaultNamespaceAndReuse(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("", nil, registry)
	second := obs.NewHTTPMetrics("", nil, registry)
	if first.ReqTotal != second.ReqTotal {
		t.Fatalf("expected registered counter to be reused")
	}

	second.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/quotes/calculate", "200").Inc()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["atoll_quote_api_requests_total"] {
		t.Fatalf("expected atoll_quote_api_requests_total, got %v", names)
	}
}
