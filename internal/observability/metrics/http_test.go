package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareCountsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.csv") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/api/faults/line1.csv", "/api/faults/line2.csv", "/api/faults/missing.csv"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ok := metricValue(t, m.Registry(), "plc_http_requests_total", map[string]string{
		"path": "/api/faults/{filename}", "status": "200",
	})
	if ok != 2 {
		t.Fatalf("expected 2 ok requests, got %v", ok)
	}
	missing := metricValue(t, m.Registry(), "plc_http_requests_total", map[string]string{
		"path": "/api/faults/{filename}", "status": "404",
	})
	if missing != 1 {
		t.Fatalf("expected 1 not-found request, got %v", missing)
	}
}

func TestRecordRejectedAndHandler(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRejected("api", "rate_limited")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `plc_http_rejected_total{reason="rate_limited",service="api"} 1`) {
		t.Fatalf("rejection not exported:\n%s", rec.Body.String())
	}
}
