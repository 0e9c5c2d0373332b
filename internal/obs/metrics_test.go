package obs

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/ids"
)

func TestCanonicalPath(t *testing.T) {
	id := ids.New()
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/api/users/detail/" + id:         "/api/users/detail/:id",
		"/api/users/detail/42":            "/api/users/detail/:id",
		"/api/users/detail/not-an-id":     "/api/users/detail/not-an-id",
		"/api/users?page=2&limit=5":       "/api/users",
		"/api/users/detail?rut=123456785": "/api/users/detail",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestObserveDecision(t *testing.T) {
	Init()
	before := testutil.ToFloat64(authzDecisions.WithLabelValues("role", "denied"))
	ObserveDecision("role", "denied")
	if got := testutil.ToFloat64(authzDecisions.WithLabelValues("role", "denied")); got != before+1 {
		t.Fatalf("counter=%v, want %v", got, before+1)
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/teapot", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/teapot", "418")); got != 1 {
		t.Fatalf("requests_total=%v, want 1", got)
	}
}

func TestInitBuildInfoKeepsLatestLabels(t *testing.T) {
	InitBuildInfo(BuildInfo{Service: "plantilla-api", Version: "1.0.0", Commit: "abc"})
	InitBuildInfo(BuildInfo{Service: "plantilla-api", Version: "1.1.0", Commit: "def", Env: "production"})

	if n := testutil.CollectAndCount(buildInfoGauge); n != 1 {
		t.Fatalf("series=%d, want 1", n)
	}
	got := testutil.ToFloat64(buildInfoGauge.WithLabelValues("plantilla-api", "1.1.0", "def", "production", runtime.Version()))
	if got != 1 {
		t.Fatalf("build_info=%v, want 1", got)
	}
}
