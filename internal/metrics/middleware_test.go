package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/api/regions/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/regions/Dagoretti", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/regions/{name}", "200"))
	if got < 1 {
		t.Errorf("expected request counted under route pattern, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.WriteHeader(http.StatusOK) // second call must not override
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/gone", http.NoBody))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/gone", "410")); got < 1 {
		t.Errorf("expected 410 to be recorded, got %f", got)
	}
}

func TestHandler_Exposes(t *testing.T) {
	JoinAmbiguous.Add(0)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
}
