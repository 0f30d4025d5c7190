package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EmpoweredVote/EV-Geo/internal/middleware"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// call wraps a simple 200-OK inner handler in the provided middleware and
// returns the recorded response. header may be nil.
func call(t *testing.T, mw func(http.Handler) http.Handler, method string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/load-dmas", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

// detail decodes a JSON {"detail": ...} error body.
func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestCORS_AllowedOrigin(t *testing.T) {
	mw := middleware.CORS([]string{"http://localhost:5173"})

	rec := call(t, mw, http.MethodGet, http.Header{"Origin": {"http://localhost:5173"}})

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCORS_UnknownOrigin(t *testing.T) {
	mw := middleware.CORS([]string{"http://localhost:5173"})

	rec := call(t, mw, http.MethodGet, http.Header{"Origin": {"https://evil.example"}})

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	mw := middleware.CORS(nil)

	rec := call(t, mw, http.MethodOptions, nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

// TestLoaderKey_Disabled verifies that an empty hash leaves the route open.
func TestLoaderKey_Disabled(t *testing.T) {
	rec := call(t, middleware.LoaderKey(""), http.MethodGet, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestLoaderKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	mw := middleware.LoaderKey(string(hash))

	cases := []struct {
		name string
		key  string
		want int
		body string
	}{
		{"missing", "", http.StatusUnauthorized, "Missing loader key"},
		{"wrong", "guess", http.StatusForbidden, "Invalid loader key"},
		{"right", "s3cret", http.StatusOK, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := http.Header{}
			if c.key != "" {
				h.Set(middleware.LoaderKeyHeader, c.key)
			}
			rec := call(t, mw, http.MethodGet, h)
			if rec.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, rec.Code)
			}
			if c.body != "" {
				if got := detail(t, rec); got != c.body {
					t.Errorf("expected detail %q, got %q", c.body, got)
				}
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	mw := middleware.RateLimit(0.001, 2)

	for i := 0; i < 2; i++ {
		if rec := call(t, mw, http.MethodGet, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := call(t, mw, http.MethodGet, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Errorf("expected Retry-After header")
	}
	if got := detail(t, rec); got != "Too many requests" {
		t.Errorf("expected detail %q, got %q", "Too many requests", got)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := middleware.RateLimit(0, 0)
	for i := 0; i < 50; i++ {
		if rec := call(t, mw, http.MethodGet, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

// TestMetrics_PassesThrough checks the wrapped handler's status survives
// instrumentation under a chi route.
func TestMetrics_PassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Use(middleware.RequestLogger)
	r.Get("/cities/{state_code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cities/ZZ", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
