package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/store/memory"
)

func TestWithRequestID_Propagates(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "rid-123" {
		t.Fatalf("context rid = %q, want rid-123", seen)
	}
	if rec.Header().Get("X-Request-ID") != "rid-123" {
		t.Fatalf("response rid = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestWithRequestID_Generates(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rid := rec.Header().Get("X-Request-ID"); len(rid) != 32 {
		t.Fatalf("generated rid = %q, want 32 hex chars", rid)
	}
}

func TestWithRateLimit_Denies(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := WithRateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "203.0.113.7:51000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests = %v, first two must pass", statuses)
	}
	if statuses[3] != http.StatusTooManyRequests {
		t.Fatalf("statuses = %v, want 429 once the bucket drains", statuses)
	}

	// another IP has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.9:51000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh ip status = %d, want 200", rec.Code)
	}
}

func TestWithRateLimit_NilDisables(t *testing.T) {
	h := WithRateLimit(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

// withChiParam inyecta un URL param como lo haría el router.
func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestWithTenant(t *testing.T) {
	st := memory.New()
	st.PutTenant(&types.Tenant{ID: "t1", Slug: "acme", Active: true})
	st.PutTenant(&types.Tenant{ID: "t2", Slug: "dormant", Active: false})

	var got *types.Tenant
	h := WithTenant(st)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetTenant(r.Context())
	}))

	serve := func(slug string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/"+slug+"/jwks.json", nil)
		req = withChiParam(req, "tenant", slug)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve("acme"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.ID != "t1" {
		t.Fatalf("tenant = %+v, want t1", got)
	}

	if rec := serve("nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown slug status = %d, want 404", rec.Code)
	}
	if rec := serve("dormant"); rec.Code != http.StatusNotFound {
		t.Fatalf("inactive tenant status = %d, want 404", rec.Code)
	}
}
