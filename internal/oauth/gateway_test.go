package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/cache"
)

func TestHTTPGateway_FetchAndCache(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("eyJhbGciOiJS.fake.jwt"))
	}))
	defer upstream.Close()

	g := NewHTTPGateway(GatewayDeps{
		Cache:    cache.NewMemory("test:"),
		CacheTTL: time.Minute,
	})

	raw, err := g.Fetch(context.Background(), upstream.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if raw != "eyJhbGciOiJS.fake.jwt" {
		t.Fatalf("body = %q", raw)
	}

	// second fetch is served from the cache
	if _, err := g.Fetch(context.Background(), upstream.URL); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("upstream hits = %d, want 1", n)
	}
}

func TestHTTPGateway_UpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	g := NewHTTPGateway(GatewayDeps{})

	if _, err := g.Fetch(context.Background(), upstream.URL); !errors.Is(err, ErrRequestObjectUnreachable) {
		t.Fatalf("err = %v, want ErrRequestObjectUnreachable", err)
	}

	// connection refused
	dead := httptest.NewServer(nil)
	dead.Close()
	if _, err := g.Fetch(context.Background(), dead.URL); !errors.Is(err, ErrRequestObjectUnreachable) {
		t.Fatalf("err = %v, want ErrRequestObjectUnreachable", err)
	}
}
