package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-id/gatehouse/internal/cache"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// RequestObjectGateway descarga el JWT referenciado por un request_uri.
type RequestObjectGateway interface {
	Fetch(ctx context.Context, requestURI string) (string, error)
}

var ErrRequestObjectUnreachable = errors.New("oauth: request object fetch failed")

const maxRequestObjectBytes = 64 * 1024

// GatewayDeps contiene las dependencias del gateway HTTP de request objects.
type GatewayDeps struct {
	Client   *http.Client
	Cache    cache.Client
	CacheTTL time.Duration
}

// httpGateway descarga request objects por HTTP con timeout acotado,
// deduplicando descargas concurrentes del mismo URI y cacheando resultados.
type httpGateway struct {
	client   *http.Client
	cache    cache.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewHTTPGateway crea un RequestObjectGateway sobre net/http.
func NewHTTPGateway(d GatewayDeps) RequestObjectGateway {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &httpGateway{client: client, cache: d.Cache, cacheTTL: ttl}
}

func (g *httpGateway) Fetch(ctx context.Context, requestURI string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("gateway"), logger.Op("oauth.request_uri.fetch"))

	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, "request_uri:"+requestURI); err == nil {
			return cached, nil
		}
	}

	v, err, _ := g.group.Do(requestURI, func() (any, error) {
		return g.fetch(ctx, requestURI)
	})
	if err != nil {
		log.Warn("request object fetch failed", logger.String("request_uri", requestURI), logger.Err(err))
		return "", err
	}
	raw := v.(string)

	if g.cache != nil {
		if err := g.cache.Set(ctx, "request_uri:"+requestURI, raw, g.cacheTTL); err != nil {
			log.Warn("request object cache write failed", logger.Err(err))
		}
	}
	return raw, nil
}

func (g *httpGateway) fetch(ctx context.Context, requestURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestObjectUnreachable, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestObjectUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrRequestObjectUnreachable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestObjectBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestObjectUnreachable, err)
	}
	return string(body), nil
}
