// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cibactrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/ciba"
	oauthctrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/oauth"
	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	mw "github.com/gatehouse-id/gatehouse/internal/http/middlewares"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
)

// Deps contiene las dependencias para armar el router.
type Deps struct {
	Tenants     repository.TenantRepository
	Authorize   *oauthctrl.AuthorizeController
	Token       *oauthctrl.TokenController
	JWKS        *oauthctrl.JWKSController
	Backchannel *cibactrl.BackchannelController
	Registry    *prometheus.Registry
	RateLimiter *mw.RateLimiter // Opcional: rate limiter por IP
}

// New arma el router completo. Todo lo tenant-scoped cuelga de
// /{tenant}/ y pasa por WithTenant; el engine nunca ve un request sin
// tenant resuelto.
func New(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler { return mw.Chain(next, mw.WithRequestID(), mw.WithLogging()) })

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/{tenant}", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return mw.WithTenant(deps.Tenants)(next) })

		r.Get("/jwks.json", deps.JWKS.JWKS)

		r.Get("/authorizations", deps.Authorize.Authorize)
		r.Post("/authorizations", deps.Authorize.Authorize)
		r.Post("/authorizations/{id}/approve", deps.Authorize.Approve)
		r.Post("/authorizations/{id}/deny", deps.Authorize.Deny)

		limited := r.With(func(next http.Handler) http.Handler { return mw.WithRateLimit(deps.RateLimiter)(next) })
		limited.Post("/tokens", deps.Token.Token)
		limited.Post("/backchannel-authentications", deps.Backchannel.Create)

		r.Post("/backchannel-authentications/{auth_req_id}/authorize", deps.Backchannel.Authorize)
		r.Post("/backchannel-authentications/{auth_req_id}/deny", deps.Backchannel.Deny)
	})

	return r
}
