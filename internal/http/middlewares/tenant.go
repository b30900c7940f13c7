package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

type ctxKeyTenant struct{}

// WithTenant resuelve el slug del path ({tenant}) contra el repositorio y
// pone el *types.Tenant en el contexto. Un tenant desconocido o inactivo
// corta con 404; nada del engine corre sin tenant resuelto.
func WithTenant(tenants repository.TenantRepository) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "tenant")
			if slug == "" {
				httperrors.WriteOAuthError(w, http.StatusNotFound, "invalid_request", "unknown tenant")
				return
			}

			tenant, err := tenants.FindBySlug(r.Context(), slug)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					httperrors.WriteOAuthError(w, http.StatusNotFound, "invalid_request", "unknown tenant")
					return
				}
				logger.From(r.Context()).Error("tenant lookup failed", logger.Err(err))
				httperrors.WriteOAuthError(w, http.StatusInternalServerError, "server_error", "tenant lookup failed")
				return
			}
			if !tenant.Active {
				httperrors.WriteOAuthError(w, http.StatusNotFound, "invalid_request", "unknown tenant")
				return
			}

			reqLog := logger.From(r.Context()).With(logger.TenantID(tenant.ID))
			ctx := logger.ToContext(r.Context(), reqLog)
			ctx = context.WithValue(ctx, ctxKeyTenant{}, tenant)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant devuelve el tenant resuelto del contexto, o nil.
func GetTenant(ctx context.Context) *types.Tenant {
	if v, ok := ctx.Value(ctxKeyTenant{}).(*types.Tenant); ok {
		return v
	}
	return nil
}
