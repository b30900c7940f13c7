package oauth

import (
	"net/http"

	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	"github.com/gatehouse-id/gatehouse/internal/http/middlewares"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// JWKSController publishes each tenant's public signing keys.
type JWKSController struct {
	keys *jose.Keystore
}

// NewJWKSController creates the controller.
func NewJWKSController(k *jose.Keystore) *JWKSController {
	return &JWKSController{keys: k}
}

// JWKS handles GET /{tenant}/jwks.json
func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middlewares.GetTenant(ctx)

	set, err := c.keys.JWKS(tenant.ID)
	if err != nil {
		logger.From(ctx).Error("jwks export failed", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusInternalServerError, "server_error", "keys unavailable")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	httperrors.WriteJSON(w, http.StatusOK, set)
}
