package oauth

import (
	"net/http"
	"strings"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	"github.com/gatehouse-id/gatehouse/internal/http/middlewares"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/token"
)

// TokenController handles the OAuth2 token endpoint.
type TokenController struct {
	builder    *token.ContextBuilder
	dispatcher *token.GrantDispatcher
}

// NewTokenController creates the controller.
func NewTokenController(b *token.ContextBuilder, d *token.GrantDispatcher) *TokenController {
	return &TokenController{builder: b, dispatcher: d}
}

// Token handles POST /{tenant}/tokens.
// Client authentication, grant dispatch and issuance happen in the
// engine; everything here is wire plumbing. All failures are direct
// errors, the token endpoint never redirects.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	// Limit body size (64KB for OAuth forms)
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	creds := extractClientCredentials(r)
	tenant := middlewares.GetTenant(ctx)

	tc, derr := c.builder.Build(ctx, tenant.ID, types.ParamsFromValues(r.PostForm), creds)
	if derr != nil {
		httperrors.WriteDirect(w, derr, creds.Basic)
		return
	}

	resp, derr := c.dispatcher.Dispatch(ctx, tc)
	if derr != nil {
		httperrors.WriteDirect(w, derr, creds.Basic)
		return
	}

	httperrors.WriteTokenJSON(w, http.StatusOK, resp)
}

// extractClientCredentials prefers the Basic header over POST body fields.
func extractClientCredentials(r *http.Request) token.ClientCredentials {
	if id, secret, ok := r.BasicAuth(); ok {
		return token.ClientCredentials{
			ClientID:     strings.TrimSpace(id),
			ClientSecret: secret,
			Basic:        true,
		}
	}
	return token.ClientCredentials{}
}
