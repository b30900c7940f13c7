package token

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/validation"
)

// RefreshGrantDeps contiene las dependencias del handler refresh_token.
type RefreshGrantDeps struct {
	Tokens repository.TokenRepository
	Issuer *TokenIssuer
}

// refreshTokenHandler rota refresh tokens: el token presentado se consume
// de forma atómica y se emite un par nuevo.
type refreshTokenHandler struct {
	tokens repository.TokenRepository
	issuer *TokenIssuer
	now    func() time.Time
}

func NewRefreshTokenHandler(d RefreshGrantDeps) GrantHandler {
	return &refreshTokenHandler{tokens: d.Tokens, issuer: d.Issuer, now: time.Now}
}

func (h *refreshTokenHandler) GrantType() types.GrantType { return types.GrantRefreshToken }

func (h *refreshTokenHandler) Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.refresh"),
		logger.TenantID(tc.TenantID), logger.ClientID(tc.Client.ClientID))

	if derr := validateGrant(tc, types.GrantRefreshToken, types.KeyRefreshToken); derr != nil {
		return nil, derr
	}

	presented := tc.Params.Get(types.KeyRefreshToken)
	old, err := h.tokens.ConsumeRefreshToken(ctx, tc.TenantID, presented)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConsumed) {
			log.Warn("refresh token not redeemable")
			return nil, types.NewDirectError(types.ErrInvalidGrant, "refresh token is invalid")
		}
		log.Error("refresh token consume failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "refresh token lookup failed")
	}
	if old.RefreshExpired(h.now().UTC()) {
		log.Warn("refresh token expired")
		return nil, types.NewDirectError(types.ErrInvalidGrant, "refresh token expired")
	}
	if old.Payload.ClientID != tc.Client.ClientID {
		log.Warn("refresh token client mismatch")
		return nil, types.NewDirectError(types.ErrInvalidGrant, "refresh token was issued to another client")
	}

	scopes, derr := narrowScopes(tc, old.Payload.Scope)
	if derr != nil {
		return nil, derr
	}

	grant := types.AuthorizationGrant{
		Subject:              old.Payload.Subject,
		ClientID:             old.Payload.ClientID,
		Scopes:               scopes,
		CustomProperties:     old.Payload.CustomProperties,
		AuthorizationDetails: old.Payload.AuthorizationDetails,
	}
	token, err := h.issuer.Issue(ctx, IssueInput{
		TenantID:    tc.TenantID,
		Client:      tc.Client,
		Server:      tc.Server,
		Grant:       grant,
		WithRefresh: true,
		WithIDToken: grant.Subject != "" && grant.HasScope("openid"),
	})
	if err != nil {
		return nil, types.NewDirectError(types.ErrServerError, "token issuance failed")
	}
	log.Info("refresh token rotated")
	return Response(token), nil
}

// narrowScopes aplica el parámetro scope opcional: el set pedido debe ser
// subconjunto de los scopes otorgados originalmente.
func narrowScopes(tc *TokenRequestContext, granted string) ([]string, *types.DirectError) {
	grantedList := validation.SplitScopes(granted)
	raw := tc.Params.Get(types.KeyScope)
	if raw == "" {
		return grantedList, nil
	}
	requested := validation.SplitScopes(raw)
	for _, s := range requested {
		if !contains(grantedList, s) {
			return nil, types.NewDirectError(types.ErrInvalidScope, "scope %q exceeds the original grant", s)
		}
	}
	return requested, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
