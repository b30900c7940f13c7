package token

import (
	"context"
	"errors"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/security/password"
)

// PasswordGrantDeps contiene las dependencias del handler password.
type PasswordGrantDeps struct {
	Users  repository.UserRepository
	Issuer *TokenIssuer
}

// passwordHandler implementa el grant password de resource owner.
type passwordHandler struct {
	users  repository.UserRepository
	issuer *TokenIssuer
}

func NewPasswordHandler(d PasswordGrantDeps) GrantHandler {
	return &passwordHandler{users: d.Users, issuer: d.Issuer}
}

func (h *passwordHandler) GrantType() types.GrantType { return types.GrantPassword }

func (h *passwordHandler) Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.password"),
		logger.TenantID(tc.TenantID), logger.ClientID(tc.Client.ClientID))

	if derr := validateGrant(tc, types.GrantPassword, types.KeyUsername, types.KeyPassword); derr != nil {
		return nil, derr
	}

	username := tc.Params.Get(types.KeyUsername)
	user, err := h.users.FindByUsername(ctx, tc.TenantID, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("unknown user")
			return nil, types.NewDirectError(types.ErrInvalidGrant, "invalid resource owner credentials")
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "user lookup failed")
	}
	if !user.Active() || !password.Verify(tc.Params.Get(types.KeyPassword), user.PasswordHash) {
		log.Warn("resource owner authentication failed")
		return nil, types.NewDirectError(types.ErrInvalidGrant, "invalid resource owner credentials")
	}

	scopes, derr := clientScopes(tc)
	if derr != nil {
		return nil, derr
	}
	grant := types.AuthorizationGrant{
		Subject:  user.ID,
		ClientID: tc.Client.ClientID,
		Scopes:   scopes,
	}
	token, err := h.issuer.Issue(ctx, IssueInput{
		TenantID:    tc.TenantID,
		Client:      tc.Client,
		Server:      tc.Server,
		Grant:       grant,
		WithRefresh: tc.Client.SupportsGrantType(types.GrantRefreshToken),
		WithIDToken: grant.HasScope("openid"),
	})
	if err != nil {
		return nil, types.NewDirectError(types.ErrServerError, "token issuance failed")
	}
	log.Info("password grant token issued")
	return Response(token), nil
}
