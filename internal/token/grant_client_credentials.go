package token

import (
	"context"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/validation"
)

// clientCredentialsHandler emite tokens machine-to-machine. Sin subject,
// sin refresh token, sin id_token.
type clientCredentialsHandler struct {
	issuer *TokenIssuer
}

func NewClientCredentialsHandler(issuer *TokenIssuer) GrantHandler {
	return &clientCredentialsHandler{issuer: issuer}
}

func (h *clientCredentialsHandler) GrantType() types.GrantType { return types.GrantClientCredentials }

func (h *clientCredentialsHandler) Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.client_credentials"),
		logger.TenantID(tc.TenantID), logger.ClientID(tc.Client.ClientID))

	if derr := validateGrant(tc, types.GrantClientCredentials); derr != nil {
		return nil, derr
	}
	if tc.Client.Type != types.ClientTypeConfidential {
		return nil, types.NewDirectError(types.ErrUnauthorizedClient, "client_credentials requires a confidential client")
	}

	scopes, derr := clientScopes(tc)
	if derr != nil {
		return nil, derr
	}

	token, err := h.issuer.Issue(ctx, IssueInput{
		TenantID: tc.TenantID,
		Client:   tc.Client,
		Server:   tc.Server,
		Grant: types.AuthorizationGrant{
			ClientID: tc.Client.ClientID,
			Scopes:   scopes,
		},
	})
	if err != nil {
		return nil, types.NewDirectError(types.ErrServerError, "token issuance failed")
	}
	log.Info("client credentials token issued")
	return Response(token), nil
}

// clientScopes resuelve el parámetro scope contra los scopes registrados
// del cliente; sin parámetro se otorga el set registrado completo.
func clientScopes(tc *TokenRequestContext) ([]string, *types.DirectError) {
	registered := tc.Client.Scopes
	raw := tc.Params.Get(types.KeyScope)
	if raw == "" {
		return registered, nil
	}
	requested := validation.SplitScopes(raw)
	for _, s := range requested {
		if !contains(registered, s) {
			return nil, types.NewDirectError(types.ErrInvalidScope, "scope %q is not registered for this client", s)
		}
	}
	if len(requested) == 0 {
		return nil, types.NewDirectError(types.ErrInvalidScope, "no valid scope was requested")
	}
	return requested, nil
}
