package token

import (
	"context"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// TokenResponse es el body de éxito del token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// GrantHandler valida y ejecuta un grant type. Los handlers devuelven
// *types.DirectError para todo fallo: los errores del token endpoint nunca
// son redirigibles.
type GrantHandler interface {
	GrantType() types.GrantType
	Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError)
}

// GrantDispatcher rutea un token request a su grant handler. El registro
// se construye una vez y no se muta.
type GrantDispatcher struct {
	handlers map[types.GrantType]GrantHandler
}

func NewGrantDispatcher(handlers ...GrantHandler) *GrantDispatcher {
	reg := make(map[types.GrantType]GrantHandler, len(handlers))
	for _, h := range handlers {
		reg[h.GrantType()] = h
	}
	return &GrantDispatcher{handlers: reg}
}

// Dispatch valida el parámetro grant_type y delega.
func (d *GrantDispatcher) Dispatch(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.dispatch"), logger.TenantID(tc.TenantID))

	if tc.Params.IsDuplicated(types.KeyGrantType) {
		metrics.TokenRejected("", string(types.ErrInvalidRequest))
		return nil, types.NewDirectError(types.ErrInvalidRequest, "grant_type must not be repeated")
	}
	raw := tc.Params.Get(types.KeyGrantType)
	if raw == "" {
		metrics.TokenRejected("", string(types.ErrInvalidRequest))
		return nil, types.NewDirectError(types.ErrInvalidRequest, "grant_type is required")
	}

	handler, ok := d.handlers[types.GrantType(raw)]
	if !ok {
		log.Warn("unsupported grant_type", logger.GrantType(raw))
		metrics.TokenRejected(raw, string(types.ErrUnsupportedGrantType))
		return nil, types.NewDirectError(types.ErrUnsupportedGrantType, "grant_type %q is not supported", raw)
	}

	resp, derr := handler.Handle(ctx, tc)
	if derr != nil {
		metrics.TokenRejected(raw, string(derr.Code))
		return nil, derr
	}
	metrics.TokenIssued(raw)
	return resp, nil
}

// validateGrant aplica los chequeos que comparten todos los validadores de
// grant, en orden: soporte del servidor, autorización del cliente,
// parámetros requeridos, presencia de client_id cuando no hubo Basic.
func validateGrant(tc *TokenRequestContext, grant types.GrantType, required ...types.RequestKey) *types.DirectError {
	if !tc.Server.SupportsGrantType(grant) {
		return types.NewDirectError(types.ErrUnsupportedGrantType, "grant_type %q is not enabled on this server", grant)
	}
	if !tc.Client.SupportsGrantType(grant) {
		return types.NewDirectError(types.ErrUnauthorizedClient, "client is not authorized for grant_type %q", grant)
	}
	for _, k := range required {
		if tc.Params.IsDuplicated(k) {
			return types.NewDirectError(types.ErrInvalidRequest, "%s must not be repeated", k)
		}
		if tc.Params.Get(k) == "" {
			return types.NewDirectError(types.ErrInvalidRequest, "%s is required", k)
		}
	}
	if !tc.BasicAuth && tc.Params.Get(types.KeyClientID) == "" {
		return types.NewDirectError(types.ErrInvalidRequest, "client_id is required")
	}
	return nil
}
