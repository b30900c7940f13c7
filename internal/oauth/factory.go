package oauth

import (
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// AuthorizationRequestFactory funde el set de parámetros resuelto en un
// AuthorizationRequest inmutable. Los valores del request object ya ganan a
// nivel del accessor de ResolvedRequest; la factory solo normaliza y estampa
// identidad y expiración. Las violaciones de sintaxis (max_age o display
// inválidos) no se rechazan aquí, eso es de la cadena de validación.
type AuthorizationRequestFactory struct {
	now func() time.Time
}

func NewAuthorizationRequestFactory() *AuthorizationRequestFactory {
	return &AuthorizationRequestFactory{now: time.Now}
}

// Build arma el registro inmutable del request.
func (f *AuthorizationRequestFactory) Build(tenantID string, resolved *ResolvedRequest, cfg *types.ServerConfiguration) *types.AuthorizationRequest {
	now := f.now().UTC()
	scopes := resolved.Scopes()

	req := &types.AuthorizationRequest{
		ID:                  ulid.Make().String(),
		TenantID:            tenantID,
		Profile:             ClassifyProfile(scopes, cfg),
		Pattern:             resolved.Pattern,
		Scopes:              scopes,
		ResponseType:        types.ParseResponseType(resolved.Get(types.KeyResponseType)),
		ClientID:            resolved.Client.ClientID,
		RedirectURI:         resolved.Get(types.KeyRedirectURI),
		State:               resolved.Get(types.KeyState),
		Nonce:               resolved.Get(types.KeyNonce),
		Display:             types.Display(resolved.Get(types.KeyDisplay)),
		Prompts:             types.ParsePrompts(resolved.Get(types.KeyPrompt)),
		UILocales:           resolved.Get(types.KeyUILocales),
		IDTokenHint:         resolved.Get(types.KeyIDTokenHint),
		LoginHint:           resolved.Get(types.KeyLoginHint),
		ACRValues:           resolved.Get(types.KeyACRValues),
		CodeChallenge:       resolved.Get(types.KeyCodeChallenge),
		CodeChallengeMethod: resolved.Get(types.KeyCodeChallengeMethod),
		CreatedAt:           now,
		ExpiresAt:           now.Add(cfg.AuthorizationRequestTTL),
	}
	req.ResponseMode = types.EffectiveResponseMode(req.ResponseType, types.ResponseMode(resolved.Get(types.KeyResponseMode)))

	if raw := resolved.Get(types.KeyMaxAge); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
			req.MaxAge = &v
		}
	}
	if v, ok := resolved.JSONValue(types.KeyClaims); ok {
		if claims, err := types.ParseClaimsPayload(v); err == nil {
			req.Claims = claims
		}
	}
	if v, ok := resolved.JSONValue(types.KeyAuthorizationDetails); ok {
		if details, err := types.ParseAuthorizationDetails(v); err == nil {
			req.AuthorizationDetails = details
		}
	}
	return req
}
