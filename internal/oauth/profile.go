// Package oauth implementa el lado de authorization requests del engine:
// resolución de pattern, clasificación de profile, armado del request y la
// cadena de validación.
package oauth

import (
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// ClassifyProfile mapea el set de scopes filtrado a un profile de
// autorización. Prioridad: scopes FAPI advance, luego FAPI baseline, luego
// openid, luego OAuth2 plano. Nunca falla.
func ClassifyProfile(scopes []string, cfg *types.ServerConfiguration) types.AuthorizationProfile {
	switch {
	case cfg.HasFAPIAdvanceScope(scopes):
		return types.ProfileFAPIAdvance
	case cfg.HasFAPIBaselineScope(scopes):
		return types.ProfileFAPIBaseline
	case hasScope(scopes, "openid"):
		return types.ProfileOIDC
	default:
		return types.ProfileOAuth2
	}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
