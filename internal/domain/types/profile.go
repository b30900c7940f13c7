package types

// AuthorizationProfile clasifica un authorization request según las reglas
// que aplican: OAuth2 plano, OIDC, o los perfiles FAPI.
// El orden es de rigor creciente: oauth2 < oidc < fapi_baseline < fapi_advance.
type AuthorizationProfile string

const (
	ProfileOAuth2       AuthorizationProfile = "oauth2"
	ProfileOIDC         AuthorizationProfile = "oidc"
	ProfileFAPIBaseline AuthorizationProfile = "fapi_baseline"
	ProfileFAPIAdvance  AuthorizationProfile = "fapi_advance"
)

// Rank devuelve la posición del profile en el orden total de rigor.
func (p AuthorizationProfile) Rank() int {
	switch p {
	case ProfileOIDC:
		return 1
	case ProfileFAPIBaseline:
		return 2
	case ProfileFAPIAdvance:
		return 3
	default:
		return 0
	}
}

// IsOIDC reporta si el profile incluye las reglas OIDC (oidc y ambos FAPI).
func (p AuthorizationProfile) IsOIDC() bool {
	return p.Rank() >= 1
}

// IsFAPI reporta si el profile es fapi_baseline o fapi_advance.
func (p AuthorizationProfile) IsFAPI() bool {
	return p.Rank() >= 2
}

func (p AuthorizationProfile) IsFAPIAdvance() bool {
	return p == ProfileFAPIAdvance
}

func (p AuthorizationProfile) String() string {
	return string(p)
}
