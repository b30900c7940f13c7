package types

import "time"

// AccessTokenPayload son los claims del access token emitido. Se conserva
// junto al token para responder introspección sin re-parsear el JWT.
type AccessTokenPayload struct {
	Issuer               string                `json:"iss"`
	Subject              string                `json:"sub,omitempty"`
	ClientID             string                `json:"client_id"`
	Scope                string                `json:"scope"`
	CustomProperties     map[string]any        `json:"custom_properties,omitempty"`
	AuthorizationDetails []AuthorizationDetail `json:"authorization_details,omitempty"`
	CnfX5tS256           string                `json:"cnf_x5t_s256,omitempty"`
	IssuedAt             time.Time             `json:"iat"`
	ExpiresAt            time.Time             `json:"exp"`
}

// OAuthToken agrupa los artefactos emitidos por una redención de grant:
// access token firmado, refresh token opaco opcional e id_token opcional.
// Se persiste indexado por el valor del access token y del refresh token.
type OAuthToken struct {
	ID               string
	TenantID         string
	AccessToken      string
	Payload          AccessTokenPayload
	RefreshToken     string
	RefreshExpiresAt time.Time
	IDToken          string
	CreatedAt        time.Time
}

// HasRefreshToken reporta si se emitió refresh token.
func (t *OAuthToken) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// RefreshExpired reporta si el refresh token ya venció.
func (t *OAuthToken) RefreshExpired(now time.Time) bool {
	return !t.HasRefreshToken() || now.After(t.RefreshExpiresAt)
}
