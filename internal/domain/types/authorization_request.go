package types

import (
	"encoding/json"
	"time"
)

// ClaimsPayload es el contenido estructurado del parámetro claims de OIDC.
type ClaimsPayload struct {
	IDToken  map[string]json.RawMessage `json:"id_token,omitempty"`
	Userinfo map[string]json.RawMessage `json:"userinfo,omitempty"`
}

// HasIDTokenClaim reporta si el payload pide un claim individual para el id_token.
func (c ClaimsPayload) HasIDTokenClaim(name string) bool {
	_, ok := c.IDToken[name]
	return ok
}

// ParseClaimsPayload parsea el valor estructurado del parámetro claims.
func ParseClaimsPayload(v any) (ClaimsPayload, error) {
	var out ClaimsPayload
	if v == nil {
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// AuthorizationDetail es un elemento de authorization_details (RFC 9396).
// Se preserva como mapa para no perder campos específicos del tipo.
type AuthorizationDetail map[string]any

// Type devuelve el campo type del detail (obligatorio por RFC 9396).
func (d AuthorizationDetail) Type() string {
	t, _ := d["type"].(string)
	return t
}

// ParseAuthorizationDetails parsea el valor estructurado de authorization_details.
func ParseAuthorizationDetails(v any) ([]AuthorizationDetail, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out []AuthorizationDetail
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuthorizationRequest es el registro inmutable de un authorization request
// resuelto y validado. Se crea una sola vez en la factory, se persiste por
// identifier y nunca se muta; expira en ExpiresAt o al consumirse.
type AuthorizationRequest struct {
	ID                  string
	TenantID            string
	Profile             AuthorizationProfile
	Pattern             RequestPattern
	Scopes              []string
	ResponseType        ResponseType
	ResponseMode        ResponseMode
	ClientID            string
	RedirectURI         string
	State               string
	Nonce               string
	Display             Display
	Prompts             Prompts
	MaxAge              *int64
	UILocales           string
	IDTokenHint         string
	LoginHint           string
	ACRValues           string
	Claims              ClaimsPayload
	CodeChallenge       string
	CodeChallengeMethod string
	AuthorizationDetails []AuthorizationDetail
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// HasScope reporta si el request incluye el scope dado.
func (r *AuthorizationRequest) HasScope(name string) bool {
	for _, s := range r.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// IsOIDC reporta si el request se clasificó con un profile OIDC (o FAPI).
func (r *AuthorizationRequest) IsOIDC() bool {
	return r.Profile.IsOIDC()
}

// HasCodeChallenge reporta si el request es PKCE.
func (r *AuthorizationRequest) HasCodeChallenge() bool {
	return r.CodeChallenge != ""
}

// Expired reporta si el request ya venció.
func (r *AuthorizationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
