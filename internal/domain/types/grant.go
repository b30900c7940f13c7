package types

import "time"

// AuthorizationGrant es la decisión de autorización resuelta: qué sujeto
// autorizó a qué cliente, con qué scopes y detalles. Se crea cuando el
// resource owner aprueba un request (o una transacción CIBA se autoriza)
// y se consume exactamente una vez al emitir tokens.
type AuthorizationGrant struct {
	Subject              string
	ClientID             string
	Scopes               []string
	CustomProperties     map[string]any
	AuthorizationDetails []AuthorizationDetail
}

// Scope devuelve los scopes como string space-delimited.
func (g AuthorizationGrant) Scope() string {
	out := ""
	for i, s := range g.Scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// HasScope reporta si el grant incluye el scope dado.
func (g AuthorizationGrant) HasScope(name string) bool {
	for _, s := range g.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// AuthenticationContext describe cómo se autenticó el sujeto, para los
// claims auth_time/acr/amr del id_token.
type AuthenticationContext struct {
	AuthTime time.Time
	ACR      string
	AMR      []string
}

// AuthorizationCodeGrant vincula un authorization code con el request que
// lo originó y el grant aprobado. El code es single-use: el repositorio
// garantiza que Consume solo puede tener éxito una vez.
type AuthorizationCodeGrant struct {
	Code                   string
	TenantID               string
	AuthorizationRequestID string
	Grant                  AuthorizationGrant
	Authentication         AuthenticationContext
	ExpiresAt              time.Time
}

// Expired reporta si el code ya venció.
func (g *AuthorizationCodeGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
