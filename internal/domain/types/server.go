package types

import "time"

// Tenant identifica un tenant del servidor.
type Tenant struct {
	ID     string
	Slug   string
	Name   string
	Active bool
}

// ServerConfiguration es la configuración del authorization server para un
// tenant: issuer, soportes, listas de scopes FAPI y TTLs del protocolo.
type ServerConfiguration struct {
	Issuer string

	ScopesSupported        []string
	ResponseTypesSupported []string
	GrantTypesSupported    []string

	// Scopes que fuerzan la clasificación FAPI.
	FAPIBaselineScopes []string
	FAPIAdvanceScopes  []string

	AuthorizationRequestTTL time.Duration
	AuthorizationCodeTTL    time.Duration
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	IDTokenTTL              time.Duration
	DefaultMaxAge           int64

	// CIBA
	CibaDefaultExpiry time.Duration
	CibaMaxExpiry     time.Duration
	CibaPollInterval  time.Duration
}

// SupportsResponseType reporta si el servidor soporta el response_type.
func (c *ServerConfiguration) SupportsResponseType(t ResponseType) bool {
	for _, r := range c.ResponseTypesSupported {
		if ParseResponseType(r) == t {
			return true
		}
	}
	return false
}

// SupportsGrantType reporta si el servidor soporta el grant_type.
func (c *ServerConfiguration) SupportsGrantType(g GrantType) bool {
	for _, gt := range c.GrantTypesSupported {
		if GrantType(gt) == g {
			return true
		}
	}
	return false
}

// HasFAPIAdvanceScope reporta si algún scope pedido está en la lista FAPI advance.
func (c *ServerConfiguration) HasFAPIAdvanceScope(scopes []string) bool {
	return intersects(c.FAPIAdvanceScopes, scopes)
}

// HasFAPIBaselineScope reporta si algún scope pedido está en la lista FAPI baseline.
func (c *ServerConfiguration) HasFAPIBaselineScope(scopes []string) bool {
	return intersects(c.FAPIBaselineScopes, scopes)
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// User es la vista mínima de identidad que el engine necesita: resolución
// de hints CIBA, verificación de user_code y claims para el id_token.
type User struct {
	ID            string
	TenantID      string
	Username      string
	Email         string
	EmailVerified bool
	PhoneNumber   string
	Name          string
	Locked        bool

	// UserCodeHash es el user_code CIBA en argon2id PHC.
	UserCodeHash string

	// PasswordHash respalda el password grant.
	PasswordHash string

	// Claims adicionales para id_token/userinfo.
	Claims map[string]any
}

// Active reporta si el usuario puede autenticarse.
func (u *User) Active() bool {
	return !u.Locked
}
