package types

import "time"

// CibaStatus es el estado de una transacción backchannel.
// Transiciones válidas: pending -> authorized | denied | expired,
// authorized -> issued. Cualquier otra transición es un error.
type CibaStatus string

const (
	CibaPending    CibaStatus = "pending"
	CibaAuthorized CibaStatus = "authorized"
	CibaDenied     CibaStatus = "denied"
	CibaExpired    CibaStatus = "expired"
	CibaIssued     CibaStatus = "issued"
)

// Terminal reporta si el estado ya no admite authorize/deny.
func (s CibaStatus) Terminal() bool {
	return s != CibaPending
}

// UserHintType discrimina el hint usado para resolver al usuario.
type UserHintType string

const (
	HintLoginHint      UserHintType = "login_hint"
	HintLoginHintToken UserHintType = "login_hint_token"
	HintIDTokenHint    UserHintType = "id_token_hint"
)

// BackchannelAuthenticationRequest es la transacción CIBA: el análogo
// backchannel de AuthorizationRequest. El auth_req_id es single-use una
// vez alcanzado un estado terminal; el repositorio garantiza que las
// transiciones de estado son condicionales y atómicas.
type BackchannelAuthenticationRequest struct {
	AuthReqID               string
	TenantID                string
	ClientID                string
	Profile                 AuthorizationProfile
	Scopes                  []string
	DeliveryMode            DeliveryMode
	HintType                UserHintType
	Hint                    string
	BindingMessage          string
	UserCode                string
	ClientNotificationToken string
	ACRValues               string
	RequestedExpiry         int64
	AuthorizationDetails    []AuthorizationDetail

	// Subject se resuelve del hint en la creación; el grant definitivo
	// se crea recién cuando el usuario autoriza.
	Subject string

	Status       CibaStatus
	Interval     int64
	LastPolledAt time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reporta si la transacción venció.
func (r *BackchannelAuthenticationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// HasScope reporta si la transacción incluye el scope dado.
func (r *BackchannelAuthenticationRequest) HasScope(name string) bool {
	for _, s := range r.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// ToGrant construye el AuthorizationGrant resultante de una transacción autorizada.
func (r *BackchannelAuthenticationRequest) ToGrant() AuthorizationGrant {
	return AuthorizationGrant{
		Subject:              r.Subject,
		ClientID:             r.ClientID,
		Scopes:               r.Scopes,
		AuthorizationDetails: r.AuthorizationDetails,
	}
}
