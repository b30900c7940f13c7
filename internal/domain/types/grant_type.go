package types

// GrantType identifica el grant solicitado al token endpoint.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantCiba              GrantType = "urn:openid:params:grant-type:ciba"
)

func (g GrantType) String() string { return string(g) }

// RequestPattern discrimina la forma de entrega del authorization request.
type RequestPattern string

const (
	PatternNormal        RequestPattern = "normal"
	PatternRequestObject RequestPattern = "request_object"
	PatternRequestURI    RequestPattern = "request_uri"
)

func (p RequestPattern) String() string { return string(p) }

// UsesRequestObject reporta si el patrón involucra un request object JOSE.
func (p RequestPattern) UsesRequestObject() bool {
	return p == PatternRequestObject || p == PatternRequestURI
}

// DeliveryMode es el modo de entrega del resultado CIBA.
type DeliveryMode string

const (
	DeliveryPoll DeliveryMode = "poll"
	DeliveryPing DeliveryMode = "ping"
	DeliveryPush DeliveryMode = "push"
)

func (m DeliveryMode) IsValid() bool {
	switch m {
	case DeliveryPoll, DeliveryPing, DeliveryPush:
		return true
	default:
		return false
	}
}
