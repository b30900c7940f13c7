package types

// ClientType distingue clientes confidenciales de públicos.
type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential"
	ClientTypePublic       ClientType = "public"
)

// ApplicationType es el application_type de OIDC registration.
type ApplicationType string

const (
	ApplicationTypeWeb    ApplicationType = "web"
	ApplicationTypeNative ApplicationType = "native"
)

// ClientAuthMethod es el método de autenticación del cliente en el token endpoint.
type ClientAuthMethod string

const (
	AuthMethodBasic ClientAuthMethod = "client_secret_basic"
	AuthMethodPost  ClientAuthMethod = "client_secret_post"
	AuthMethodNone  ClientAuthMethod = "none"
)

// ClientConfiguration es la configuración registrada de un cliente OAuth.
// La persistencia y administración de esta configuración es externa al
// engine; acá solo se consume en lectura.
type ClientConfiguration struct {
	ClientID        string
	TenantID        string
	Name            string
	Type            ClientType
	ApplicationType ApplicationType
	AuthMethod      ClientAuthMethod

	// SecretHash es el client_secret en argon2id PHC. Secret conserva el
	// secreto en claro solo para algoritmos simétricos de request object (HS*).
	SecretHash string
	Secret     string

	RedirectURIs  []string
	ResponseTypes []string
	GrantTypes    []string
	Scopes        []string

	// Request object (JAR)
	RequestURIs                []string
	RequireSignedRequestObject bool
	RequestObjectSigningAlg    string
	JWKS                       string // JSON Web Key Set del cliente

	// ID token
	IDTokenSignedResponseAlg    string
	IDTokenEncryptedResponseAlg string
	IDTokenEncryptedResponseEnc string

	// CIBA
	BackchannelTokenDeliveryMode   DeliveryMode
	BackchannelUserCodeParameter   bool
	BackchannelClientNotificationEndpoint string

	// mTLS constrained tokens
	TLSClientCertificateBoundAccessTokens bool

	AccessTokenTTLSeconds  int64
	RefreshTokenTTLSeconds int64
	IDTokenTTLSeconds      int64
}

// IsRegisteredRedirectURI compara por string match exacto contra los URIs registrados.
func (c *ClientConfiguration) IsRegisteredRedirectURI(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// IsRegisteredRequestURI reporta si el request_uri está pre-registrado (match exacto).
func (c *ClientConfiguration) IsRegisteredRequestURI(uri string) bool {
	for _, r := range c.RequestURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// SupportsResponseType reporta si el cliente registró el response_type.
func (c *ClientConfiguration) SupportsResponseType(t ResponseType) bool {
	for _, r := range c.ResponseTypes {
		if ParseResponseType(r) == t {
			return true
		}
	}
	return false
}

// SupportsGrantType reporta si el cliente registró el grant_type.
// Sin grant types configurados se permite solo authorization_code.
func (c *ClientConfiguration) SupportsGrantType(g GrantType) bool {
	if len(c.GrantTypes) == 0 {
		return g == GrantAuthorizationCode
	}
	for _, gt := range c.GrantTypes {
		if GrantType(gt) == g {
			return true
		}
	}
	return false
}

// IsWebApplication reporta si el cliente es una aplicación web.
func (c *ClientConfiguration) IsWebApplication() bool {
	return c.ApplicationType == ApplicationTypeWeb
}

// SingleRedirectURI devuelve el único redirect_uri registrado, si hay exactamente uno.
func (c *ClientConfiguration) SingleRedirectURI() (string, bool) {
	if len(c.RedirectURIs) == 1 {
		return c.RedirectURIs[0], true
	}
	return "", false
}

// EncryptedIDTokens reporta si el cliente pidió id_tokens anidados en JWE.
func (c *ClientConfiguration) EncryptedIDTokens() bool {
	return c.IDTokenEncryptedResponseAlg != "" && c.IDTokenEncryptedResponseEnc != ""
}
