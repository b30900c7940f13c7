package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// RequestKey nombra un parámetro de authorization / backchannel request.
type RequestKey string

const (
	KeyResponseType         RequestKey = "response_type"
	KeyClientID             RequestKey = "client_id"
	KeyRedirectURI          RequestKey = "redirect_uri"
	KeyState                RequestKey = "state"
	KeyResponseMode         RequestKey = "response_mode"
	KeyScope                RequestKey = "scope"
	KeyNonce                RequestKey = "nonce"
	KeyDisplay              RequestKey = "display"
	KeyPrompt               RequestKey = "prompt"
	KeyMaxAge               RequestKey = "max_age"
	KeyUILocales            RequestKey = "ui_locales"
	KeyIDTokenHint          RequestKey = "id_token_hint"
	KeyLoginHint            RequestKey = "login_hint"
	KeyLoginHintToken       RequestKey = "login_hint_token"
	KeyACRValues            RequestKey = "acr_values"
	KeyClaims               RequestKey = "claims"
	KeyRequest              RequestKey = "request"
	KeyRequestURI           RequestKey = "request_uri"
	KeyCodeChallenge        RequestKey = "code_challenge"
	KeyCodeChallengeMethod  RequestKey = "code_challenge_method"
	KeyAuthorizationDetails RequestKey = "authorization_details"
	KeyGrantType            RequestKey = "grant_type"
	KeyCode                 RequestKey = "code"
	KeyRefreshToken         RequestKey = "refresh_token"
	KeyUsername             RequestKey = "username"
	KeyPassword             RequestKey = "password"
	KeyAuthReqID            RequestKey = "auth_req_id"
	KeyCodeVerifier         RequestKey = "code_verifier"
	KeyClientSecret         RequestKey = "client_secret"
	KeyRequestedExpiry      RequestKey = "requested_expiry"
	KeyUserCode             RequestKey = "user_code"
	KeyBindingMessage       RequestKey = "binding_message"
	KeyClientNotification   RequestKey = "client_notification_token"
)

// Parameters envuelve los parámetros crudos de query/form de un request.
// Conserva multiplicidad para poder detectar parámetros duplicados
// (OAuth 2.0 §3.2 los prohíbe en el token endpoint).
type Parameters struct {
	values url.Values
}

// ParamsFromValues crea Parameters desde url.Values ya parseados.
func ParamsFromValues(v url.Values) Parameters {
	if v == nil {
		v = url.Values{}
	}
	return Parameters{values: v}
}

// Get devuelve el primer valor del parámetro, o "".
func (p Parameters) Get(k RequestKey) string {
	return p.values.Get(string(k))
}

// Has reporta si el parámetro está presente (aunque sea vacío).
func (p Parameters) Has(k RequestKey) bool {
	_, ok := p.values[string(k)]
	return ok
}

// IsDuplicated reporta si el parámetro aparece más de una vez.
func (p Parameters) IsDuplicated(k RequestKey) bool {
	return len(p.values[string(k)]) > 1
}

// JSONValue parsea el valor del parámetro como JSON (claims,
// authorization_details llegan como JSON string en la query).
func (p Parameters) JSONValue(k RequestKey) (any, bool) {
	raw := p.Get(k)
	if raw == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

// RequestObjectParameters expone los claims de un request object verificado
// con la misma interfaz de acceso que Parameters.
type RequestObjectParameters struct {
	claims map[string]any
}

// RequestObjectParamsFromClaims crea RequestObjectParameters desde el payload JOSE.
func RequestObjectParamsFromClaims(claims map[string]any) RequestObjectParameters {
	if claims == nil {
		claims = map[string]any{}
	}
	return RequestObjectParameters{claims: claims}
}

// Get devuelve el claim como string. Los numéricos (max_age, requested_expiry)
// se formatean en decimal.
func (p RequestObjectParameters) Get(k RequestKey) string {
	v, ok := p.claims[string(k)]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Has reporta si el claim está presente.
func (p RequestObjectParameters) Has(k RequestKey) bool {
	v, ok := p.claims[string(k)]
	return ok && v != nil
}

// JSONValue devuelve el claim tal cual (ya viene estructurado del JOSE payload).
func (p RequestObjectParameters) JSONValue(k RequestKey) (any, bool) {
	v, ok := p.claims[string(k)]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
