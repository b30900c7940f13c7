package types

import (
	"sort"
	"strings"
)

// ResponseType es el response_type normalizado de un authorization request.
// Los valores compuestos ("code id_token") se normalizan ordenando los tokens,
// de modo que "id_token code" y "code id_token" comparan iguales.
type ResponseType string

const (
	ResponseTypeUndefined        ResponseType = ""
	ResponseTypeCode             ResponseType = "code"
	ResponseTypeToken            ResponseType = "token"
	ResponseTypeIDToken          ResponseType = "id_token"
	ResponseTypeCodeIDToken      ResponseType = "code id_token"
	ResponseTypeCodeToken        ResponseType = "code token"
	ResponseTypeIDTokenToken     ResponseType = "id_token token"
	ResponseTypeCodeIDTokenToken ResponseType = "code id_token token"
	ResponseTypeNone             ResponseType = "none"
	ResponseTypeUnknown          ResponseType = "unknown"
)

// ParseResponseType normaliza el valor crudo del parámetro response_type.
func ParseResponseType(raw string) ResponseType {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ResponseTypeUndefined
	}
	sort.Strings(fields)
	switch normalized := ResponseType(strings.Join(fields, " ")); normalized {
	case ResponseTypeCode, ResponseTypeToken, ResponseTypeIDToken,
		ResponseTypeCodeIDToken, ResponseTypeCodeToken,
		ResponseTypeIDTokenToken, ResponseTypeCodeIDTokenToken,
		ResponseTypeNone:
		return normalized
	default:
		return ResponseTypeUnknown
	}
}

func (t ResponseType) IsUndefined() bool { return t == ResponseTypeUndefined }
func (t ResponseType) IsUnknown() bool   { return t == ResponseTypeUnknown }

func (t ResponseType) contains(v string) bool {
	for _, f := range strings.Fields(string(t)) {
		if f == v {
			return true
		}
	}
	return false
}

// HasCode reporta si el flujo emite un authorization code.
func (t ResponseType) HasCode() bool { return t.contains("code") }

// HasIDToken reporta si el flujo emite un id_token desde el authorization endpoint.
func (t ResponseType) HasIDToken() bool { return t.contains("id_token") }

// HasToken reporta si el flujo emite un access token desde el authorization endpoint.
func (t ResponseType) HasToken() bool { return t.contains("token") }

// IsImplicitFlow reporta si es un flujo implícito puro (sin code).
func (t ResponseType) IsImplicitFlow() bool {
	return !t.HasCode() && (t.HasToken() || t.HasIDToken())
}

// IsHybridFlow reporta si es un flujo híbrido OIDC (code + token/id_token).
func (t ResponseType) IsHybridFlow() bool {
	return t.HasCode() && (t.HasToken() || t.HasIDToken())
}

func (t ResponseType) String() string { return string(t) }

// ResponseMode indica cómo se entrega el resultado al redirect_uri.
type ResponseMode string

const (
	ResponseModeUnspecified ResponseMode = ""
	ResponseModeQuery       ResponseMode = "query"
	ResponseModeFragment    ResponseMode = "fragment"
	ResponseModeFormPost    ResponseMode = "form_post"
)

// IsValid reporta si el response_mode es uno de los soportados (o vacío).
func (m ResponseMode) IsValid() bool {
	switch m {
	case ResponseModeUnspecified, ResponseModeQuery, ResponseModeFragment, ResponseModeFormPost:
		return true
	default:
		return false
	}
}

// EffectiveResponseMode resuelve el mode a usar: el pedido explícitamente,
// o el default del response_type (query para code, fragment para el resto).
func EffectiveResponseMode(t ResponseType, m ResponseMode) ResponseMode {
	if m != ResponseModeUnspecified {
		return m
	}
	if t == ResponseTypeCode || t == ResponseTypeNone || t.IsUndefined() {
		return ResponseModeQuery
	}
	return ResponseModeFragment
}
