package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - PROTOCOLO OAUTH/OIDC
// =================================================================================

// TenantID crea un campo para el ID del tenant.
func TenantID(v string) zap.Field {
	return zap.String("tenant_id", v)
}

// ClientID crea un campo para el ID del cliente OAuth.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// GrantType crea un campo para el grant_type del token request.
func GrantType(v string) zap.Field {
	return zap.String("grant_type", v)
}

// Pattern crea un campo para el patrón del authorization request
// (normal, request_object, request_uri).
func Pattern(v string) zap.Field {
	return zap.String("pattern", v)
}

// Profile crea un campo para el profile clasificado (oauth2, oidc, fapi...).
func Profile(v string) zap.Field {
	return zap.String("profile", v)
}

// AuthorizationID crea un campo para el identifier del authorization request.
func AuthorizationID(v string) zap.Field {
	return zap.String("authorization_id", v)
}

// AuthReqID crea un campo para el auth_req_id de CIBA.
func AuthReqID(v string) zap.Field {
	return zap.String("auth_req_id", v)
}

// ErrorCode crea un campo para el error code OAuth (invalid_request, ...).
func ErrorCode(v string) zap.Field {
	return zap.String("error_code", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
