package types

import "fmt"

// ErrorCode es el vocabulario de error codes OAuth/OIDC/CIBA en el wire.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "invalid_request"
	ErrInvalidScope            ErrorCode = "invalid_scope"
	ErrInvalidClient           ErrorCode = "invalid_client"
	ErrInvalidGrant            ErrorCode = "invalid_grant"
	ErrUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrUnsupportedGrantType    ErrorCode = "unsupported_grant_type"
	ErrUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrAccessDenied            ErrorCode = "access_denied"
	ErrExpiredToken            ErrorCode = "expired_token"
	ErrAuthorizationPending    ErrorCode = "authorization_pending"
	ErrSlowDown                ErrorCode = "slow_down"
	ErrServerError             ErrorCode = "server_error"

	// CIBA pre-checks
	ErrUnknownUserID   ErrorCode = "unknown_user_id"
	ErrInvalidUserCode ErrorCode = "invalid_user_code"
)

// DirectError es un error reportado en el endpoint de origen como
// 400 JSON {error, error_description}. Se usa siempre que el redirect_uri
// no está verificado todavía, y para todos los errores del token endpoint.
type DirectError struct {
	Code        ErrorCode
	Description string
}

func (e *DirectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewDirectError crea un DirectError.
func NewDirectError(code ErrorCode, format string, args ...any) *DirectError {
	return &DirectError{Code: code, Description: fmt.Sprintf(format, args...)}
}

// RedirectableError es un error que se entrega al redirect_uri verificado
// del cliente, según el response_mode negociado. Solo puede crearse una vez
// que el redirect_uri fue confirmado contra la configuración del cliente.
type RedirectableError struct {
	Code         ErrorCode
	Description  string
	RedirectURI  string
	State        string
	ResponseMode ResponseMode
}

func (e *RedirectableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
