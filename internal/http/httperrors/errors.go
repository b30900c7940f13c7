// Package httperrors centraliza la escritura de errores OAuth sobre HTTP.
package httperrors

import (
	"encoding/json"
	"net/http"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteTokenJSON escribe una respuesta del token endpoint con los headers
// de no-cache que exige RFC 6749 §5.1.
func WriteTokenJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	WriteJSON(w, status, v)
}

// WriteOAuthError escribe un error OAuth plano {error, error_description}.
func WriteOAuthError(w http.ResponseWriter, status int, code, desc string) {
	WriteTokenJSON(w, status, oauthError{Error: code, ErrorDescription: desc})
}

// WriteDirect escribe un *types.DirectError con el status HTTP que le
// corresponde: invalid_client va como 401 con WWW-Authenticate cuando el
// cliente usó Basic, server_error como 500, el resto como 400.
func WriteDirect(w http.ResponseWriter, e *types.DirectError, basicAuth bool) {
	status := http.StatusBadRequest
	switch e.Code {
	case types.ErrInvalidClient:
		status = http.StatusUnauthorized
		if basicAuth {
			w.Header().Set("WWW-Authenticate", `Basic realm="token", charset="UTF-8"`)
		}
	case types.ErrServerError:
		status = http.StatusInternalServerError
	}
	WriteOAuthError(w, status, string(e.Code), e.Description)
}
