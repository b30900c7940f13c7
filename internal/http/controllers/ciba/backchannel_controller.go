// Package ciba contiene el controller del backchannel authentication endpoint.
package ciba

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-id/gatehouse/internal/ciba"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	"github.com/gatehouse-id/gatehouse/internal/http/middlewares"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/token"
)

// BackchannelController handles CIBA: transaction creation by the client
// plus the authorize/deny callbacks from the authentication device backend.
type BackchannelController struct {
	builder *token.ContextBuilder
	flow    *ciba.Flow
}

// NewBackchannelController creates the controller.
func NewBackchannelController(b *token.ContextBuilder, f *ciba.Flow) *BackchannelController {
	return &BackchannelController{builder: b, flow: f}
}

// Create handles POST /{tenant}/backchannel-authentications.
// The client authenticates exactly like on the token endpoint; the
// response carries auth_req_id, expires_in and interval.
func (c *BackchannelController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ciba.create"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	creds := extractClientCredentials(r)
	tenant := middlewares.GetTenant(ctx)

	tc, derr := c.builder.Build(ctx, tenant.ID, types.ParamsFromValues(r.PostForm), creds)
	if derr != nil {
		httperrors.WriteDirect(w, derr, creds.Basic)
		return
	}

	result, derr := c.flow.Create(ctx, ciba.CreateInput{
		TenantID: tenant.ID,
		Client:   tc.Client,
		Server:   tc.Server,
		Params:   tc.Params,
	})
	if derr != nil {
		httperrors.WriteDirect(w, derr, creds.Basic)
		return
	}

	httperrors.WriteTokenJSON(w, http.StatusOK, result)
}

type decisionBody struct {
	Subject string `json:"subject"`
}

// Authorize handles POST /{tenant}/backchannel-authentications/{auth_req_id}/authorize.
func (c *BackchannelController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body decisionBody
	if !readJSON(w, r, &body) {
		return
	}

	tenant := middlewares.GetTenant(ctx)
	err := c.flow.Authorize(ctx, tenant.ID, chi.URLParam(r, "auth_req_id"), body.Subject)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deny handles POST /{tenant}/backchannel-authentications/{auth_req_id}/deny.
func (c *BackchannelController) Deny(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middlewares.GetTenant(ctx)

	err := c.flow.Deny(ctx, tenant.ID, chi.URLParam(r, "auth_req_id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeFlowError(w http.ResponseWriter, err error) {
	var derr *types.DirectError
	if errors.As(err, &derr) {
		httperrors.WriteDirect(w, derr, false)
		return
	}
	httperrors.WriteOAuthError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func extractClientCredentials(r *http.Request) token.ClientCredentials {
	if id, secret, ok := r.BasicAuth(); ok {
		return token.ClientCredentials{
			ClientID:     strings.TrimSpace(id),
			ClientSecret: secret,
			Basic:        true,
		}
	}
	return token.ClientCredentials{}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return false
	}
	return true
}
