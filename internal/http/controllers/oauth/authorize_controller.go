// Package oauth contiene los controllers del authorization y token endpoint.
package oauth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/http/httperrors"
	"github.com/gatehouse-id/gatehouse/internal/http/middlewares"
	"github.com/gatehouse-id/gatehouse/internal/oauth"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// AuthorizeController handles the authorization endpoint: request
// resolution plus the approve/deny decision callbacks from the
// authentication front-end.
type AuthorizeController struct {
	service *oauth.AuthorizeService
}

// NewAuthorizeController creates the controller.
func NewAuthorizeController(s *oauth.AuthorizeService) *AuthorizeController {
	return &AuthorizeController{service: s}
}

// pendingRequest is the JSON view of a resolved authorization request
// handed to the authentication front-end.
type pendingRequest struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Scopes       []string  `json:"scopes"`
	Profile      string    `json:"profile"`
	Pattern      string    `json:"pattern"`
	ResponseType string    `json:"response_type"`
	RedirectURI  string    `json:"redirect_uri"`
	Display      string    `json:"display,omitempty"`
	Prompts      []string  `json:"prompts,omitempty"`
	UILocales    string    `json:"ui_locales,omitempty"`
	LoginHint    string    `json:"login_hint,omitempty"`
	ACRValues    string    `json:"acr_values,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Authorize handles GET/POST /{tenant}/authorizations.
// Resolves, validates and stores the request; the caller (the
// authentication front-end) receives the pending request to drive login
// and consent. Validation failures after redirect_uri verification come
// back as redirects toward the client.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}

	tenant := middlewares.GetTenant(ctx)
	req, err := c.service.Authorize(ctx, tenant.ID, types.ParamsFromValues(r.Form))
	if err != nil {
		c.writeAuthorizeError(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusCreated, toPendingRequest(req))
}

// decisionBody is the approve payload posted by the authentication
// front-end once the resource owner decided.
type decisionBody struct {
	Subject          string         `json:"subject"`
	GrantedScopes    []string       `json:"granted_scopes"`
	CustomProperties map[string]any `json:"custom_properties"`
	Authentication   struct {
		AuthTime int64    `json:"auth_time"`
		ACR      string   `json:"acr"`
		AMR      []string `json:"amr"`
	} `json:"authentication"`
}

// Approve handles POST /{tenant}/authorizations/{id}/approve.
func (c *AuthorizeController) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.approve"))

	var body decisionBody
	if !readJSON(w, r, &body) {
		return
	}
	if body.Subject == "" {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, "invalid_request", "subject is required")
		return
	}

	authn := types.AuthenticationContext{ACR: body.Authentication.ACR, AMR: body.Authentication.AMR}
	if body.Authentication.AuthTime > 0 {
		authn.AuthTime = time.Unix(body.Authentication.AuthTime, 0)
	}

	tenant := middlewares.GetTenant(ctx)
	redirect, err := c.service.Approve(ctx, tenant.ID, chi.URLParam(r, "id"), oauth.Approval{
		Subject:          body.Subject,
		GrantedScopes:    body.GrantedScopes,
		CustomProperties: body.CustomProperties,
		Authentication:   authn,
	})
	if err != nil {
		log.Warn("approval failed", logger.Err(err))
		c.writeAuthorizeError(w, err)
		return
	}
	writeRedirect(w, redirect)
}

// Deny handles POST /{tenant}/authorizations/{id}/deny.
func (c *AuthorizeController) Deny(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middlewares.GetTenant(ctx)

	redirect, err := c.service.Deny(ctx, tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		c.writeAuthorizeError(w, err)
		return
	}
	writeRedirect(w, redirect)
}

// writeAuthorizeError picks the channel: redirectable errors travel to the
// client's verified redirect_uri, direct errors stay on this endpoint.
func (c *AuthorizeController) writeAuthorizeError(w http.ResponseWriter, err error) {
	var rerr *types.RedirectableError
	if errors.As(err, &rerr) {
		redirect, rdErr := oauth.BuildErrorRedirect(rerr)
		if rdErr == nil {
			writeRedirect(w, redirect)
			return
		}
		httperrors.WriteOAuthError(w, http.StatusBadRequest, string(rerr.Code), rerr.Description)
		return
	}
	var derr *types.DirectError
	if errors.As(err, &derr) {
		httperrors.WriteDirect(w, derr, false)
		return
	}
	httperrors.WriteOAuthError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeRedirect(w http.ResponseWriter, redirect *oauth.RedirectResponse) {
	if redirect.FormPost {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, redirect.HTMLBody)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", redirect.Location)
	w.WriteHeader(http.StatusFound)
}

func toPendingRequest(req *types.AuthorizationRequest) pendingRequest {
	return pendingRequest{
		ID:           req.ID,
		ClientID:     req.ClientID,
		Scopes:       req.Scopes,
		Profile:      string(req.Profile),
		Pattern:      string(req.Pattern),
		ResponseType: string(req.ResponseType),
		RedirectURI:  req.RedirectURI,
		Display:      string(req.Display),
		Prompts:      req.Prompts.Strings(),
		UILocales:    req.UILocales,
		LoginHint:    req.LoginHint,
		ACRValues:    req.ACRValues,
		ExpiresAt:    req.ExpiresAt,
	}
}

// readJSON decodifica JSON de forma tolerante y limita el body a 1MB.
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
