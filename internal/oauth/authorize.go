package oauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

// ImplicitIssuer emite los tokens que los flujos implícito e híbrido
// devuelven directamente desde el authorization endpoint. Lo implementa el
// token issuer.
type ImplicitIssuer interface {
	IssueImplicit(ctx context.Context, req *types.AuthorizationRequest, grant types.AuthorizationGrant, authn types.AuthenticationContext, code string) (accessToken string, expiresIn int64, idToken string, err error)
}

// AuthorizeDeps contiene las dependencias del servicio de autorización.
type AuthorizeDeps struct {
	Resolver *RequestPatternResolver
	Factory  *AuthorizationRequestFactory
	Chain    *AuthorizationValidationChain
	Configs  repository.ServerConfigurationRepository
	Requests repository.AuthorizationRequestRepository
	Codes    repository.CodeGrantRepository
	Issuer   ImplicitIssuer
	CodeTTL  time.Duration
}

// AuthorizeService maneja la mitad authorization-endpoint del engine.
type AuthorizeService struct {
	resolver *RequestPatternResolver
	factory  *AuthorizationRequestFactory
	chain    *AuthorizationValidationChain
	configs  repository.ServerConfigurationRepository
	requests repository.AuthorizationRequestRepository
	codes    repository.CodeGrantRepository
	issuer   ImplicitIssuer
	codeTTL  time.Duration
}

func NewAuthorizeService(d AuthorizeDeps) *AuthorizeService {
	ttl := d.CodeTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &AuthorizeService{
		resolver: d.Resolver,
		factory:  d.Factory,
		chain:    d.Chain,
		configs:  d.Configs,
		requests: d.Requests,
		codes:    d.Codes,
		issuer:   d.Issuer,
		codeTTL:  ttl,
	}
}

// Authorize resuelve, arma, valida y persiste un authorization request.
// El request devuelto alimenta el paso de interacción (login y consent);
// los errores son *types.DirectError o *types.RedirectableError.
func (s *AuthorizeService) Authorize(ctx context.Context, tenantID string, params types.Parameters) (*types.AuthorizationRequest, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"), logger.TenantID(tenantID))

	resolved, derr := s.resolver.Resolve(ctx, tenantID, params)
	if derr != nil {
		metrics.AuthorizationRejected("", string(derr.Code))
		return nil, derr
	}

	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		log.Error("server configuration lookup failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "server configuration unavailable")
	}

	req := s.factory.Build(tenantID, resolved, cfg)
	if err := s.chain.Validate(ctx, &ValidationContext{Resolved: resolved, Request: req, Server: cfg}); err != nil {
		metrics.AuthorizationRejected(string(req.Pattern), errorCodeOf(err))
		return nil, err
	}

	if err := s.requests.Save(ctx, req); err != nil {
		log.Error("authorization request save failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "could not persist authorization request")
	}

	metrics.AuthorizationResolved(string(req.Pattern), string(req.Profile))
	log.Info("authorization request resolved",
		logger.AuthorizationID(req.ID), logger.ClientID(req.ClientID),
		logger.Pattern(string(req.Pattern)), logger.Profile(string(req.Profile)))
	return req, nil
}

// Approval es la decisión del resource owner.
type Approval struct {
	Subject          string
	GrantedScopes    []string
	CustomProperties map[string]any
	Authentication   types.AuthenticationContext
}

// Approve consume el request almacenado exactamente una vez y produce el
// redirect con el code y/o los tokens implícitos.
func (s *AuthorizeService) Approve(ctx context.Context, tenantID, requestID string, approval Approval) (*RedirectResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.approve"), logger.TenantID(tenantID))

	req, derr := s.lookup(ctx, tenantID, requestID)
	if derr != nil {
		return nil, derr
	}
	// Los flujos con code mantienen vivo el request hasta que el token
	// endpoint canjea el code; los implícitos puros lo consumen aquí.
	if !req.ResponseType.HasCode() {
		if _, err := s.requests.Consume(ctx, tenantID, requestID); err != nil {
			return nil, types.NewDirectError(types.ErrInvalidRequest, "authorization request already used")
		}
	}

	scopes := approval.GrantedScopes
	if len(scopes) == 0 {
		scopes = req.Scopes
	}
	grant := types.AuthorizationGrant{
		Subject:              approval.Subject,
		ClientID:             req.ClientID,
		Scopes:               scopes,
		CustomProperties:     approval.CustomProperties,
		AuthorizationDetails: req.AuthorizationDetails,
	}

	params := map[string]string{}
	if req.State != "" {
		params["state"] = req.State
	}

	if req.ResponseType.HasCode() {
		code, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			log.Error("code generation failed", logger.Err(err))
			return nil, types.NewDirectError(types.ErrServerError, "could not issue authorization code")
		}
		now := time.Now().UTC()
		cg := &types.AuthorizationCodeGrant{
			Code:                   code,
			TenantID:               tenantID,
			AuthorizationRequestID: req.ID,
			Grant:                  grant,
			Authentication:         approval.Authentication,
			ExpiresAt:              now.Add(s.codeTTL),
		}
		if err := s.codes.Save(ctx, cg); err != nil {
			log.Error("code grant save failed", logger.Err(err))
			return nil, types.NewDirectError(types.ErrServerError, "could not issue authorization code")
		}
		params["code"] = code
	}

	if req.ResponseType.HasToken() || req.ResponseType.HasIDToken() {
		accessToken, expiresIn, idToken, err := s.issuer.IssueImplicit(ctx, req, grant, approval.Authentication, params["code"])
		if err != nil {
			log.Error("implicit issuance failed", logger.Err(err))
			return nil, types.NewDirectError(types.ErrServerError, "could not issue tokens")
		}
		if req.ResponseType.HasToken() {
			params["access_token"] = accessToken
			params["token_type"] = "Bearer"
			params["expires_in"] = strconv.FormatInt(expiresIn, 10)
		}
		if req.ResponseType.HasIDToken() {
			params["id_token"] = idToken
		}
	}

	log.Info("authorization approved", logger.AuthorizationID(req.ID), logger.ClientID(req.ClientID))
	return BuildRedirect(req.RedirectURI, req.ResponseMode, params)
}

// Deny consume el request almacenado y redirige access_denied al cliente.
func (s *AuthorizeService) Deny(ctx context.Context, tenantID, requestID string) (*RedirectResponse, error) {
	req, err := s.consume(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Expired(time.Now().UTC()) {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "authorization request expired")
	}
	logger.From(ctx).Info("authorization denied",
		logger.Layer("service"), logger.Op("oauth.deny"), logger.AuthorizationID(req.ID), logger.ClientID(req.ClientID))
	return BuildErrorRedirect(&types.RedirectableError{
		Code:         types.ErrAccessDenied,
		Description:  "the resource owner denied the request",
		RedirectURI:  req.RedirectURI,
		State:        req.State,
		ResponseMode: req.ResponseMode,
	})
}

func (s *AuthorizeService) consume(ctx context.Context, tenantID, requestID string) (*types.AuthorizationRequest, *types.DirectError) {
	req, err := s.requests.Consume(ctx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConsumed) {
			return nil, types.NewDirectError(types.ErrInvalidRequest, "authorization request not found")
		}
		return nil, types.NewDirectError(types.ErrServerError, "authorization request lookup failed")
	}
	return req, nil
}

func (s *AuthorizeService) lookup(ctx context.Context, tenantID, requestID string) (*types.AuthorizationRequest, *types.DirectError) {
	req, err := s.requests.FindByID(ctx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.NewDirectError(types.ErrInvalidRequest, "authorization request not found")
		}
		return nil, types.NewDirectError(types.ErrServerError, "authorization request lookup failed")
	}
	if req.Expired(time.Now().UTC()) {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "authorization request expired")
	}
	return req, nil
}

func errorCodeOf(err error) string {
	var d *types.DirectError
	if errors.As(err, &d) {
		return string(d.Code)
	}
	var r *types.RedirectableError
	if errors.As(err, &r) {
		return string(r.Code)
	}
	return string(types.ErrServerError)
}
