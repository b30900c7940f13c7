package token

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

// CodeGrantDeps contiene las dependencias del handler authorization_code.
type CodeGrantDeps struct {
	Codes    repository.CodeGrantRepository
	Requests repository.AuthorizationRequestRepository
	Issuer   *TokenIssuer
}

// authorizationCodeHandler canjea authorization codes de un solo uso.
type authorizationCodeHandler struct {
	codes    repository.CodeGrantRepository
	requests repository.AuthorizationRequestRepository
	issuer   *TokenIssuer
	now      func() time.Time
}

func NewAuthorizationCodeHandler(d CodeGrantDeps) GrantHandler {
	return &authorizationCodeHandler{codes: d.Codes, requests: d.Requests, issuer: d.Issuer, now: time.Now}
}

func (h *authorizationCodeHandler) GrantType() types.GrantType { return types.GrantAuthorizationCode }

func (h *authorizationCodeHandler) Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.authorization_code"),
		logger.TenantID(tc.TenantID), logger.ClientID(tc.Client.ClientID))

	if derr := validateGrant(tc, types.GrantAuthorizationCode, types.KeyCode); derr != nil {
		return nil, derr
	}

	// Consume es atómico: un code repetido falla aquí, nunca emite dos veces.
	code := tc.Params.Get(types.KeyCode)
	cg, err := h.codes.Consume(ctx, tc.TenantID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConsumed) {
			log.Warn("authorization code not redeemable")
			return nil, types.NewDirectError(types.ErrInvalidGrant, "authorization code is invalid")
		}
		log.Error("code consume failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "authorization code lookup failed")
	}
	if cg.Expired(h.now().UTC()) {
		log.Warn("authorization code expired")
		return nil, types.NewDirectError(types.ErrInvalidGrant, "authorization code expired")
	}
	if cg.Grant.ClientID != tc.Client.ClientID {
		log.Warn("authorization code client mismatch")
		return nil, types.NewDirectError(types.ErrInvalidGrant, "authorization code was issued to another client")
	}

	// Resuelve y retira el request de origen.
	req, err := h.requests.Consume(ctx, tc.TenantID, cg.AuthorizationRequestID)
	if err != nil {
		log.Warn("originating authorization request unavailable", logger.Err(err))
		return nil, types.NewDirectError(types.ErrInvalidGrant, "authorization code is invalid")
	}

	if derr := h.checkRedirectEcho(tc, req); derr != nil {
		return nil, derr
	}
	if derr := h.checkPKCE(tc, req); derr != nil {
		log.Warn("PKCE verification failed", logger.AuthorizationID(req.ID))
		return nil, derr
	}

	authn := cg.Authentication
	token, err := h.issuer.Issue(ctx, IssueInput{
		TenantID:       tc.TenantID,
		Client:         tc.Client,
		Server:         tc.Server,
		Grant:          cg.Grant,
		Authentication: &authn,
		ClaimsFilter:   req.Claims,
		Nonce:          req.Nonce,
		WithRefresh:    tc.Client.SupportsGrantType(types.GrantRefreshToken),
		WithIDToken:    req.IsOIDC() && cg.Grant.HasScope("openid"),
	})
	if err != nil {
		return nil, types.NewDirectError(types.ErrServerError, "token issuance failed")
	}
	log.Info("authorization code redeemed", logger.AuthorizationID(req.ID))
	return Response(token), nil
}

// checkRedirectEcho aplica RFC 6749 §4.1.3: cuando el authorization
// request llevó redirect_uri, el token request debe repetirlo exacto.
func (h *authorizationCodeHandler) checkRedirectEcho(tc *TokenRequestContext, req *types.AuthorizationRequest) *types.DirectError {
	if req.RedirectURI == "" {
		return nil
	}
	if tc.Params.Get(types.KeyRedirectURI) != req.RedirectURI {
		return types.NewDirectError(types.ErrInvalidGrant, "redirect_uri does not match the authorization request")
	}
	return nil
}

func (h *authorizationCodeHandler) checkPKCE(tc *TokenRequestContext, req *types.AuthorizationRequest) *types.DirectError {
	if !req.HasCodeChallenge() {
		return nil
	}
	verifier := tc.Params.Get(types.KeyCodeVerifier)
	if verifier == "" {
		return types.NewDirectError(types.ErrInvalidGrant, "code_verifier is required")
	}
	switch req.CodeChallengeMethod {
	case "S256":
		if !tokens.ConstantTimeEquals(tokens.SHA256Base64URL(verifier), req.CodeChallenge) {
			return types.NewDirectError(types.ErrInvalidGrant, "code_verifier does not match")
		}
	// RFC 7636 defaults to plain when the method was not sent.
	case "plain", "":
		if !tokens.ConstantTimeEquals(verifier, req.CodeChallenge) {
			return types.NewDirectError(types.ErrInvalidGrant, "code_verifier does not match")
		}
	default:
		return types.NewDirectError(types.ErrInvalidGrant, "code_challenge_method is not supported")
	}
	return nil
}
