package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

const refreshTokenBytes = 32 // opaque refresh entropy, above the 24-byte floor

// IssuerDeps contiene las dependencias del token issuer.
type IssuerDeps struct {
	Signer  *jose.Signer
	Tokens  repository.TokenRepository
	Users   repository.UserRepository
	Clients repository.ClientRepository
	Configs repository.ServerConfigurationRepository
}

// TokenIssuer construye y firma el access token, acuña el refresh token
// opaco y arma el id_token para los grants de tier OIDC.
type TokenIssuer struct {
	signer  *jose.Signer
	tokens  repository.TokenRepository
	users   repository.UserRepository
	clients repository.ClientRepository
	configs repository.ServerConfigurationRepository
	now     func() time.Time
}

func NewTokenIssuer(d IssuerDeps) *TokenIssuer {
	return &TokenIssuer{
		signer:  d.Signer,
		tokens:  d.Tokens,
		users:   d.Users,
		clients: d.Clients,
		configs: d.Configs,
		now:     time.Now,
	}
}

// IssueInput es el set completo de campos de una emisión. El issuer nunca
// lo muta.
type IssueInput struct {
	TenantID       string
	Client         *types.ClientConfiguration
	Server         *types.ServerConfiguration
	Grant          types.AuthorizationGrant
	Authentication *types.AuthenticationContext
	ClaimsFilter   types.ClaimsPayload
	Nonce          string
	Code           string // c_hash source when set
	State          string // s_hash source when set
	WithRefresh    bool
	WithIDToken    bool
	// SkipAtHash drops at_hash when the access token is not delivered
	// alongside the id_token (response_type=id_token).
	SkipAtHash bool
	CnfX5tS256 string
}

// Issue construye, firma y persiste el agregado de tokens.
func (i *TokenIssuer) Issue(ctx context.Context, in IssueInput) (*types.OAuthToken, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.issue"), logger.TenantID(in.TenantID))
	defer metrics.ObserveIssueLatency(time.Now())
	now := i.now().UTC()

	accessTTL := ttlOf(in.Client.AccessTokenTTLSeconds, in.Server.AccessTokenTTL)
	payload := types.AccessTokenPayload{
		Issuer:               in.Server.Issuer,
		Subject:              in.Grant.Subject,
		ClientID:             in.Grant.ClientID,
		Scope:                in.Grant.Scope(),
		CustomProperties:     in.Grant.CustomProperties,
		AuthorizationDetails: in.Grant.AuthorizationDetails,
		CnfX5tS256:           in.CnfX5tS256,
		IssuedAt:             now,
		ExpiresAt:            now.Add(accessTTL),
	}

	accessToken, err := i.signAccessToken(in.TenantID, payload)
	if err != nil {
		log.Error("access token signing failed", logger.Err(err))
		return nil, err
	}

	token := &types.OAuthToken{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		AccessToken: accessToken,
		Payload:     payload,
		CreatedAt:   now,
	}

	if in.WithRefresh {
		refresh, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("token: mint refresh token: %w", err)
		}
		token.RefreshToken = refresh
		token.RefreshExpiresAt = now.Add(ttlOf(in.Client.RefreshTokenTTLSeconds, in.Server.RefreshTokenTTL))
	}

	if in.WithIDToken {
		idToken, err := i.buildIDToken(ctx, in, accessToken, now)
		if err != nil {
			log.Error("id_token assembly failed", logger.Err(err))
			return nil, err
		}
		token.IDToken = idToken
	}

	if err := i.tokens.Save(ctx, token); err != nil {
		log.Error("token save failed", logger.Err(err))
		return nil, err
	}
	return token, nil
}

// IssueImplicit acuña los artefactos que el authorization endpoint
// devuelve directamente en los flujos implícito e híbrido. Nunca se emite
// refresh token por el front channel.
func (i *TokenIssuer) IssueImplicit(ctx context.Context, req *types.AuthorizationRequest, grant types.AuthorizationGrant, authn types.AuthenticationContext, code string) (string, int64, string, error) {
	client, err := i.clients.FindByID(ctx, req.TenantID, req.ClientID)
	if err != nil {
		return "", 0, "", fmt.Errorf("token: implicit client lookup: %w", err)
	}
	server, err := i.configs.FindByTenant(ctx, req.TenantID)
	if err != nil {
		return "", 0, "", fmt.Errorf("token: implicit config lookup: %w", err)
	}

	in := IssueInput{
		TenantID:       req.TenantID,
		Client:         client,
		Server:         server,
		Grant:          grant,
		Authentication: &authn,
		ClaimsFilter:   req.Claims,
		Nonce:          req.Nonce,
		Code:           code,
		State:          req.State,
		WithIDToken:    req.ResponseType.HasIDToken() && req.IsOIDC(),
		SkipAtHash:     !req.ResponseType.HasToken(),
	}
	token, err := i.Issue(ctx, in)
	if err != nil {
		return "", 0, "", err
	}
	expiresIn := int64(token.Payload.ExpiresAt.Sub(token.Payload.IssuedAt) / time.Second)
	return token.AccessToken, expiresIn, token.IDToken, nil
}

// Response arma el body de wire para un agregado emitido.
func Response(t *types.OAuthToken) *TokenResponse {
	return &TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(t.Payload.ExpiresAt.Sub(t.Payload.IssuedAt) / time.Second),
		RefreshToken: t.RefreshToken,
		IDToken:      t.IDToken,
		Scope:        t.Payload.Scope,
	}
}

func (i *TokenIssuer) signAccessToken(tenantID string, p types.AccessTokenPayload) (string, error) {
	claims := jwt.MapClaims{
		"iss":       p.Issuer,
		"client_id": p.ClientID,
		"scope":     p.Scope,
		"iat":       p.IssuedAt.Unix(),
		"exp":       p.ExpiresAt.Unix(),
		"jti":       uuid.NewString(),
	}
	if p.Subject != "" {
		claims["sub"] = p.Subject
	}
	for k, v := range p.CustomProperties {
		claims[k] = v
	}
	if len(p.AuthorizationDetails) > 0 {
		claims["authorization_details"] = p.AuthorizationDetails
	}
	if p.CnfX5tS256 != "" {
		claims["cnf"] = map[string]string{"x5t#S256": p.CnfX5tS256}
	}
	signed, _, err := i.signer.SignClaims(tenantID, claims)
	return signed, err
}

func (i *TokenIssuer) buildIDToken(ctx context.Context, in IssueInput, accessToken string, now time.Time) (string, error) {
	alg, err := i.signer.ActiveAlg(in.TenantID)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"iss": in.Server.Issuer,
		"sub": in.Grant.Subject,
		"aud": in.Grant.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(ttlOf(in.Client.IDTokenTTLSeconds, in.Server.IDTokenTTL)).Unix(),
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}
	if accessToken != "" && !in.SkipAtHash {
		h, err := jose.LeftHalfHash(alg, accessToken)
		if err != nil {
			return "", err
		}
		claims["at_hash"] = h
	}
	if in.Code != "" {
		h, err := jose.LeftHalfHash(alg, in.Code)
		if err != nil {
			return "", err
		}
		claims["c_hash"] = h
	}
	if in.State != "" {
		h, err := jose.LeftHalfHash(alg, in.State)
		if err != nil {
			return "", err
		}
		claims["s_hash"] = h
	}
	if a := in.Authentication; a != nil {
		if !a.AuthTime.IsZero() {
			claims["auth_time"] = a.AuthTime.Unix()
		}
		if a.ACR != "" {
			claims["acr"] = a.ACR
		}
		if len(a.AMR) > 0 {
			claims["amr"] = a.AMR
		}
	}

	i.addUserClaims(ctx, in, claims)

	signed, _, err := i.signer.SignClaims(in.TenantID, claims)
	if err != nil {
		return "", err
	}
	if in.Client.EncryptedIDTokens() {
		return jose.EncryptIDToken(in.Client, signed)
	}
	return signed, nil
}

// addUserClaims incorpora los claims de usuario pedidos por el set
// id_token del parámetro claims.
func (i *TokenIssuer) addUserClaims(ctx context.Context, in IssueInput, claims jwt.MapClaims) {
	if len(in.ClaimsFilter.IDToken) == 0 || in.Grant.Subject == "" || i.users == nil {
		return
	}
	user, err := i.users.FindByID(ctx, in.TenantID, in.Grant.Subject)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.From(ctx).Warn("user claims lookup failed", logger.Layer("service"), logger.Op("token.issue"), logger.Err(err))
		}
		return
	}
	for name := range in.ClaimsFilter.IDToken {
		if v, ok := userClaim(user, name); ok {
			claims[name] = v
		}
	}
}

func userClaim(u *types.User, name string) (any, bool) {
	switch name {
	case "email":
		return u.Email, u.Email != ""
	case "email_verified":
		return u.EmailVerified, u.Email != ""
	case "phone_number":
		return u.PhoneNumber, u.PhoneNumber != ""
	case "name":
		return u.Name, u.Name != ""
	case "preferred_username":
		return u.Username, u.Username != ""
	default:
		v, ok := u.Claims[name]
		return v, ok
	}
}

func ttlOf(clientSeconds int64, serverDefault time.Duration) time.Duration {
	if clientSeconds > 0 {
		return time.Duration(clientSeconds) * time.Second
	}
	return serverDefault
}
