package token

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// CibaGrantDeps contiene las dependencias del handler ciba.
type CibaGrantDeps struct {
	Transactions repository.BackchannelAuthRepository
	Issuer       *TokenIssuer
}

// cibaHandler canjea transacciones backchannel por el token endpoint. Una
// transacción autorizada se consume con una única transición atómica a
// issued, así los pollers concurrentes reciben exactamente una respuesta.
type cibaHandler struct {
	transactions repository.BackchannelAuthRepository
	issuer       *TokenIssuer
	now          func() time.Time
}

func NewCibaHandler(d CibaGrantDeps) GrantHandler {
	return &cibaHandler{transactions: d.Transactions, issuer: d.Issuer, now: time.Now}
}

func (h *cibaHandler) GrantType() types.GrantType { return types.GrantCiba }

func (h *cibaHandler) Handle(ctx context.Context, tc *TokenRequestContext) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.ciba"),
		logger.TenantID(tc.TenantID), logger.ClientID(tc.Client.ClientID))

	if derr := validateGrant(tc, types.GrantCiba, types.KeyAuthReqID); derr != nil {
		return nil, derr
	}

	authReqID := tc.Params.Get(types.KeyAuthReqID)
	tx, err := h.transactions.FindByAuthReqID(ctx, tc.TenantID, authReqID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("unknown auth_req_id")
			return nil, types.NewDirectError(types.ErrInvalidGrant, "auth_req_id is invalid")
		}
		log.Error("transaction lookup failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "transaction lookup failed")
	}
	if tx.ClientID != tc.Client.ClientID {
		log.Warn("auth_req_id client mismatch", logger.AuthReqID(authReqID))
		return nil, types.NewDirectError(types.ErrInvalidGrant, "auth_req_id was issued to another client")
	}

	now := h.now().UTC()

	if tx.Status == types.CibaPending && tx.Expired(now) {
		// Expiración perezosa; perder la carrera contra otra transición está bien.
		if err := h.transactions.UpdateStatus(ctx, tc.TenantID, authReqID, types.CibaPending, types.CibaExpired); err == nil {
			metrics.CibaTransition(string(types.CibaExpired))
		}
		return nil, types.NewDirectError(types.ErrExpiredToken, "the backchannel request expired")
	}

	switch tx.Status {
	case types.CibaPending:
		if !tx.LastPolledAt.IsZero() && now.Sub(tx.LastPolledAt) < time.Duration(tx.Interval)*time.Second {
			return nil, types.NewDirectError(types.ErrSlowDown, "polling too frequently")
		}
		if err := h.transactions.TouchPolled(ctx, tc.TenantID, authReqID, now); err != nil {
			log.Warn("poll timestamp update failed", logger.Err(err))
		}
		return nil, types.NewDirectError(types.ErrAuthorizationPending, "the user has not yet responded")

	case types.CibaDenied:
		// Invalida el id para que los polls posteriores reporten invalid_grant.
		if err := h.transactions.UpdateStatus(ctx, tc.TenantID, authReqID, types.CibaDenied, types.CibaIssued); err == nil {
			metrics.CibaTransition(string(types.CibaIssued))
		}
		return nil, types.NewDirectError(types.ErrAccessDenied, "the user denied the request")

	case types.CibaExpired:
		return nil, types.NewDirectError(types.ErrExpiredToken, "the backchannel request expired")

	case types.CibaAuthorized:
		return h.redeem(ctx, tc, authReqID)

	default: // issued
		return nil, types.NewDirectError(types.ErrInvalidGrant, "auth_req_id is no longer redeemable")
	}
}

func (h *cibaHandler) redeem(ctx context.Context, tc *TokenRequestContext, authReqID string) (*TokenResponse, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.ciba"),
		logger.TenantID(tc.TenantID), logger.AuthReqID(authReqID))

	tx, err := h.transactions.ConsumeAuthorized(ctx, tc.TenantID, authReqID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConsumed) {
			log.Warn("auth_req_id already redeemed")
			return nil, types.NewDirectError(types.ErrInvalidGrant, "auth_req_id is no longer redeemable")
		}
		log.Error("transaction consume failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "transaction consume failed")
	}
	metrics.CibaTransition(string(types.CibaIssued))

	grant := tx.ToGrant()
	token, err := h.issuer.Issue(ctx, IssueInput{
		TenantID:    tc.TenantID,
		Client:      tc.Client,
		Server:      tc.Server,
		Grant:       grant,
		WithRefresh: tc.Client.SupportsGrantType(types.GrantRefreshToken),
		WithIDToken: grant.HasScope("openid"),
	})
	if err != nil {
		return nil, types.NewDirectError(types.ErrServerError, "token issuance failed")
	}
	log.Info("backchannel transaction redeemed")
	return Response(token), nil
}
