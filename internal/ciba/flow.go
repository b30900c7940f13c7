package ciba

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/metrics"
	"github.com/gatehouse-id/gatehouse/internal/oauth"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/validation"
)

// FlowDeps contiene las dependencias del flujo backchannel.
type FlowDeps struct {
	Transactions repository.BackchannelAuthRepository
	Clients      repository.ClientRepository
	Resolvers    []HintResolver
	Verifiers    []AdditionalVerifier
	Notifier     ClientNotifier
}

// Flow maneja la máquina de estados CIBA: crea transacciones pending y
// aplica las transiciones authorize/deny. El canje ocurre en el token
// endpoint.
type Flow struct {
	transactions repository.BackchannelAuthRepository
	clients      repository.ClientRepository
	resolvers    map[types.UserHintType]HintResolver
	verifiers    []AdditionalVerifier
	notifier     ClientNotifier
	now          func() time.Time
}

func NewFlow(d FlowDeps) *Flow {
	resolvers := make(map[types.UserHintType]HintResolver, len(d.Resolvers))
	for _, r := range d.Resolvers {
		resolvers[r.Type()] = r
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &Flow{
		transactions: d.Transactions,
		clients:      d.Clients,
		resolvers:    resolvers,
		verifiers:    d.Verifiers,
		notifier:     notifier,
		now:          time.Now,
	}
}

// CreateInput lleva un backchannel authentication request ya autenticado.
type CreateInput struct {
	TenantID string
	Client   *types.ClientConfiguration
	Server   *types.ServerConfiguration
	Params   types.Parameters
}

// CreateResult es el body de respuesta del backchannel endpoint.
type CreateResult struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval"`
}

// Create valida el request, resuelve el hint de usuario, corre los
// verificadores adicionales y persiste una transacción pending. Todo fallo
// es un *types.DirectError; en este camino no existe redirect target.
func (f *Flow) Create(ctx context.Context, in CreateInput) (*CreateResult, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("ciba.create"),
		logger.TenantID(in.TenantID), logger.ClientID(in.Client.ClientID))

	if !in.Server.SupportsGrantType(types.GrantCiba) {
		return nil, types.NewDirectError(types.ErrUnsupportedGrantType, "backchannel authentication is not enabled on this server")
	}
	if !in.Client.SupportsGrantType(types.GrantCiba) {
		return nil, types.NewDirectError(types.ErrUnauthorizedClient, "client is not authorized for backchannel authentication")
	}

	mode := types.DeliveryMode(in.Client.BackchannelTokenDeliveryMode)
	if !mode.IsValid() {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "client has no valid backchannel delivery mode registered")
	}
	notificationToken := in.Params.Get(types.KeyClientNotification)
	if mode != types.DeliveryPoll && notificationToken == "" {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "client_notification_token is required for %s delivery", mode)
	}

	scopes := validation.SplitScopes(in.Params.Get(types.KeyScope))
	if len(scopes) == 0 {
		return nil, types.NewDirectError(types.ErrInvalidScope, "no valid scope was requested")
	}

	hintType, hint, derr := pickHint(in.Params)
	if derr != nil {
		return nil, derr
	}
	resolver, ok := f.resolvers[hintType]
	if !ok {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "%s is not supported", hintType)
	}
	user, err := resolver.Resolve(ctx, in.TenantID, hint)
	if err != nil {
		if errors.Is(err, errUnresolvableHint) {
			log.Warn("hint did not resolve", logger.String("hint_type", string(hintType)))
			return nil, types.NewDirectError(types.ErrUnknownUserID, "the hint does not identify a user")
		}
		log.Error("hint resolution failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "hint resolution failed")
	}

	for _, v := range f.verifiers {
		if derr := v.Verify(ctx, VerifyInput{Client: in.Client, Server: in.Server, User: user, Params: in.Params}); derr != nil {
			log.Warn("backchannel pre-check failed", logger.ErrorCode(string(derr.Code)))
			return nil, derr
		}
	}

	now := f.now().UTC()
	expiry := f.expiry(in.Params, in.Server)
	interval := int64(in.Server.CibaPollInterval / time.Second)
	if interval <= 0 {
		interval = 5
	}

	authDetails, _ := parseDetails(in.Params)
	tx := &types.BackchannelAuthenticationRequest{
		AuthReqID:               ulid.Make().String(),
		TenantID:                in.TenantID,
		ClientID:                in.Client.ClientID,
		Profile:                 oauth.ClassifyProfile(scopes, in.Server),
		Scopes:                  scopes,
		DeliveryMode:            mode,
		HintType:                hintType,
		Hint:                    hint,
		BindingMessage:          in.Params.Get(types.KeyBindingMessage),
		UserCode:                in.Params.Get(types.KeyUserCode),
		ClientNotificationToken: notificationToken,
		ACRValues:               in.Params.Get(types.KeyACRValues),
		RequestedExpiry:         int64(expiry / time.Second),
		AuthorizationDetails:    authDetails,
		Subject:                 user.ID,
		Status:                  types.CibaPending,
		Interval:                interval,
		CreatedAt:               now,
		ExpiresAt:               now.Add(expiry),
	}
	if err := f.transactions.Save(ctx, tx); err != nil {
		log.Error("transaction save failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "could not persist the transaction")
	}

	metrics.CibaTransition(string(types.CibaPending))
	log.Info("backchannel transaction created",
		logger.AuthReqID(tx.AuthReqID), logger.String("delivery_mode", string(mode)), logger.Profile(string(tx.Profile)))
	return &CreateResult{AuthReqID: tx.AuthReqID, ExpiresIn: int64(expiry / time.Second), Interval: interval}, nil
}

// Authorize pasa una transacción pending a authorized. La transición es
// condicional: cualquier estado distinto de pending la hace fallar, nunca
// tiene éxito en silencio después de un deny o una expiración.
func (f *Flow) Authorize(ctx context.Context, tenantID, authReqID, subject string) error {
	return f.transition(ctx, tenantID, authReqID, subject, types.CibaAuthorized, EventAuthorized)
}

// Deny pasa una transacción pending a denied.
func (f *Flow) Deny(ctx context.Context, tenantID, authReqID string) error {
	return f.transition(ctx, tenantID, authReqID, "", types.CibaDenied, EventDenied)
}

func (f *Flow) transition(ctx context.Context, tenantID, authReqID, subject string, to types.CibaStatus, event NotificationEvent) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("ciba.transition"),
		logger.TenantID(tenantID), logger.AuthReqID(authReqID))

	tx, err := f.transactions.FindByAuthReqID(ctx, tenantID, authReqID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.NewDirectError(types.ErrInvalidRequest, "unknown auth_req_id")
		}
		return types.NewDirectError(types.ErrServerError, "transaction lookup failed")
	}
	if tx.Expired(f.now().UTC()) {
		if err := f.transactions.UpdateStatus(ctx, tenantID, authReqID, types.CibaPending, types.CibaExpired); err == nil {
			metrics.CibaTransition(string(types.CibaExpired))
		}
		return types.NewDirectError(types.ErrExpiredToken, "the transaction expired")
	}

	if subject != "" {
		if err := f.transactions.SetSubject(ctx, tenantID, authReqID, subject); err != nil {
			log.Error("subject update failed", logger.Err(err))
			return types.NewDirectError(types.ErrServerError, "transaction update failed")
		}
	}
	if err := f.transactions.UpdateStatus(ctx, tenantID, authReqID, types.CibaPending, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Warn("transition rejected, transaction not pending", logger.String("to", string(to)))
			return types.NewDirectError(types.ErrInvalidRequest, "the transaction already reached a decision")
		}
		log.Error("transition failed", logger.Err(err))
		return types.NewDirectError(types.ErrServerError, "transaction update failed")
	}
	metrics.CibaTransition(string(to))
	log.Info("backchannel transaction transitioned", logger.String("to", string(to)))

	if tx.DeliveryMode != types.DeliveryPoll {
		client, err := f.clients.FindByID(ctx, tenantID, tx.ClientID)
		if err != nil {
			log.Warn("client lookup for notification failed", logger.Err(err))
			return nil
		}
		if err := f.notifier.Notify(ctx, client, tx, event); err != nil {
			log.Warn("client notification failed", logger.Err(err))
		}
	}
	return nil
}

// expiry acota el requested_expiry por el máximo configurado del servidor.
func (f *Flow) expiry(params types.Parameters, server *types.ServerConfiguration) time.Duration {
	expiry := server.CibaDefaultExpiry
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	if raw := params.Get(types.KeyRequestedExpiry); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			expiry = time.Duration(v) * time.Second
		}
	}
	if max := server.CibaMaxExpiry; max > 0 && expiry > max {
		expiry = max
	}
	return expiry
}

func pickHint(params types.Parameters) (types.UserHintType, string, *types.DirectError) {
	type candidate struct {
		key  types.RequestKey
		kind types.UserHintType
	}
	candidates := []candidate{
		{types.KeyLoginHint, types.HintLoginHint},
		{types.KeyLoginHintToken, types.HintLoginHintToken},
		{types.KeyIDTokenHint, types.HintIDTokenHint},
	}
	var found []candidate
	for _, c := range candidates {
		if params.Get(c.key) != "" {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return "", "", types.NewDirectError(types.ErrInvalidRequest, "one of login_hint, login_hint_token or id_token_hint is required")
	}
	if len(found) > 1 {
		return "", "", types.NewDirectError(types.ErrInvalidRequest, "only one user hint may be supplied")
	}
	return found[0].kind, params.Get(found[0].key), nil
}

func parseDetails(params types.Parameters) ([]types.AuthorizationDetail, error) {
	v, ok := params.JSONValue(types.KeyAuthorizationDetails)
	if !ok {
		return nil, nil
	}
	return types.ParseAuthorizationDetails(v)
}
