// Package repository define los contratos de persistencia del engine.
// Las implementaciones viven en internal/store.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

var (
	// ErrNotFound indica que la entidad no existe.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict indica una violación de unicidad o una transición de
	// estado que otro proceso ganó primero.
	ErrConflict = errors.New("repository: conflict")

	// ErrConsumed indica que un artefacto de un solo uso ya fue redimido.
	ErrConsumed = errors.New("repository: already consumed")
)

// TenantRepository resuelve tenants por slug.
type TenantRepository interface {
	FindBySlug(ctx context.Context, slug string) (*types.Tenant, error)
}

// ServerConfigurationRepository entrega la configuración por tenant.
type ServerConfigurationRepository interface {
	FindByTenant(ctx context.Context, tenantID string) (*types.ServerConfiguration, error)
}

// ClientRepository resuelve clientes registrados.
type ClientRepository interface {
	FindByID(ctx context.Context, tenantID, clientID string) (*types.ClientConfiguration, error)
}

// UserRepository resuelve usuarios para los hints CIBA y el password grant.
type UserRepository interface {
	FindByID(ctx context.Context, tenantID, userID string) (*types.User, error)
	FindByUsername(ctx context.Context, tenantID, username string) (*types.User, error)
}

// AuthorizationRequestRepository persiste authorization requests resueltos.
// Consume retorna el request y lo elimina de forma atómica: de N llamadas
// concurrentes con el mismo id, exactamente una recibe el request y el
// resto ErrConsumed.
type AuthorizationRequestRepository interface {
	Save(ctx context.Context, req *types.AuthorizationRequest) error
	FindByID(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error)
	Consume(ctx context.Context, tenantID, id string) (*types.AuthorizationRequest, error)
}

// CodeGrantRepository persiste authorization codes. Consume es de un solo
// uso con la misma garantía atómica que AuthorizationRequestRepository.
type CodeGrantRepository interface {
	Save(ctx context.Context, grant *types.AuthorizationCodeGrant) error
	Consume(ctx context.Context, tenantID, code string) (*types.AuthorizationCodeGrant, error)
}

// TokenRepository persiste tokens emitidos. ConsumeRefreshToken rota el
// refresh token: exactamente un redentor concurrente obtiene el token.
type TokenRepository interface {
	Save(ctx context.Context, token *types.OAuthToken) error
	FindByAccessToken(ctx context.Context, tenantID, accessToken string) (*types.OAuthToken, error)
	ConsumeRefreshToken(ctx context.Context, tenantID, refreshToken string) (*types.OAuthToken, error)
	DeleteByID(ctx context.Context, tenantID, id string) error
}

// BackchannelAuthRepository persiste backchannel authentication requests.
//
// Las transiciones de estado son condicionales: UpdateStatus solo aplica el
// cambio si el estado actual coincide con from, y retorna ErrConflict si
// otro proceso transicionó primero. ConsumeAuthorized pasa de authorized a
// issued de forma atómica, garantizando una sola emisión de tokens por
// auth_req_id.
type BackchannelAuthRepository interface {
	Save(ctx context.Context, req *types.BackchannelAuthenticationRequest) error
	FindByAuthReqID(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error)
	UpdateStatus(ctx context.Context, tenantID, authReqID string, from, to types.CibaStatus) error
	SetSubject(ctx context.Context, tenantID, authReqID, subject string) error
	TouchPolled(ctx context.Context, tenantID, authReqID string, at time.Time) error
	ConsumeAuthorized(ctx context.Context, tenantID, authReqID string) (*types.BackchannelAuthenticationRequest, error)
}
