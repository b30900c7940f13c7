// Package token implementa la mitad token-endpoint del engine:
// autenticación de clientes, despacho de grants, validación y manejo por
// grant, y emisión de tokens.
package token

import (
	"context"
	"errors"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/security/password"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

// ClientCredentials es el material crudo de autenticación del cliente
// extraído por la capa de transporte: el header Basic cuando está presente,
// si no los campos del body POST.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	Basic        bool
}

// TokenRequestContext envuelve una llamada al token endpoint: parámetros
// crudos, el cliente autenticado y la configuración del tenant. Sin estado,
// se reconstruye por llamada.
type TokenRequestContext struct {
	TenantID  string
	Params    types.Parameters
	Client    *types.ClientConfiguration
	Server    *types.ServerConfiguration
	BasicAuth bool
}

// ContextDeps contiene las dependencias del builder de contexto.
type ContextDeps struct {
	Clients repository.ClientRepository
	Configs repository.ServerConfigurationRepository
}

// ContextBuilder autentica al cliente y arma el contexto por request.
// Todos los fallos son errores directos.
type ContextBuilder struct {
	clients repository.ClientRepository
	configs repository.ServerConfigurationRepository
}

func NewContextBuilder(d ContextDeps) *ContextBuilder {
	return &ContextBuilder{clients: d.Clients, configs: d.Configs}
}

// Build resuelve la autenticación del cliente (Basic gana sobre los campos
// POST) y carga la configuración.
func (b *ContextBuilder) Build(ctx context.Context, tenantID string, params types.Parameters, creds ClientCredentials) (*TokenRequestContext, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.context"), logger.TenantID(tenantID))

	clientID := creds.ClientID
	secret := creds.ClientSecret
	if !creds.Basic {
		clientID = params.Get(types.KeyClientID)
		secret = params.Get(types.KeyClientSecret)
	}
	if clientID == "" {
		return nil, types.NewDirectError(types.ErrInvalidClient, "client authentication required")
	}

	client, err := b.clients.FindByID(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("unknown client", logger.ClientID(clientID))
			return nil, types.NewDirectError(types.ErrInvalidClient, "client authentication failed")
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "client configuration unavailable")
	}

	if client.Type == types.ClientTypeConfidential {
		if !verifyClientSecret(client, secret) {
			log.Warn("client secret mismatch", logger.ClientID(clientID))
			return nil, types.NewDirectError(types.ErrInvalidClient, "client authentication failed")
		}
	}

	server, err := b.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		log.Error("server configuration lookup failed", logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "server configuration unavailable")
	}

	return &TokenRequestContext{
		TenantID:  tenantID,
		Params:    params,
		Client:    client,
		Server:    server,
		BasicAuth: creds.Basic,
	}, nil
}

func verifyClientSecret(client *types.ClientConfiguration, secret string) bool {
	if secret == "" {
		return false
	}
	if client.SecretHash != "" {
		return password.Verify(secret, client.SecretHash)
	}
	if client.Secret != "" {
		return tokens.ConstantTimeEquals(client.Secret, secret)
	}
	return false
}
