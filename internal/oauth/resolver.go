package oauth

import (
	"context"
	"errors"

	"github.com/gatehouse-id/gatehouse/internal/domain/repository"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
	"github.com/gatehouse-id/gatehouse/internal/validation"
)

// ResolvedRequest es la vista armada de un authorization request tras
// discriminar el pattern. Object guarda los claims verificados del request
// object para los patterns RequestObject/RequestUri; es nil para Normal.
type ResolvedRequest struct {
	Pattern types.RequestPattern
	Client  *types.ClientConfiguration
	Params  types.Parameters
	Object  *types.RequestObjectParameters
}

// Get resuelve un parámetro con precedencia del request object: el claim
// verificado gana cuando el object y la query traen ambos el valor.
func (r *ResolvedRequest) Get(k types.RequestKey) string {
	if r.Object != nil && r.Object.Has(k) {
		return r.Object.Get(k)
	}
	return r.Params.Get(k)
}

// Has reporta presencia en cualquiera de las dos fuentes.
func (r *ResolvedRequest) Has(k types.RequestKey) bool {
	if r.Object != nil && r.Object.Has(k) {
		return true
	}
	return r.Params.Has(k)
}

// JSONValue resuelve un parámetro estructurado con la misma precedencia que Get.
func (r *ResolvedRequest) JSONValue(k types.RequestKey) (any, bool) {
	if r.Object != nil {
		if v, ok := r.Object.JSONValue(k); ok {
			return v, true
		}
	}
	return r.Params.JSONValue(k)
}

// Scopes devuelve el set de scopes filtrado. Cuando el pattern es
// RequestUri, o RequestObject con un cliente que exige request objects
// firmados, los scopes salen exclusivamente de los claims verificados para
// que parámetros de query sin firmar no puedan colar scopes extra.
func (r *ResolvedRequest) Scopes() []string {
	if r.signedScopeSource() {
		if r.Object == nil {
			return nil
		}
		return validation.SplitScopes(r.Object.Get(types.KeyScope))
	}
	return validation.SplitScopes(r.Get(types.KeyScope))
}

func (r *ResolvedRequest) signedScopeSource() bool {
	if r.Pattern == types.PatternRequestURI {
		return true
	}
	return r.Pattern == types.PatternRequestObject && r.Client.RequireSignedRequestObject
}

// ResolverDeps contiene las dependencias del resolver de patterns.
type ResolverDeps struct {
	Verifier *jose.Verifier
	Gateway  RequestObjectGateway
	Clients  repository.ClientRepository
}

// RequestPatternResolver discrimina un authorization request entrante en
// Normal / RequestObject / RequestUri y ejecuta el paso JOSE para los
// últimos dos. Los fallos aquí son siempre errores directos: el redirect_uri
// no es confiable antes de armar el request.
type RequestPatternResolver struct {
	verifier *jose.Verifier
	gateway  RequestObjectGateway
	clients  repository.ClientRepository
}

func NewRequestPatternResolver(d ResolverDeps) *RequestPatternResolver {
	return &RequestPatternResolver{verifier: d.Verifier, gateway: d.Gateway, clients: d.Clients}
}

// DetectPattern elige el pattern de entrega según la presencia de parámetros.
func DetectPattern(p types.Parameters) types.RequestPattern {
	switch {
	case p.Has(types.KeyRequest):
		return types.PatternRequestObject
	case p.Has(types.KeyRequestURI):
		return types.PatternRequestURI
	default:
		return types.PatternNormal
	}
}

// Resolve clasifica y arma el request. Todos los errores son
// *types.DirectError.
func (r *RequestPatternResolver) Resolve(ctx context.Context, tenantID string, params types.Parameters) (*ResolvedRequest, *types.DirectError) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.resolve"))

	if params.Has(types.KeyRequest) && params.Has(types.KeyRequestURI) {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "request and request_uri are mutually exclusive")
	}

	clientID := params.Get(types.KeyClientID)
	if clientID == "" {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "client_id is required")
	}
	client, err := r.clients.FindByID(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("unknown client", logger.ClientID(clientID))
			return nil, types.NewDirectError(types.ErrInvalidRequest, "unknown client")
		}
		log.Error("client lookup failed", logger.ClientID(clientID), logger.Err(err))
		return nil, types.NewDirectError(types.ErrServerError, "client configuration unavailable")
	}

	pattern := DetectPattern(params)
	resolved := &ResolvedRequest{Pattern: pattern, Client: client, Params: params}

	switch pattern {
	case types.PatternNormal:
		if client.RequireSignedRequestObject {
			return nil, types.NewDirectError(types.ErrInvalidRequest, "client requires a signed request object")
		}
		return resolved, nil

	case types.PatternRequestObject:
		if !clientCanUseRequestObjects(client) {
			return nil, types.NewDirectError(types.ErrInvalidRequest, "client cannot use request objects")
		}
		obj, derr := r.verify(ctx, tenantID, client, params.Get(types.KeyRequest))
		if derr != nil {
			return nil, derr
		}
		resolved.Object = obj
		return resolved, nil

	case types.PatternRequestURI:
		uri := params.Get(types.KeyRequestURI)
		if !client.IsRegisteredRequestURI(uri) {
			log.Warn("unregistered request_uri", logger.ClientID(clientID), logger.String("request_uri", uri))
			return nil, types.NewDirectError(types.ErrInvalidRequest, "request_uri is not registered")
		}
		raw, err := r.gateway.Fetch(ctx, uri)
		if err != nil {
			log.Warn("request object fetch failed", logger.Err(err))
			return nil, types.NewDirectError(types.ErrInvalidRequest, "request object could not be retrieved")
		}
		obj, derr := r.verify(ctx, tenantID, client, raw)
		if derr != nil {
			return nil, derr
		}
		resolved.Object = obj
		return resolved, nil
	}
	return nil, types.NewDirectError(types.ErrServerError, "unknown request pattern")
}

func (r *RequestPatternResolver) verify(ctx context.Context, tenantID string, client *types.ClientConfiguration, raw string) (*types.RequestObjectParameters, *types.DirectError) {
	if raw == "" {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "request object is empty")
	}
	obj, err := r.verifier.VerifyRequestObject(tenantID, client, raw)
	if err != nil {
		logger.From(ctx).Warn("request object verification failed",
			logger.Layer("service"), logger.Op("oauth.resolve"), logger.ClientID(client.ClientID), logger.Err(err))
		return nil, types.NewDirectError(types.ErrInvalidRequest, "request object verification failed")
	}
	// El object debe estar emitido para el mismo cliente que la query.
	if cid := obj.Get(types.KeyClientID); cid != "" && cid != client.ClientID {
		return nil, types.NewDirectError(types.ErrInvalidRequest, "request object client_id mismatch")
	}
	return &obj, nil
}

func clientCanUseRequestObjects(c *types.ClientConfiguration) bool {
	return len(c.JWKS) > 0 || c.Secret != "" || c.RequestObjectSigningAlg != ""
}
