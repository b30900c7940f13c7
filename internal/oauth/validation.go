package oauth

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// ValidationContext lleva todo lo que una regla necesita: la vista resuelta
// cruda, el request armado y la configuración del tenant.
type ValidationContext struct {
	Resolved *ResolvedRequest
	Request  *types.AuthorizationRequest
	Server   *types.ServerConfiguration
}

// violation es el fallo de una regla antes de asignar canal. La cadena
// decide direct vs redirectable según dónde ocurrió el fallo respecto de la
// verificación del redirect_uri.
type violation struct {
	code        types.ErrorCode
	description string
}

func fail(code types.ErrorCode, description string) *violation {
	return &violation{code: code, description: description}
}

// rule es un chequeo ordenado. minProfile restringe reglas por tier.
type rule struct {
	name       string
	minProfile types.AuthorizationProfile
	check      func(*ValidationContext) *violation
}

// AuthorizationValidationChain evalúa el set ordenado de reglas. El
// redirect_uri se verifica primero y sus fallos son siempre 400 directos;
// toda regla posterior reporta por el canal de redirect. La tabla de reglas
// queda fija en la construcción.
type AuthorizationValidationChain struct {
	rules []rule
}

func NewAuthorizationValidationChain() *AuthorizationValidationChain {
	return &AuthorizationValidationChain{
		rules: []rule{
			{name: "response_type.known", minProfile: types.ProfileOAuth2, check: checkResponseTypeKnown},
			{name: "response_type.supported", minProfile: types.ProfileOAuth2, check: checkResponseTypeSupported},
			{name: "scope.nonempty", minProfile: types.ProfileOAuth2, check: checkScopesNonEmpty},
			{name: "redirect.implicit_http", minProfile: types.ProfileOIDC, check: checkImplicitHTTPScheme},
			{name: "nonce.required", minProfile: types.ProfileOIDC, check: checkNonce},
			{name: "display.valid", minProfile: types.ProfileOIDC, check: checkDisplay},
			{name: "prompt.valid", minProfile: types.ProfileOIDC, check: checkPrompts},
			{name: "max_age.valid", minProfile: types.ProfileOIDC, check: checkMaxAge},
			{name: "pkce.s256", minProfile: types.ProfileFAPIBaseline, check: checkFAPIBaselinePKCE},
			{name: "fapi.request_object", minProfile: types.ProfileFAPIAdvance, check: checkFAPIAdvanceRequestObject},
			{name: "fapi.response_type", minProfile: types.ProfileFAPIAdvance, check: checkFAPIAdvanceResponseType},
		},
	}
}

// Validate corre la cadena. Devuelve nil en éxito, *types.DirectError para
// fallos antes de confiar en el redirect target, y *types.RedirectableError
// después.
func (c *AuthorizationValidationChain) Validate(ctx context.Context, v *ValidationContext) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.validate"),
		logger.ClientID(v.Request.ClientID), logger.Pattern(string(v.Request.Pattern)), logger.Profile(string(v.Request.Profile)))

	if derr := verifyRedirectTarget(v); derr != nil {
		log.Warn("redirect target rejected", logger.ErrorCode(string(derr.Code)), logger.String("detail", derr.Description))
		return derr
	}

	for _, r := range c.rules {
		if v.Request.Profile.Rank() < r.minProfile.Rank() {
			continue
		}
		if viol := r.check(v); viol != nil {
			log.Warn("authorization request rejected",
				logger.String("rule", r.name), logger.ErrorCode(string(viol.code)), logger.String("detail", viol.description))
			return &types.RedirectableError{
				Code:         viol.code,
				Description:  viol.description,
				RedirectURI:  v.Request.RedirectURI,
				State:        v.Request.State,
				ResponseMode: v.Request.ResponseMode,
			}
		}
	}
	return nil
}

// verifyRedirectTarget establece la confianza en el redirect_uri antes de
// que cualquier error pueda plegarse en él. Sus fallos son siempre directos.
func verifyRedirectTarget(v *ValidationContext) *types.DirectError {
	client := v.Resolved.Client
	uri := v.Request.RedirectURI

	if uri == "" {
		if v.Request.Profile.IsOIDC() {
			return types.NewDirectError(types.ErrInvalidRequest, "redirect_uri is required")
		}
		single, ok := client.SingleRedirectURI()
		if !ok {
			return types.NewDirectError(types.ErrInvalidRequest, "redirect_uri is required when multiple redirect URIs are registered")
		}
		v.Request.RedirectURI = single
		return nil
	}

	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() {
		return types.NewDirectError(types.ErrInvalidRequest, "redirect_uri must be an absolute URI")
	}
	if parsed.Fragment != "" || strings.Contains(uri, "#") {
		return types.NewDirectError(types.ErrInvalidRequest, "redirect_uri must not contain a fragment")
	}
	if !client.IsRegisteredRedirectURI(uri) {
		return types.NewDirectError(types.ErrInvalidRequest, "redirect_uri is not registered")
	}
	return nil
}

func checkResponseTypeKnown(v *ValidationContext) *violation {
	t := v.Request.ResponseType
	if t.IsUndefined() {
		return fail(types.ErrInvalidRequest, "response_type is required")
	}
	if t.IsUnknown() {
		return fail(types.ErrInvalidRequest, "response_type is not a known combination")
	}
	return nil
}

func checkResponseTypeSupported(v *ValidationContext) *violation {
	t := v.Request.ResponseType
	if !v.Server.SupportsResponseType(t) {
		return fail(types.ErrUnsupportedResponseType, "response_type is not supported by this server")
	}
	if !v.Resolved.Client.SupportsResponseType(t) {
		return fail(types.ErrUnauthorizedClient, "client is not authorized for this response_type")
	}
	return nil
}

func checkScopesNonEmpty(v *ValidationContext) *violation {
	if len(v.Request.Scopes) == 0 {
		return fail(types.ErrInvalidScope, "no valid scope was requested")
	}
	return nil
}

// Los tokens implícitos sobre http plano se rechazan para clientes de navegador.
func checkImplicitHTTPScheme(v *ValidationContext) *violation {
	if !v.Request.ResponseType.IsImplicitFlow() {
		return nil
	}
	if !v.Resolved.Client.IsWebApplication() {
		return nil
	}
	parsed, err := url.Parse(v.Request.RedirectURI)
	if err == nil && parsed.Scheme == "http" {
		return fail(types.ErrInvalidRequest, "http redirect_uri is not allowed for the implicit flow")
	}
	return nil
}

func checkNonce(v *ValidationContext) *violation {
	t := v.Request.ResponseType
	if (t.IsImplicitFlow() || t.IsHybridFlow()) && v.Request.Nonce == "" {
		return fail(types.ErrInvalidRequest, "nonce is required for implicit and hybrid flows")
	}
	return nil
}

func checkDisplay(v *ValidationContext) *violation {
	if d := v.Request.Display; d != "" && !d.IsValid() {
		return fail(types.ErrInvalidRequest, "display value is not supported")
	}
	return nil
}

func checkPrompts(v *ValidationContext) *violation {
	p := v.Request.Prompts
	if !p.AllValid() {
		return fail(types.ErrInvalidRequest, "prompt contains an unsupported value")
	}
	if p.HasNone() && len(p) > 1 {
		return fail(types.ErrInvalidRequest, "prompt none cannot be combined with other values")
	}
	return nil
}

func checkMaxAge(v *ValidationContext) *violation {
	raw := v.Resolved.Get(types.KeyMaxAge)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fail(types.ErrInvalidRequest, "max_age must be a non-negative integer")
	}
	return nil
}

// FAPI baseline exige PKCE con S256 para clientes públicos.
func checkFAPIBaselinePKCE(v *ValidationContext) *violation {
	if v.Resolved.Client.Type != types.ClientTypePublic {
		return nil
	}
	if v.Request.CodeChallenge == "" {
		return fail(types.ErrInvalidRequest, "code_challenge is required for this profile")
	}
	if v.Request.CodeChallengeMethod != "S256" {
		return fail(types.ErrInvalidRequest, "code_challenge_method must be S256 for this profile")
	}
	return nil
}

// FAPI advance exige un request object firmado.
func checkFAPIAdvanceRequestObject(v *ValidationContext) *violation {
	if !v.Request.Pattern.UsesRequestObject() {
		return fail(types.ErrInvalidRequest, "a signed request object is required for this profile")
	}
	return nil
}

// FAPI advance restringe los response types al set que lleva code.
func checkFAPIAdvanceResponseType(v *ValidationContext) *violation {
	switch v.Request.ResponseType {
	case types.ResponseTypeCode, types.ResponseTypeCodeIDToken:
		return nil
	default:
		return fail(types.ErrUnsupportedResponseType, "response_type is not allowed for this profile")
	}
}
