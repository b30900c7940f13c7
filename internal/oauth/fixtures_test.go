package oauth

import (
	"net/url"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func testServer() *types.ServerConfiguration {
	return &types.ServerConfiguration{
		Issuer:                 "https://id.example.com/acme",
		ScopesSupported:        []string{"openid", "profile", "email", "read", "write", "payments", "accounts"},
		ResponseTypesSupported: []string{"code", "token", "id_token", "code id_token", "id_token token", "code token", "code id_token token"},
		GrantTypesSupported: []string{
			"authorization_code", "refresh_token", "client_credentials",
			"password", "urn:openid:params:grant-type:ciba",
		},
		FAPIBaselineScopes:      []string{"accounts"},
		FAPIAdvanceScopes:       []string{"payments"},
		AuthorizationRequestTTL: 10 * time.Minute,
		AuthorizationCodeTTL:    2 * time.Minute,
		AccessTokenTTL:          time.Hour,
		RefreshTokenTTL:         30 * 24 * time.Hour,
		IDTokenTTL:              time.Hour,
	}
}

func testClient() *types.ClientConfiguration {
	return &types.ClientConfiguration{
		ClientID:        "s6BhdRkqt3",
		TenantID:        "t1",
		Name:            "Test RP",
		Type:            types.ClientTypeConfidential,
		ApplicationType: types.ApplicationTypeWeb,
		RedirectURIs:    []string{"https://rp.example.org/cb"},
		ResponseTypes:   []string{"code", "token", "id_token", "code id_token", "id_token token"},
		GrantTypes:      []string{"authorization_code", "refresh_token"},
		Scopes:          []string{"openid", "profile", "read", "payments", "accounts"},
	}
}

func params(kv map[string]string) types.Parameters {
	v := url.Values{}
	for k, val := range kv {
		v.Set(k, val)
	}
	return types.ParamsFromValues(v)
}

func resolved(client *types.ClientConfiguration, p types.Parameters) *ResolvedRequest {
	return &ResolvedRequest{
		Pattern: types.PatternNormal,
		Client:  client,
		Params:  p,
	}
}
