package router

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-id/gatehouse/internal/ciba"
	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	cibactrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/ciba"
	oauthctrl "github.com/gatehouse-id/gatehouse/internal/http/controllers/oauth"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/oauth"
	"github.com/gatehouse-id/gatehouse/internal/security/password"
	"github.com/gatehouse-id/gatehouse/internal/store/memory"
	"github.com/gatehouse-id/gatehouse/internal/token"
)

// newTestServer wires the whole engine over the memory store, the way
// main does it, and exposes it through httptest.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keys := jose.NewKeystore()
	keys.AddKey("t1", &jose.SigningKey{KID: "k1", Alg: "ES256", Private: priv, Public: &priv.PublicKey})
	require.NoError(t, keys.SetActive("t1", "k1"))

	secretHash, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, "correct-horse")
	require.NoError(t, err)

	st := memory.New()
	st.PutTenant(&types.Tenant{ID: "t1", Slug: "acme", Active: true})
	st.PutServerConfiguration("t1", &types.ServerConfiguration{
		Issuer:                  "https://id.example.com/acme",
		ResponseTypesSupported:  []string{"code", "token", "id_token"},
		GrantTypesSupported:     []string{"authorization_code", "refresh_token", "urn:openid:params:grant-type:ciba"},
		AuthorizationRequestTTL: 10 * time.Minute,
		AuthorizationCodeTTL:    2 * time.Minute,
		AccessTokenTTL:          time.Hour,
		RefreshTokenTTL:         24 * time.Hour,
		IDTokenTTL:              time.Hour,
		CibaDefaultExpiry:       5 * time.Minute,
		CibaPollInterval:        5 * time.Second,
	})
	st.PutClient(&types.ClientConfiguration{
		ClientID:                     "s6BhdRkqt3",
		TenantID:                     "t1",
		Type:                         types.ClientTypeConfidential,
		SecretHash:                   secretHash,
		RedirectURIs:                 []string{"https://rp.example.org/cb"},
		ResponseTypes:                []string{"code"},
		GrantTypes:                   []string{"authorization_code", "refresh_token", "urn:openid:params:grant-type:ciba"},
		Scopes:                       []string{"openid", "read"},
		BackchannelTokenDeliveryMode: "poll",
	})
	st.PutUser(&types.User{ID: "u1", TenantID: "t1", Username: "joe"})

	issuer := token.NewTokenIssuer(token.IssuerDeps{
		Signer:  jose.NewSigner(keys),
		Tokens:  st.Tokens(),
		Users:   st.Users(),
		Clients: st,
		Configs: st,
	})
	authorize := oauth.NewAuthorizeService(oauth.AuthorizeDeps{
		Resolver: oauth.NewRequestPatternResolver(oauth.ResolverDeps{
			Verifier: jose.NewVerifier(keys),
			Clients:  st,
		}),
		Factory:  oauth.NewAuthorizationRequestFactory(),
		Chain:    oauth.NewAuthorizationValidationChain(),
		Configs:  st,
		Requests: st.Requests(),
		Codes:    st.Codes(),
		Issuer:   issuer,
	})
	builder := token.NewContextBuilder(token.ContextDeps{Clients: st, Configs: st})
	dispatcher := token.NewGrantDispatcher(
		token.NewAuthorizationCodeHandler(token.CodeGrantDeps{
			Codes:    st.Codes(),
			Requests: st.Requests(),
			Issuer:   issuer,
		}),
		token.NewRefreshTokenHandler(token.RefreshGrantDeps{Tokens: st.Tokens(), Issuer: issuer}),
		token.NewCibaHandler(token.CibaGrantDeps{Transactions: st.Transactions(), Issuer: issuer}),
	)
	flow := ciba.NewFlow(ciba.FlowDeps{
		Transactions: st.Transactions(),
		Clients:      st,
		Resolvers:    []ciba.HintResolver{ciba.NewLoginHintResolver(st.Users())},
		Verifiers:    []ciba.AdditionalVerifier{ciba.NewUserActiveVerifier()},
	})

	srv := httptest.NewServer(New(Deps{
		Tenants:     st,
		Authorize:   oauthctrl.NewAuthorizeController(authorize),
		Token:       oauthctrl.NewTokenController(builder, dispatcher),
		JWKS:        oauthctrl.NewJWKSController(keys),
		Backchannel: cibactrl.NewBackchannelController(builder, flow),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postForm(t *testing.T, srv *httptest.Server, path string, form url.Values, basicUser, basicPass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouter_AuthorizationCodeFlow(t *testing.T) {
	srv := newTestServer(t)

	// resolve the authorization request
	resp := postForm(t, srv, "/acme/authorizations", url.Values{
		"response_type": {"code"},
		"client_id":     {"s6BhdRkqt3"},
		"redirect_uri":  {"https://rp.example.org/cb"},
		"scope":         {"openid read"},
		"state":         {"af0ifjsldkj"},
		"nonce":         {"n-0S6_WzA2Mj"},
	}, "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var pending struct {
		ID      string `json:"id"`
		Profile string `json:"profile"`
		Pattern string `json:"pattern"`
	}
	decodeBody(t, resp, &pending)
	require.NotEmpty(t, pending.ID)
	assert.Equal(t, "oidc", pending.Profile)
	assert.Equal(t, "normal", pending.Pattern)

	// the front-end approves
	body := strings.NewReader(`{"subject":"u1","granted_scopes":["openid","read"],"authentication":{"acr":"urn:mace:incommon:iap:silver"}}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/acme/authorizations/"+pending.ID+"/approve", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	approveResp, err := client.Do(req)
	require.NoError(t, err)
	defer approveResp.Body.Close()
	require.Equal(t, http.StatusFound, approveResp.StatusCode)

	loc, err := url.Parse(approveResp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "rp.example.org", loc.Host)
	assert.Equal(t, "af0ifjsldkj", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// redeem the code
	tokenResp := postForm(t, srv, "/acme/tokens", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://rp.example.org/cb"},
	}, "s6BhdRkqt3", "correct-horse")
	require.Equal(t, http.StatusOK, tokenResp.StatusCode)
	assert.Equal(t, "no-store", tokenResp.Header.Get("Cache-Control"))

	var tok struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		Scope        string `json:"scope"`
	}
	decodeBody(t, tokenResp, &tok)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.NotEmpty(t, tok.IDToken)
	assert.Equal(t, "openid read", tok.Scope)

	// a replayed code is rejected
	replay := postForm(t, srv, "/acme/tokens", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://rp.example.org/cb"},
	}, "s6BhdRkqt3", "correct-horse")
	defer replay.Body.Close()
	assert.Equal(t, http.StatusBadRequest, replay.StatusCode)
}

func TestRouter_TokenEndpointBadSecret(t *testing.T) {
	srv := newTestServer(t)

	resp := postForm(t, srv, "/acme/tokens", url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"whatever"},
	}, "s6BhdRkqt3", "wrong")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "invalid_client", body.Error)
}

func TestRouter_UnknownTenant(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_JWKS(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/acme/jwks.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Keys []map[string]any `json:"keys"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Keys, 1)
	assert.Equal(t, "k1", body.Keys[0]["kid"])
	assert.Equal(t, "ES256", body.Keys[0]["alg"])
}

func TestRouter_BackchannelFlow(t *testing.T) {
	srv := newTestServer(t)

	createResp := postForm(t, srv, "/acme/backchannel-authentications", url.Values{
		"scope":      {"openid read"},
		"login_hint": {"joe"},
	}, "s6BhdRkqt3", "correct-horse")
	require.Equal(t, http.StatusOK, createResp.StatusCode)

	var created struct {
		AuthReqID string `json:"auth_req_id"`
		ExpiresIn int64  `json:"expires_in"`
		Interval  int64  `json:"interval"`
	}
	decodeBody(t, createResp, &created)
	require.NotEmpty(t, created.AuthReqID)
	assert.Equal(t, int64(5), created.Interval)

	// the poller sees authorization_pending first
	poll := postForm(t, srv, "/acme/tokens", url.Values{
		"grant_type":  {"urn:openid:params:grant-type:ciba"},
		"auth_req_id": {created.AuthReqID},
	}, "s6BhdRkqt3", "correct-horse")
	require.Equal(t, http.StatusBadRequest, poll.StatusCode)
	var pollBody struct {
		Error string `json:"error"`
	}
	decodeBody(t, poll, &pollBody)
	assert.Equal(t, "authorization_pending", pollBody.Error)

	// the authentication device authorizes
	authReq, err := http.NewRequest(http.MethodPost,
		srv.URL+"/acme/backchannel-authentications/"+created.AuthReqID+"/authorize",
		strings.NewReader(`{"subject":"u1"}`))
	require.NoError(t, err)
	authReq.Header.Set("Content-Type", "application/json")
	authResp, err := http.DefaultClient.Do(authReq)
	require.NoError(t, err)
	defer authResp.Body.Close()
	require.Equal(t, http.StatusNoContent, authResp.StatusCode)
}
