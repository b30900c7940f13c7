package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/url"
	"testing"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/jose"
	"github.com/gatehouse-id/gatehouse/internal/security/password"
	"github.com/gatehouse-id/gatehouse/internal/store/memory"
)

// engine junta las piezas del token endpoint sobre el store en memoria.
type engine struct {
	store  *memory.Store
	keys   *jose.Keystore
	issuer *TokenIssuer
	server *types.ServerConfiguration
	client *types.ClientConfiguration
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keys := jose.NewKeystore()
	keys.AddKey("t1", &jose.SigningKey{KID: "k1", Alg: "ES256", Private: priv, Public: &priv.PublicKey})
	if err := keys.SetActive("t1", "k1"); err != nil {
		t.Fatalf("set active key: %v", err)
	}

	server := &types.ServerConfiguration{
		Issuer:                 "https://id.example.com/acme",
		ResponseTypesSupported: []string{"code", "token", "id_token", "code id_token"},
		GrantTypesSupported: []string{
			"authorization_code", "refresh_token", "client_credentials",
			"password", "urn:openid:params:grant-type:ciba",
		},
		AuthorizationRequestTTL: 10 * time.Minute,
		AuthorizationCodeTTL:    2 * time.Minute,
		AccessTokenTTL:          time.Hour,
		RefreshTokenTTL:         30 * 24 * time.Hour,
		IDTokenTTL:              time.Hour,
		CibaDefaultExpiry:       5 * time.Minute,
		CibaPollInterval:        5 * time.Second,
	}
	client := &types.ClientConfiguration{
		ClientID:      "s6BhdRkqt3",
		TenantID:      "t1",
		Type:          types.ClientTypeConfidential,
		SecretHash:    hashSecret(t, "correct-horse"),
		RedirectURIs:  []string{"https://rp.example.org/cb"},
		ResponseTypes: []string{"code", "token", "id_token", "code id_token"},
		GrantTypes: []string{
			"authorization_code", "refresh_token", "client_credentials",
			"password", "urn:openid:params:grant-type:ciba",
		},
		Scopes: []string{"openid", "profile", "read", "write"},
	}

	st := memory.New()
	st.PutTenant(&types.Tenant{ID: "t1", Slug: "acme", Active: true})
	st.PutServerConfiguration("t1", server)
	st.PutClient(client)
	st.PutUser(&types.User{
		ID:            "u1",
		TenantID:      "t1",
		Username:      "joe",
		Email:         "joe@example.org",
		EmailVerified: true,
		Name:          "Joe Example",
		PasswordHash:  hashSecret(t, "hunter2!"),
	})

	issuer := NewTokenIssuer(IssuerDeps{
		Signer:  jose.NewSigner(keys),
		Tokens:  st.Tokens(),
		Users:   st.Users(),
		Clients: st,
		Configs: st,
	})
	return &engine{store: st, keys: keys, issuer: issuer, server: server, client: client}
}

func (e *engine) context(kv map[string]string) *TokenRequestContext {
	v := url.Values{}
	for k, val := range kv {
		v.Set(k, val)
	}
	return &TokenRequestContext{
		TenantID: "t1",
		Params:   types.ParamsFromValues(v),
		Client:   e.client,
		Server:   e.server,
	}
}

// hashSecret usa parámetros argon2 bajos para que los tests sean rápidos.
func hashSecret(t *testing.T, plain string) string {
	t.Helper()
	h, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, plain)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	return h
}

func (e *engine) grant(scopes ...string) types.AuthorizationGrant {
	return types.AuthorizationGrant{
		Subject:  "u1",
		ClientID: e.client.ClientID,
		Scopes:   scopes,
	}
}
