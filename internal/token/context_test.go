package token

import (
	"context"
	"net/url"
	"testing"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func buildCtx(t *testing.T, e *engine, form map[string]string, creds ClientCredentials) (*TokenRequestContext, *types.DirectError) {
	t.Helper()
	v := url.Values{}
	for k, val := range form {
		v.Set(k, val)
	}
	b := NewContextBuilder(ContextDeps{Clients: e.store, Configs: e.store})
	return b.Build(context.Background(), "t1", types.ParamsFromValues(v), creds)
}

func TestContextBuilder_BasicAuth(t *testing.T) {
	e := newEngine(t)

	tc, derr := buildCtx(t, e, nil, ClientCredentials{
		ClientID:     e.client.ClientID,
		ClientSecret: "correct-horse",
		Basic:        true,
	})
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if tc.Client.ClientID != e.client.ClientID || !tc.BasicAuth {
		t.Fatalf("context = %+v", tc)
	}
}

func TestContextBuilder_BasicWinsOverBody(t *testing.T) {
	e := newEngine(t)

	// body names an unknown client, the Basic header decides
	tc, derr := buildCtx(t, e, map[string]string{
		"client_id":     "someone-else",
		"client_secret": "irrelevant",
	}, ClientCredentials{
		ClientID:     e.client.ClientID,
		ClientSecret: "correct-horse",
		Basic:        true,
	})
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if tc.Client.ClientID != e.client.ClientID {
		t.Fatalf("client = %q, want %q", tc.Client.ClientID, e.client.ClientID)
	}
}

func TestContextBuilder_PostBodyAuth(t *testing.T) {
	e := newEngine(t)

	tc, derr := buildCtx(t, e, map[string]string{
		"client_id":     e.client.ClientID,
		"client_secret": "correct-horse",
	}, ClientCredentials{})
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if tc.BasicAuth {
		t.Fatal("BasicAuth must be false for POST body credentials")
	}
}

func TestContextBuilder_Failures(t *testing.T) {
	e := newEngine(t)

	cases := []struct {
		name string
		form map[string]string
	}{
		{"no credentials", nil},
		{"unknown client", map[string]string{"client_id": "nobody", "client_secret": "x"}},
		{"wrong secret", map[string]string{"client_id": e.client.ClientID, "client_secret": "wrong"}},
		{"missing secret", map[string]string{"client_id": e.client.ClientID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, derr := buildCtx(t, e, tc.form, ClientCredentials{})
			if derr == nil || derr.Code != types.ErrInvalidClient {
				t.Fatalf("expected invalid_client, got %v", derr)
			}
		})
	}
}

func TestContextBuilder_PublicClientSkipsSecret(t *testing.T) {
	e := newEngine(t)
	e.store.PutClient(&types.ClientConfiguration{
		ClientID: "spa-client",
		TenantID: "t1",
		Type:     types.ClientTypePublic,
	})

	tc, derr := buildCtx(t, e, map[string]string{"client_id": "spa-client"}, ClientCredentials{})
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if tc.Client.Type != types.ClientTypePublic {
		t.Fatalf("type = %v", tc.Client.Type)
	}
}
