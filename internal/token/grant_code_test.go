package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	tokens "github.com/gatehouse-id/gatehouse/internal/security/token"
)

func seedCode(t *testing.T, e *engine, code string, mutate func(*types.AuthorizationRequest, *types.AuthorizationCodeGrant)) {
	t.Helper()
	now := time.Now().UTC()

	req := &types.AuthorizationRequest{
		ID:           "req-1",
		TenantID:     "t1",
		Profile:      types.ProfileOIDC,
		Pattern:      types.PatternNormal,
		Scopes:       []string{"openid", "profile"},
		ResponseType: types.ResponseTypeCode,
		ClientID:     e.client.ClientID,
		RedirectURI:  "https://rp.example.org/cb",
		Nonce:        "n-0S6_WzA2Mj",
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
	cg := &types.AuthorizationCodeGrant{
		Code:                   code,
		TenantID:               "t1",
		AuthorizationRequestID: req.ID,
		Grant:                  e.grant("openid", "profile"),
		Authentication:         types.AuthenticationContext{AuthTime: now, ACR: "urn:mace:incommon:iap:silver"},
		ExpiresAt:              now.Add(2 * time.Minute),
	}
	if mutate != nil {
		mutate(req, cg)
	}
	if err := e.store.Requests().Save(context.Background(), req); err != nil {
		t.Fatalf("save request: %v", err)
	}
	if err := e.store.Codes().Save(context.Background(), cg); err != nil {
		t.Fatalf("save code: %v", err)
	}
}

func TestAuthorizationCode_Redeem(t *testing.T) {
	e := newEngine(t)
	seedCode(t, e, "SplxlOBeZQQYbYS6WxSbIA", nil)

	h := NewAuthorizationCodeHandler(CodeGrantDeps{Codes: e.store.Codes(), Requests: e.store.Requests(), Issuer: e.issuer})
	resp, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":   "authorization_code",
		"client_id":    e.client.ClientID,
		"code":         "SplxlOBeZQQYbYS6WxSbIA",
		"redirect_uri": "https://rp.example.org/cb",
	}))
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("no access token issued: %+v", resp)
	}
	if resp.RefreshToken == "" {
		t.Fatal("client supports refresh_token, expected one")
	}
	if resp.IDToken == "" {
		t.Fatal("openid scope on an OIDC request, expected id_token")
	}

	// replay fails
	_, derr = h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":   "authorization_code",
		"client_id":    e.client.ClientID,
		"code":         "SplxlOBeZQQYbYS6WxSbIA",
		"redirect_uri": "https://rp.example.org/cb",
	}))
	if derr == nil || derr.Code != types.ErrInvalidGrant {
		t.Fatalf("replay should fail with invalid_grant, got %v", derr)
	}
}

func TestAuthorizationCode_RedirectEchoRequired(t *testing.T) {
	e := newEngine(t)
	seedCode(t, e, "code-echo", nil)

	h := NewAuthorizationCodeHandler(CodeGrantDeps{Codes: e.store.Codes(), Requests: e.store.Requests(), Issuer: e.issuer})
	_, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type": "authorization_code",
		"client_id":  e.client.ClientID,
		"code":       "code-echo",
	}))
	if derr == nil || derr.Code != types.ErrInvalidGrant {
		t.Fatalf("expected invalid_grant without redirect_uri echo, got %v", derr)
	}
}

func TestAuthorizationCode_PKCE(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := tokens.SHA256Base64URL(verifier)

	cases := []struct {
		name     string
		verifier string
		ok       bool
	}{
		{"matching verifier", verifier, true},
		{"wrong verifier", "wrong-verifier-wrong-verifier-wrong-wrong-wr", false},
		{"missing verifier", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := newEngine(t)
			seedCode(t, e, "code-pkce", func(req *types.AuthorizationRequest, _ *types.AuthorizationCodeGrant) {
				req.CodeChallenge = challenge
				req.CodeChallengeMethod = "S256"
			})

			form := map[string]string{
				"grant_type":   "authorization_code",
				"client_id":    e.client.ClientID,
				"code":         "code-pkce",
				"redirect_uri": "https://rp.example.org/cb",
			}
			if c.verifier != "" {
				form["code_verifier"] = c.verifier
			}

			h := NewAuthorizationCodeHandler(CodeGrantDeps{Codes: e.store.Codes(), Requests: e.store.Requests(), Issuer: e.issuer})
			_, derr := h.Handle(context.Background(), e.context(form))
			if c.ok && derr != nil {
				t.Fatalf("unexpected error: %v", derr)
			}
			if !c.ok && (derr == nil || derr.Code != types.ErrInvalidGrant) {
				t.Fatalf("expected invalid_grant, got %v", derr)
			}
		})
	}
}

func TestAuthorizationCode_ClientMismatch(t *testing.T) {
	e := newEngine(t)
	seedCode(t, e, "code-mismatch", func(_ *types.AuthorizationRequest, cg *types.AuthorizationCodeGrant) {
		cg.Grant.ClientID = "someone-else"
	})

	h := NewAuthorizationCodeHandler(CodeGrantDeps{Codes: e.store.Codes(), Requests: e.store.Requests(), Issuer: e.issuer})
	_, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":   "authorization_code",
		"client_id":    e.client.ClientID,
		"code":         "code-mismatch",
		"redirect_uri": "https://rp.example.org/cb",
	}))
	if derr == nil || derr.Code != types.ErrInvalidGrant {
		t.Fatalf("expected invalid_grant, got %v", derr)
	}
}

// N parallel redemptions of the same code: exactly one succeeds.
func TestAuthorizationCode_ConcurrentRedemption(t *testing.T) {
	e := newEngine(t)
	seedCode(t, e, "code-race", nil)
	h := NewAuthorizationCodeHandler(CodeGrantDeps{Codes: e.store.Codes(), Requests: e.store.Requests(), Issuer: e.issuer})

	const n = 16
	var wg sync.WaitGroup
	results := make([]*types.DirectError, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, derr := h.Handle(context.Background(), e.context(map[string]string{
				"grant_type":   "authorization_code",
				"client_id":    e.client.ClientID,
				"code":         "code-race",
				"redirect_uri": "https://rp.example.org/cb",
			}))
			results[i] = derr
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, derr := range results {
		if derr == nil {
			successes++
		} else if derr.Code != types.ErrInvalidGrant {
			t.Fatalf("unexpected error code %s", derr.Code)
		}
	}
	if successes != 1 {
		t.Fatalf("got %d successful redemptions, want exactly 1", successes)
	}
}
