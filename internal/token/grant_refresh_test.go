package token

import (
	"context"
	"testing"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func issueWithRefresh(t *testing.T, e *engine, scopes ...string) *types.OAuthToken {
	t.Helper()
	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID:    "t1",
		Client:      e.client,
		Server:      e.server,
		Grant:       e.grant(scopes...),
		WithRefresh: true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func TestRefreshToken_MissingParameterIsDirect(t *testing.T) {
	e := newEngine(t)
	h := NewRefreshTokenHandler(RefreshGrantDeps{Tokens: e.store.Tokens(), Issuer: e.issuer})

	_, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type": "refresh_token",
		"client_id":  e.client.ClientID,
	}))
	if derr == nil || derr.Code != types.ErrInvalidRequest {
		t.Fatalf("expected direct invalid_request, got %v", derr)
	}
}

func TestRefreshToken_Rotation(t *testing.T) {
	e := newEngine(t)
	first := issueWithRefresh(t, e, "openid", "read")
	h := NewRefreshTokenHandler(RefreshGrantDeps{Tokens: e.store.Tokens(), Issuer: e.issuer})

	resp, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     e.client.ClientID,
		"refresh_token": first.RefreshToken,
	}))
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if resp.RefreshToken == "" || resp.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if resp.IDToken == "" {
		t.Fatal("openid grant with subject, expected id_token")
	}

	// the consumed token is gone
	_, derr = h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     e.client.ClientID,
		"refresh_token": first.RefreshToken,
	}))
	if derr == nil || derr.Code != types.ErrInvalidGrant {
		t.Fatalf("replaying a rotated refresh token should fail, got %v", derr)
	}
}

func TestRefreshToken_ScopeNarrowingOnly(t *testing.T) {
	e := newEngine(t)
	first := issueWithRefresh(t, e, "openid", "read")
	h := NewRefreshTokenHandler(RefreshGrantDeps{Tokens: e.store.Tokens(), Issuer: e.issuer})

	// narrowing is fine
	resp, derr := h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     e.client.ClientID,
		"refresh_token": first.RefreshToken,
		"scope":         "read",
	}))
	if derr != nil {
		t.Fatalf("unexpected error: %v", derr)
	}
	if resp.Scope != "read" {
		t.Fatalf("scope = %q, want read", resp.Scope)
	}

	// widening is not
	_, derr = h.Handle(context.Background(), e.context(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     e.client.ClientID,
		"refresh_token": resp.RefreshToken,
		"scope":         "read write",
	}))
	if derr == nil || derr.Code != types.ErrInvalidScope {
		t.Fatalf("expected invalid_scope, got %v", derr)
	}
}

func TestRefreshToken_ClientMismatch(t *testing.T) {
	e := newEngine(t)
	first := issueWithRefresh(t, e, "read")
	h := NewRefreshTokenHandler(RefreshGrantDeps{Tokens: e.store.Tokens(), Issuer: e.issuer})

	other := *e.client
	other.ClientID = "other-client"
	tc := e.context(map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "other-client",
		"refresh_token": first.RefreshToken,
	})
	tc.Client = &other

	_, derr := h.Handle(context.Background(), tc)
	if derr == nil || derr.Code != types.ErrInvalidGrant {
		t.Fatalf("expected invalid_grant, got %v", derr)
	}
}
