package token

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/jose"
)

func idTokenClaims(t *testing.T, idToken string) jwt.MapClaims {
	t.Helper()
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parse id_token: %v", err)
	}
	return tok.Claims.(jwt.MapClaims)
}

func TestIssue_IDTokenHashes(t *testing.T) {
	e := newEngine(t)

	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID:    "t1",
		Client:      e.client,
		Server:      e.server,
		Grant:       e.grant("openid"),
		Nonce:       "n-0S6_WzA2Mj",
		Code:        "SplxlOBeZQQYbYS6WxSbIA",
		State:       "af0ifjsldkj",
		WithIDToken: true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims := idTokenClaims(t, tok.IDToken)

	if claims["iss"] != e.server.Issuer {
		t.Fatalf("iss = %v", claims["iss"])
	}
	if claims["sub"] != "u1" || claims["aud"] != e.client.ClientID {
		t.Fatalf("sub/aud = %v/%v", claims["sub"], claims["aud"])
	}
	if claims["nonce"] != "n-0S6_WzA2Mj" {
		t.Fatalf("nonce = %v", claims["nonce"])
	}

	atHash, _ := jose.LeftHalfHash("ES256", tok.AccessToken)
	if claims["at_hash"] != atHash {
		t.Fatalf("at_hash = %v, want %v", claims["at_hash"], atHash)
	}
	cHash, _ := jose.LeftHalfHash("ES256", "SplxlOBeZQQYbYS6WxSbIA")
	if claims["c_hash"] != cHash {
		t.Fatalf("c_hash = %v, want %v", claims["c_hash"], cHash)
	}
	sHash, _ := jose.LeftHalfHash("ES256", "af0ifjsldkj")
	if claims["s_hash"] != sHash {
		t.Fatalf("s_hash = %v, want %v", claims["s_hash"], sHash)
	}
}

func TestIssue_SkipAtHash(t *testing.T) {
	e := newEngine(t)

	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID:    "t1",
		Client:      e.client,
		Server:      e.server,
		Grant:       e.grant("openid"),
		WithIDToken: true,
		SkipAtHash:  true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims := idTokenClaims(t, tok.IDToken)
	if _, ok := claims["at_hash"]; ok {
		t.Fatal("at_hash must be omitted when the access token is not co-delivered")
	}
}

func TestIssue_AuthenticationClaims(t *testing.T) {
	e := newEngine(t)
	authTime := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID: "t1",
		Client:   e.client,
		Server:   e.server,
		Grant:    e.grant("openid"),
		Authentication: &types.AuthenticationContext{
			AuthTime: authTime,
			ACR:      "urn:mace:incommon:iap:silver",
			AMR:      []string{"pwd", "otp"},
		},
		WithIDToken: true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims := idTokenClaims(t, tok.IDToken)
	if int64(claims["auth_time"].(float64)) != authTime.Unix() {
		t.Fatalf("auth_time = %v, want %d", claims["auth_time"], authTime.Unix())
	}
	if claims["acr"] != "urn:mace:incommon:iap:silver" {
		t.Fatalf("acr = %v", claims["acr"])
	}
	if amr, ok := claims["amr"].([]any); !ok || len(amr) != 2 || amr[0] != "pwd" {
		t.Fatalf("amr = %v", claims["amr"])
	}
}

func TestIssue_RequestedUserClaims(t *testing.T) {
	e := newEngine(t)

	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID: "t1",
		Client:   e.client,
		Server:   e.server,
		Grant:    e.grant("openid"),
		ClaimsFilter: types.ClaimsPayload{
			IDToken: map[string]json.RawMessage{
				"email":          nil,
				"name":           nil,
				"phone_number":   nil,
				"email_verified": nil,
			},
		},
		WithIDToken: true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims := idTokenClaims(t, tok.IDToken)
	if claims["email"] != "joe@example.org" {
		t.Fatalf("email = %v", claims["email"])
	}
	if claims["name"] != "Joe Example" {
		t.Fatalf("name = %v", claims["name"])
	}
	if claims["email_verified"] != true {
		t.Fatalf("email_verified = %v", claims["email_verified"])
	}
	// the user has no phone number registered, the claim is skipped
	if _, ok := claims["phone_number"]; ok {
		t.Fatal("phone_number must not be present")
	}
}

func TestIssue_AccessTokenTTLOverride(t *testing.T) {
	e := newEngine(t)
	short := *e.client
	short.AccessTokenTTLSeconds = 120

	tok, err := e.issuer.Issue(context.Background(), IssueInput{
		TenantID: "t1",
		Client:   &short,
		Server:   e.server,
		Grant:    e.grant("read"),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := tok.Payload.ExpiresAt.Sub(tok.Payload.IssuedAt); got != 2*time.Minute {
		t.Fatalf("access ttl = %v, want 2m", got)
	}
}
