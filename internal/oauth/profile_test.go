package oauth

import (
	"testing"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func TestClassifyProfile(t *testing.T) {
	cfg := testServer()

	cases := []struct {
		scopes []string
		want   types.AuthorizationProfile
	}{
		{[]string{"read"}, types.ProfileOAuth2},
		{nil, types.ProfileOAuth2},
		{[]string{"openid"}, types.ProfileOIDC},
		{[]string{"openid", "profile"}, types.ProfileOIDC},
		{[]string{"accounts"}, types.ProfileFAPIBaseline},
		{[]string{"openid", "accounts"}, types.ProfileFAPIBaseline},
		{[]string{"payments"}, types.ProfileFAPIAdvance},
		// advance wins even when baseline scopes are also present
		{[]string{"openid", "accounts", "payments"}, types.ProfileFAPIAdvance},
	}
	for _, c := range cases {
		if got := ClassifyProfile(c.scopes, cfg); got != c.want {
			t.Fatalf("scopes %v: got %s, want %s", c.scopes, got, c.want)
		}
	}
}

// Adding scopes can only keep or raise the tier, never lower it.
func TestClassifyProfile_Monotonic(t *testing.T) {
	cfg := testServer()

	base := []string{"read"}
	additions := [][]string{
		{"openid"},
		{"openid", "accounts"},
		{"openid", "accounts", "payments"},
	}

	prev := ClassifyProfile(base, cfg)
	scopes := base
	for _, add := range additions {
		scopes = append(scopes, add...)
		got := ClassifyProfile(scopes, cfg)
		if got.Rank() < prev.Rank() {
			t.Fatalf("profile rank dropped from %s to %s after adding %v", prev, got, add)
		}
		prev = got
	}
}
