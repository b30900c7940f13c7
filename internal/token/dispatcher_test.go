package token

import (
	"context"
	"net/url"
	"testing"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func TestDispatch_MissingGrantType(t *testing.T) {
	e := newEngine(t)
	d := NewGrantDispatcher()

	_, derr := d.Dispatch(context.Background(), e.context(map[string]string{}))
	if derr == nil || derr.Code != types.ErrInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", derr)
	}
}

func TestDispatch_DuplicatedGrantType(t *testing.T) {
	e := newEngine(t)
	d := NewGrantDispatcher(NewClientCredentialsHandler(e.issuer))

	v := url.Values{}
	v.Add("grant_type", "client_credentials")
	v.Add("grant_type", "client_credentials")
	tc := e.context(nil)
	tc.Params = types.ParamsFromValues(v)

	_, derr := d.Dispatch(context.Background(), tc)
	if derr == nil || derr.Code != types.ErrInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", derr)
	}
}

func TestDispatch_UnknownGrantType(t *testing.T) {
	e := newEngine(t)
	d := NewGrantDispatcher(NewClientCredentialsHandler(e.issuer))

	_, derr := d.Dispatch(context.Background(), e.context(map[string]string{
		"grant_type": "urn:ietf:params:oauth:grant-type:device_code",
	}))
	if derr == nil || derr.Code != types.ErrUnsupportedGrantType {
		t.Fatalf("expected unsupported_grant_type, got %v", derr)
	}
}

func TestDispatch_ServerUnsupportedGrant(t *testing.T) {
	e := newEngine(t)
	e.server.GrantTypesSupported = []string{"authorization_code"}
	d := NewGrantDispatcher(NewClientCredentialsHandler(e.issuer))

	_, derr := d.Dispatch(context.Background(), e.context(map[string]string{
		"grant_type": "client_credentials",
	}))
	if derr == nil || derr.Code != types.ErrUnsupportedGrantType {
		t.Fatalf("expected unsupported_grant_type, got %v", derr)
	}
}

func TestDispatch_ClientUnauthorizedGrant(t *testing.T) {
	e := newEngine(t)
	e.client.GrantTypes = []string{"authorization_code"}
	d := NewGrantDispatcher(NewClientCredentialsHandler(e.issuer))

	_, derr := d.Dispatch(context.Background(), e.context(map[string]string{
		"grant_type": "client_credentials",
	}))
	if derr == nil || derr.Code != types.ErrUnauthorizedClient {
		t.Fatalf("expected unauthorized_client, got %v", derr)
	}
}
