package jose

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"testing"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return priv
}

func clientJWKS(t *testing.T, pub *rsa.PublicKey, kid string) string {
	t.Helper()
	key, err := jwk.Import(pub)
	if err != nil {
		t.Fatalf("import pubkey: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		t.Fatalf("add key: %v", err)
	}
	raw, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return string(raw)
}

func TestEncryptIDToken_RoundTrip(t *testing.T) {
	priv := rsaKey(t)
	client := &types.ClientConfiguration{
		ClientID:                    "s6BhdRkqt3",
		JWKS:                        clientJWKS(t, &priv.PublicKey, "enc-1"),
		IDTokenEncryptedResponseAlg: "RSA-OAEP",
		IDTokenEncryptedResponseEnc: "A128CBC-HS256",
	}
	signed := "eyJhbGciOiJSUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig"

	out, err := EncryptIDToken(client, signed)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Count(out, ".") != 4 {
		t.Fatalf("expected compact JWE, got %q", out)
	}

	plain, err := jwe.Decrypt([]byte(out), jwe.WithKey(jwa.RSA_OAEP(), priv))
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != signed {
		t.Fatalf("got %q, want %q", plain, signed)
	}
}

func TestEncryptIDToken_DefaultEnc(t *testing.T) {
	priv := rsaKey(t)
	client := &types.ClientConfiguration{
		ClientID:                    "s6BhdRkqt3",
		JWKS:                        clientJWKS(t, &priv.PublicKey, "enc-1"),
		IDTokenEncryptedResponseAlg: "RSA-OAEP",
	}

	out, err := EncryptIDToken(client, "payload")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := jwe.Decrypt([]byte(out), jwe.WithKey(jwa.RSA_OAEP(), priv))
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != "payload" {
		t.Fatalf("got %q, want %q", plain, "payload")
	}
}

func TestEncryptIDToken_NoClientKeys(t *testing.T) {
	client := &types.ClientConfiguration{
		ClientID:                    "s6BhdRkqt3",
		IDTokenEncryptedResponseAlg: "RSA-OAEP",
	}
	if _, err := EncryptIDToken(client, "x"); err != ErrNoClientKeys {
		t.Fatalf("got %v, want ErrNoClientKeys", err)
	}
}

func TestVerifyRequestObject_SignedWithClientJWKS(t *testing.T) {
	priv := rsaKey(t)
	client := &types.ClientConfiguration{
		ClientID: "s6BhdRkqt3",
		JWKS:     clientJWKS(t, &priv.PublicKey, "sig-1"),
	}

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
		"client_id": "s6BhdRkqt3",
		"scope":     "openid payments",
	})
	tok.Header["kid"] = "sig-1"
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewVerifier(NewKeystore())
	params, err := v.VerifyRequestObject("t1", client, signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := params.Get(types.KeyClientID); got != "s6BhdRkqt3" {
		t.Fatalf("client_id: got %q", got)
	}
	if got := params.Get(types.KeyScope); got != "openid payments" {
		t.Fatalf("scope: got %q", got)
	}
}

func TestVerifyRequestObject_EncryptedNested(t *testing.T) {
	serverKey := rsaKey(t)
	ks := NewKeystore()
	ks.AddKey("t1", &SigningKey{
		KID:     "srv-1",
		Alg:     "RS256",
		Private: serverKey,
		Public:  &serverKey.PublicKey,
	})

	client := &types.ClientConfiguration{
		ClientID: "s6BhdRkqt3",
		Secret:   "correct-horse",
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"client_id":    "s6BhdRkqt3",
		"scope":        "openid accounts",
		"redirect_uri": "https://rp.example.org/cb",
	})
	signed, err := tok.SignedString([]byte(client.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	nested, err := jwe.Encrypt([]byte(signed), jwe.WithKey(jwa.RSA_OAEP(), &serverKey.PublicKey))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	v := NewVerifier(ks)
	params, err := v.VerifyRequestObject("t1", client, string(nested))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := params.Get(types.KeyRedirectURI); got != "https://rp.example.org/cb" {
		t.Fatalf("redirect_uri: got %q", got)
	}
	if got := params.Get(types.KeyScope); got != "openid accounts" {
		t.Fatalf("scope: got %q", got)
	}
}

func TestVerifyRequestObject_EncryptedForUnknownTenant(t *testing.T) {
	serverKey := rsaKey(t)
	nested, err := jwe.Encrypt([]byte("x.y.z"), jwe.WithKey(jwa.RSA_OAEP(), &serverKey.PublicKey))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	v := NewVerifier(NewKeystore())
	client := &types.ClientConfiguration{ClientID: "s6BhdRkqt3"}
	if _, err := v.VerifyRequestObject("t-missing", client, string(nested)); err == nil {
		t.Fatal("expected error without a tenant decryption key")
	}
}
