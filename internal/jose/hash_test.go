package jose

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"testing"
)

func TestLeftHalfHash_SHA256Family(t *testing.T) {
	value := "jHkWEdUXMU1BwAsC4vtUsZwnNvTIxEl0z9K3vx9Uyvc"

	sum := sha256.Sum256([]byte(value))
	want := base64.RawURLEncoding.EncodeToString(sum[:16])

	for _, alg := range []string{"ES256", "RS256", "PS256", "HS256", "EdDSA"} {
		got, err := LeftHalfHash(alg, value)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", alg, err)
		}
		if got != want {
			t.Fatalf("%s: got %q, want %q", alg, got, want)
		}
	}
}

func TestLeftHalfHash_SHA384And512(t *testing.T) {
	value := "some-access-token"

	s384 := sha512.Sum384([]byte(value))
	want384 := base64.RawURLEncoding.EncodeToString(s384[:24])
	got, err := LeftHalfHash("ES384", value)
	if err != nil {
		t.Fatalf("ES384: %v", err)
	}
	if got != want384 {
		t.Fatalf("ES384: got %q, want %q", got, want384)
	}

	s512 := sha512.Sum512([]byte(value))
	want512 := base64.RawURLEncoding.EncodeToString(s512[:32])
	got, err = LeftHalfHash("RS512", value)
	if err != nil {
		t.Fatalf("RS512: %v", err)
	}
	if got != want512 {
		t.Fatalf("RS512: got %q, want %q", got, want512)
	}
}

func TestLeftHalfHash_UnknownAlg(t *testing.T) {
	if _, err := LeftHalfHash("none", "x"); err == nil {
		t.Fatal("expected error for unknown alg")
	}
}
