package tokens

import (
	"strings"
	"testing"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatal("two tokens must differ")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not url-safe", a)
	}
}

func TestSHA256Base64URL(t *testing.T) {
	// RFC 7636 appendix B
	got := SHA256Base64URL("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Fatalf("challenge = %q", got)
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("secret", "secret") {
		t.Fatal("equal strings must match")
	}
	if ConstantTimeEquals("secret", "Secret") || ConstantTimeEquals("secret", "secret2") {
		t.Fatal("different strings must not match")
	}
}
