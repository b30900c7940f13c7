package jose

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
)

// LeftHalfHash calcula at_hash/c_hash/s_hash: hash de la familia del alg
// de firma, mitad izquierda, base64url sin padding.
func LeftHalfHash(alg, value string) (string, error) {
	var h hash.Hash
	switch alg {
	case "RS256", "ES256", "PS256", "HS256", "EdDSA":
		h = sha256.New()
	case "RS384", "ES384", "PS384", "HS384":
		h = sha512.New384()
	case "RS512", "ES512", "PS512", "HS512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("jose: no hash for alg %q", alg)
	}
	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}
