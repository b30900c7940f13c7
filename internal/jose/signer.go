package jose

import (
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Signer firma JWTs con la clave activa del keystore, al estilo del
// issuer clásico: header kid + typ y claims en MapClaims.
type Signer struct {
	Keys *Keystore
}

func NewSigner(ks *Keystore) *Signer {
	return &Signer{Keys: ks}
}

// SignClaims firma los claims con la clave activa del tenant y devuelve el
// JWT compacto y el KID usado.
func (s *Signer) SignClaims(tenantID string, claims jwtv5.MapClaims) (string, string, error) {
	key, err := s.Keys.Active(tenantID)
	if err != nil {
		return "", "", err
	}
	method := jwtv5.GetSigningMethod(key.Alg)
	if method == nil {
		return "", "", fmt.Errorf("jose: unknown signing method %q", key.Alg)
	}
	tk := jwtv5.NewWithClaims(method, claims)
	tk.Header["kid"] = key.KID
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(key.Private)
	if err != nil {
		return "", "", err
	}
	return signed, key.KID, nil
}

// ActiveAlg devuelve el algoritmo JWS de la clave activa del tenant.
func (s *Signer) ActiveAlg(tenantID string) (string, error) {
	key, err := s.Keys.Active(tenantID)
	if err != nil {
		return "", err
	}
	return key.Alg, nil
}
