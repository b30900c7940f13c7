package jose

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

// EncryptIDToken anida un id_token firmado dentro de un JWE con la clave
// pública del cliente, según su registro id_token_encrypted_response_*.
func EncryptIDToken(client *types.ClientConfiguration, signed string) (string, error) {
	keyAlg, ok := jwa.LookupKeyEncryptionAlgorithm(client.IDTokenEncryptedResponseAlg)
	if !ok {
		return "", fmt.Errorf("jose: unsupported jwe alg %q", client.IDTokenEncryptedResponseAlg)
	}
	encName := client.IDTokenEncryptedResponseEnc
	if encName == "" {
		encName = "A128CBC-HS256"
	}
	enc, ok := jwa.LookupContentEncryptionAlgorithm(encName)
	if !ok {
		return "", fmt.Errorf("jose: unsupported jwe enc %q", encName)
	}
	if len(client.JWKS) == 0 {
		return "", ErrNoClientKeys
	}
	set, err := jwk.Parse([]byte(client.JWKS))
	if err != nil {
		return "", fmt.Errorf("jose: parse client jwks: %w", err)
	}
	key, err := encryptionKey(set)
	if err != nil {
		return "", err
	}
	var pub any
	if err := jwk.Export(key, &pub); err != nil {
		return "", fmt.Errorf("jose: export client key: %w", err)
	}
	hdrs := jwe.NewHeaders()
	if err := hdrs.Set("cty", "JWT"); err != nil {
		return "", err
	}
	out, err := jwe.Encrypt([]byte(signed),
		jwe.WithKey(keyAlg, pub),
		jwe.WithContentEncryption(enc),
		jwe.WithProtectedHeaders(hdrs),
	)
	if err != nil {
		return "", fmt.Errorf("jose: encrypt id_token: %w", err)
	}
	return string(out), nil
}

// encryptionKey prefiere una clave marcada use=enc; si no hay, usa la primera.
func encryptionKey(set jwk.Set) (jwk.Key, error) {
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		var use string
		if err := key.Get(jwk.KeyUsageKey, &use); err != nil {
			continue
		}
		if use == "enc" {
			return key, nil
		}
	}
	key, ok := set.Key(0)
	if !ok {
		return nil, ErrNoClientKeys
	}
	return key, nil
}
