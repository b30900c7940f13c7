package jose

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
)

var (
	ErrUnsignedRequestObject = errors.New("jose: request object is not signed")
	ErrAlgMismatch           = errors.New("jose: request object alg does not match registration")
	ErrNoClientKeys          = errors.New("jose: client has no registered JWKS")
)

var hmacAlgs = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Verifier valida request objects: JWS firmado por el cliente y,
// opcionalmente, anidado en un JWE dirigido al servidor.
type Verifier struct {
	Keys *Keystore
}

func NewVerifier(ks *Keystore) *Verifier {
	return &Verifier{Keys: ks}
}

// VerifyRequestObject valida el request object del cliente y devuelve sus
// claims. Si el valor es un JWE (5 segmentos) primero lo descifra con la
// clave del servidor, luego verifica el JWS interno contra las claves del
// cliente. El alg "none" se rechaza siempre.
func (v *Verifier) VerifyRequestObject(tenantID string, client *types.ClientConfiguration, raw string) (types.RequestObjectParameters, error) {
	compact := strings.TrimSpace(raw)
	if strings.Count(compact, ".") == 4 {
		inner, err := v.decrypt(tenantID, compact)
		if err != nil {
			return types.RequestObjectParameters{}, err
		}
		compact = inner
	}

	alg, err := compactAlg(compact)
	if err != nil {
		return types.RequestObjectParameters{}, err
	}
	if alg == "none" || alg == "" {
		return types.RequestObjectParameters{}, ErrUnsignedRequestObject
	}
	if want := client.RequestObjectSigningAlg; want != "" && want != alg {
		return types.RequestObjectParameters{}, ErrAlgMismatch
	}

	claims := jwtv5.MapClaims{}
	parser := jwtv5.NewParser(jwtv5.WithValidMethods([]string{alg}))
	if _, err := parser.ParseWithClaims(compact, claims, v.keyfunc(client)); err != nil {
		return types.RequestObjectParameters{}, fmt.Errorf("jose: verify request object: %w", err)
	}
	return types.RequestObjectParamsFromClaims(map[string]any(claims)), nil
}

// keyfunc resuelve la clave de verificación del cliente: secret compartido
// para HS*, JWKS registrado para el resto.
func (v *Verifier) keyfunc(client *types.ClientConfiguration) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if hmacAlgs[t.Method.Alg()] {
			if client.Secret == "" {
				return nil, errors.New("jose: client has no shared secret")
			}
			return []byte(client.Secret), nil
		}
		if len(client.JWKS) == 0 {
			return nil, ErrNoClientKeys
		}
		set, err := jwk.Parse([]byte(client.JWKS))
		if err != nil {
			return nil, fmt.Errorf("jose: parse client jwks: %w", err)
		}
		kid, _ := t.Header["kid"].(string)
		key, err := pickKey(set, kid)
		if err != nil {
			return nil, err
		}
		var pub any
		if err := jwk.Export(key, &pub); err != nil {
			return nil, fmt.Errorf("jose: export client key: %w", err)
		}
		return pub, nil
	}
}

func pickKey(set jwk.Set, kid string) (jwk.Key, error) {
	if kid != "" {
		key, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("jose: kid %q not in client jwks", kid)
		}
		return key, nil
	}
	if set.Len() == 0 {
		return nil, ErrNoClientKeys
	}
	key, ok := set.Key(0)
	if !ok {
		return nil, ErrNoClientKeys
	}
	return key, nil
}

// decrypt abre un JWE dirigido al servidor y devuelve el JWS interno.
func (v *Verifier) decrypt(tenantID, compact string) (string, error) {
	algName, err := compactAlg(compact)
	if err != nil {
		return "", err
	}
	keyAlg, ok := jwa.LookupKeyEncryptionAlgorithm(algName)
	if !ok {
		return "", fmt.Errorf("jose: unsupported jwe alg %q", algName)
	}
	priv, err := v.Keys.DecryptionKey(tenantID)
	if err != nil {
		return "", err
	}
	plain, err := jwe.Decrypt([]byte(compact), jwe.WithKey(keyAlg, priv))
	if err != nil {
		return "", fmt.Errorf("jose: decrypt request object: %w", err)
	}
	return string(plain), nil
}

// compactAlg lee el "alg" del header protegido sin verificar nada.
func compactAlg(compact string) (string, error) {
	seg, _, ok := strings.Cut(compact, ".")
	if !ok {
		return "", errors.New("jose: malformed compact serialization")
	}
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return "", errors.New("jose: malformed protected header")
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", errors.New("jose: malformed protected header")
	}
	return hdr.Alg, nil
}
