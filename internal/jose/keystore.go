// Package jose agrupa firma y verificación JWS/JWE del engine: access
// tokens, id_tokens y request objects.
package jose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

var (
	ErrKeyNotFound = errors.New("jose: key not found")
	ErrNoActiveKey = errors.New("jose: no active signing key")
)

// SigningKey es una clave de firma del servidor con su KID y algoritmo JWS.
type SigningKey struct {
	KID     string
	Alg     string // "ES256" | "RS256" | "EdDSA"
	Private crypto.PrivateKey
	Public  crypto.PublicKey
}

// Keystore mantiene las claves de firma por tenant. La clave activa firma;
// las retiradas siguen disponibles para verificar por KID.
type Keystore struct {
	mu     sync.RWMutex
	active map[string]string        // tenantID -> kid activo
	keys   map[string][]*SigningKey // tenantID -> claves
}

func NewKeystore() *Keystore {
	return &Keystore{
		active: make(map[string]string),
		keys:   make(map[string][]*SigningKey),
	}
}

// AddKey registra una clave para el tenant. La primera clave registrada
// queda activa.
func (s *Keystore) AddKey(tenantID string, k *SigningKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[tenantID] = append(s.keys[tenantID], k)
	if _, ok := s.active[tenantID]; !ok {
		s.active[tenantID] = k.KID
	}
}

// SetActive marca la clave activa del tenant.
func (s *Keystore) SetActive(tenantID, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys[tenantID] {
		if k.KID == kid {
			s.active[tenantID] = kid
			return nil
		}
	}
	return ErrKeyNotFound
}

// Active devuelve la clave de firma activa del tenant.
func (s *Keystore) Active(tenantID string) (*SigningKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kid, ok := s.active[tenantID]
	if !ok {
		return nil, ErrNoActiveKey
	}
	for _, k := range s.keys[tenantID] {
		if k.KID == kid {
			return k, nil
		}
	}
	return nil, ErrNoActiveKey
}

// PublicKeyByKID resuelve la pubkey por KID dentro de las claves del tenant.
func (s *Keystore) PublicKeyByKID(tenantID, kid string) (crypto.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys[tenantID] {
		if k.KID == kid {
			return k.Public, nil
		}
	}
	return nil, ErrKeyNotFound
}

// DecryptionKey devuelve la clave privada para descifrar JWE dirigidos al
// servidor (request objects cifrados). Usa la clave activa.
func (s *Keystore) DecryptionKey(tenantID string) (crypto.PrivateKey, error) {
	k, err := s.Active(tenantID)
	if err != nil {
		return nil, err
	}
	return k.Private, nil
}

// JWKS exporta las pubkeys del tenant como jwk.Set para publicar en
// /.well-known/jwks.json.
func (s *Keystore) JWKS(tenantID string) (jwk.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := jwk.NewSet()
	for _, k := range s.keys[tenantID] {
		key, err := jwk.Import(k.Public)
		if err != nil {
			return nil, fmt.Errorf("jose: export pubkey %s: %w", k.KID, err)
		}
		if err := key.Set(jwk.KeyIDKey, k.KID); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.AlgorithmKey, k.Alg); err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ParsePEMKey carga una clave privada PEM (PKCS#8, EC o PKCS#1) y deriva
// su pubkey.
func ParsePEMKey(kid, alg string, pemBytes []byte) (*SigningKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("jose: invalid PEM block")
	}
	var priv crypto.PrivateKey
	var err error
	switch block.Type {
	case "EC PRIVATE KEY":
		priv, err = x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		priv, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		priv, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("jose: parse key %s: %w", kid, err)
	}
	var pub crypto.PublicKey
	switch k := priv.(type) {
	case *ecdsa.PrivateKey:
		pub = &k.PublicKey
	case *rsa.PrivateKey:
		pub = &k.PublicKey
	case ed25519.PrivateKey:
		pub = k.Public()
	default:
		return nil, fmt.Errorf("jose: unsupported key type %T", priv)
	}
	return &SigningKey{KID: kid, Alg: alg, Private: priv, Public: pub}, nil
}
