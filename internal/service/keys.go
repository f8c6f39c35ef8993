package service

import (
	"crypto/rsa"
	"fmt"
	"os"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"auth-service/internal/domain"
)

// KeySet provee la clave de firma activa y las claves de verificacion por kid.
// Es inmutable: se construye una vez al arrancar y se inyecta.
type KeySet struct {
	activeKID string
	signing   *rsa.PrivateKey
	verifying map[string]*rsa.PublicKey
}

// NewKeySet arma el KeySet. La clave publica de la activa se agrega sola;
// extra contiene claves de verificacion adicionales (rotacion).
func NewKeySet(activeKID string, signing *rsa.PrivateKey, extra map[string]*rsa.PublicKey) (*KeySet, error) {
	if activeKID == "" {
		return nil, fmt.Errorf("active key id is required")
	}
	if signing == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	verifying := make(map[string]*rsa.PublicKey, len(extra)+1)
	for kid, pub := range extra {
		if kid == "" || pub == nil {
			return nil, fmt.Errorf("invalid verification key %q", kid)
		}
		verifying[kid] = pub
	}
	if pub, ok := verifying[activeKID]; ok && !pub.Equal(&signing.PublicKey) {
		return nil, fmt.Errorf("verification key %q does not match the signing key", activeKID)
	}
	verifying[activeKID] = &signing.PublicKey
	return &KeySet{activeKID: activeKID, signing: signing, verifying: verifying}, nil
}

// LoadKeySet lee las claves PEM del disco.
func LoadKeySet(activeKID, privateKeyPath string, publicKeyPaths map[string]string) (*KeySet, error) {
	privPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signing, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	extra := make(map[string]*rsa.PublicKey, len(publicKeyPaths))
	for kid, path := range publicKeyPaths {
		pubPEM, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read public key %q: %w", kid, err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key %q: %w", kid, err)
		}
		extra[kid] = pub
	}
	return NewKeySet(activeKID, signing, extra)
}

func (k *KeySet) ActiveKeyID() string { return k.activeKID }

func (k *KeySet) SigningKey() *rsa.PrivateKey { return k.signing }

// VerificationKey devuelve la clave publica del kid o ErrUnknownKeyID.
func (k *KeySet) VerificationKey(kid string) (*rsa.PublicKey, error) {
	pub, ok := k.verifying[kid]
	if !ok {
		return nil, domain.ErrUnknownKeyID
	}
	return pub, nil
}

// KeyIDs devuelve los kid de verificacion ordenados.
func (k *KeySet) KeyIDs() []string {
	ids := make([]string, 0, len(k.verifying))
	for kid := range k.verifying {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}
