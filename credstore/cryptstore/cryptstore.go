// Package cryptstore wraps any credstore.Store with encryption at rest.
// Values are sealed with NaCl secretbox under a key derived from a passphrase
// via Argon2id; the per-store salt lives unencrypted under a reserved key in
// the inner store.
package cryptstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/vulnwatch/vulnwatch-client/credstore"
)

const (
	saltKey    = "vulnwatch.cryptstore_salt"
	saltLength = 16
	nonceSize  = 24

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var _ credstore.Store = (*CryptStore)(nil)

type CryptStore struct {
	inner credstore.Store
	key   [32]byte
}

// New derives the sealing key from passphrase, generating and persisting the
// salt on first use.
func New(inner credstore.Store, passphrase string) (*CryptStore, error) {
	if inner == nil {
		return nil, errors.New("[cryptstore.New] inner store is required")
	}
	if passphrase == "" {
		return nil, errors.New("[cryptstore.New] passphrase is required")
	}

	salt, err := loadOrCreateSalt(inner)
	if err != nil {
		return nil, errors.Wrap(err, "[cryptstore.New] salt")
	}

	cs := &CryptStore{inner: inner}
	derived := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32)
	copy(cs.key[:], derived)
	return cs, nil
}

// Get returns absent when the stored value cannot be opened with the derived
// key, so a wrong passphrase behaves like an empty store instead of leaking
// ciphertext.
func (cs *CryptStore) Get(key string) (string, bool) {
	sealed, ok := cs.inner.Get(key)
	if !ok {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize {
		return "", false
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &cs.key)
	if !ok {
		return "", false
	}
	return string(plain), true
}

func (cs *CryptStore) Set(key, value string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[CryptStore.Set] nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &cs.key)
	if err := cs.inner.Set(key, base64.StdEncoding.EncodeToString(sealed)); err != nil {
		return errors.Wrap(err, "[CryptStore.Set] inner.Set")
	}
	return nil
}

func (cs *CryptStore) Remove(key string) error {
	if err := cs.inner.Remove(key); err != nil {
		return errors.Wrap(err, "[CryptStore.Remove] inner.Remove")
	}
	return nil
}

func loadOrCreateSalt(inner credstore.Store) ([]byte, error) {
	if encoded, ok := inner.Get(saltKey); ok {
		salt, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, errors.Wrap(err, "decode stored salt")
		}
		return salt, nil
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "generate salt")
	}
	if err := inner.Set(saltKey, hex.EncodeToString(salt)); err != nil {
		return nil, errors.Wrap(err, "persist salt")
	}
	return salt, nil
}
