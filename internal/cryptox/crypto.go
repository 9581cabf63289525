// Package cryptox implements the tamper seal used for hidden form
// parameters: authenticated encryption (AES-256-GCM) keyed from a server
// secret, so a visitor can neither read nor substitute the sealed values.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"golang.org/x/crypto/hkdf"
)

// Empty is sealed in place of a parameter that is intentionally absent, so
// "absent" and "tampered" can be told apart after opening.
const Empty = "Empty"

const keyInfo = "guest-entries form parameters v1"

var errEmptySecret = errors.New("seal secret must not be empty")

// Sealer seals and opens short string values.
type Sealer struct {
	aead cipher.AEAD
}

// DeriveKey stretches the configured secret into a 32-byte AES key with
// HKDF-SHA256. The same secret always yields the same key.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewSealer builds a Sealer from the server secret.
//
// Example:
//
//	s, err := cryptox.NewSealer([]byte(cfg.SecretKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	token, _ := s.Seal("comments")
//	value, err := s.Open(token) // "comments", nil
func NewSealer(secret []byte) (*Sealer, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aesgcm}, nil
}

// Seal encrypts value with a fresh random nonce and returns
// base64url(nonce || ciphertext). Sealing the same value twice yields
// different tokens.
func (s *Sealer) Seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any malformed, truncated, modified or foreign token
// yields an error wrapping common.ErrTampered.
func (s *Sealer) Open(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", common.ErrTampered)
	}

	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", fmt.Errorf("%w: token too short", common.ErrTampered)
	}

	plaintext, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", common.ErrTampered)
	}

	return string(plaintext), nil
}
