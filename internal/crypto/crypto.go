// Package crypto seals stored credentials with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

// ErrShortCiphertext is returned by Open for input shorter than a nonce.
var ErrShortCiphertext = errors.New("ciphertext too short")

// Sealer encrypts token values before they reach a store.
type Sealer struct {
	key []byte
}

// NewSealer creates a Sealer from a 32-byte hex-encoded key.
func NewSealer(keyHex string) (*Sealer, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, errors.New("ROOT_ENCRYPTION_KEY must be hex-encoded")
	}
	if len(key) != 32 {
		return nil, errors.New("ROOT_ENCRYPTION_KEY must be 32 bytes (64 hex chars)")
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. Output format: [nonce(12) | ciphertext+tag].
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, ErrShortCiphertext
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

func (s *Sealer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
