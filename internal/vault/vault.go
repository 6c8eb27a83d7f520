// Package vault implements restricted-field encryption with AES-256-GCM.
// Key material is supplied through the environment and is read-only here;
// rotation is an operational concern.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/formflow/formflow/model"
)

// AESService is an EncryptionService backed by AES-256-GCM. Each ciphertext
// carries its own random nonce; secret IDs are opaque UUIDs.
type AESService struct {
	aead cipher.AEAD
}

// NewAESService creates a service from a 32-byte key.
func NewAESService(key []byte) (*AESService, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init: %w", err)
	}
	return &AESService{aead: aead}, nil
}

// NewAESServiceFromEnv reads a base64-encoded 32-byte key from the named
// environment variable.
func NewAESServiceFromEnv(keyEnv string) (*AESService, error) {
	raw := os.Getenv(keyEnv)
	if raw == "" {
		return nil, fmt.Errorf("vault: environment variable %s is not set", keyEnv)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("vault: decoding key from %s: %w", keyEnv, err)
	}
	return NewAESService(key)
}

// Encrypt seals the plaintext under a fresh nonce.
func (s *AESService) Encrypt(_ context.Context, plaintext string) (*model.Secret, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return &model.Secret{
		ID:         uuid.NewString(),
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (s *AESService) Decrypt(_ context.Context, secret *model.Secret) (string, error) {
	if secret == nil || len(secret.Ciphertext) < s.aead.NonceSize() {
		return "", fmt.Errorf("vault: malformed ciphertext")
	}
	nonce := secret.Ciphertext[:s.aead.NonceSize()]
	plaintext, err := s.aead.Open(nil, nonce, secret.Ciphertext[s.aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}
	return string(plaintext), nil
}
