package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/crmdesk-go/pkg/crypto/adaptive"
)

// MinEncryptionKeyLength is the minimum length of the sealing secret.
const MinEncryptionKeyLength = 16

// sealInfo binds derived keys to this storage format.
var sealInfo = []byte("crmdesk/storage/seal/v1")

// SealedKV encrypts values before handing them to the wrapped KV.
//
// The key name is bound as additional data, so a sealed value copied to
// another key fails to open. Keys themselves are stored in clear.
type SealedKV struct {
	inner  KV
	cipher adaptive.Cipher
}

// NewSealedKV derives a 32 byte key from secret with HKDF-SHA256 and wraps
// inner with the named cipher. An empty cipher name selects automatically.
func NewSealedKV(inner KV, secret []byte, cipherName string) (*SealedKV, error) {
	if len(secret) < MinEncryptionKeyLength {
		return nil, fmt.Errorf("storage: encryption key too short (minimum %d bytes)", MinEncryptionKeyLength)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, sealInfo), key); err != nil {
		return nil, fmt.Errorf("storage: derive key: %w", err)
	}

	var (
		c   adaptive.Cipher
		err error
	)
	if cipherName == "" {
		c, err = adaptive.New(key)
	} else {
		c, err = adaptive.NewWithType(key, adaptive.CipherType(cipherName))
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return &SealedKV{inner: inner, cipher: c}, nil
}

// Get reads and opens a sealed value.
func (s *SealedKV) Get(ctx context.Context, key string) GetResult {
	res := s.inner.Get(ctx, key)
	if !res.Ok() {
		return res
	}

	raw, err := base64.RawStdEncoding.DecodeString(res.Value)
	if err != nil {
		return Failed(fmt.Errorf("%w: %s: %v", ErrSealBroken, key, err))
	}
	plain, err := s.cipher.Decrypt(raw, []byte(key))
	if err != nil {
		return Failed(fmt.Errorf("%w: %s: %v", ErrSealBroken, key, err))
	}
	return Found(string(plain))
}

// Set seals and stores a value.
func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	sealed, err := s.cipher.Encrypt([]byte(value), []byte(key))
	if err != nil {
		return fmt.Errorf("storage: seal %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, base64.RawStdEncoding.EncodeToString(sealed))
}

// RemoveMany deletes keys from the wrapped KV.
func (s *SealedKV) RemoveMany(ctx context.Context, keys []string) error {
	return s.inner.RemoveMany(ctx, keys)
}

// Close closes the wrapped KV.
func (s *SealedKV) Close() error {
	return s.inner.Close()
}

// Unwrap returns the wrapped KV.
func (s *SealedKV) Unwrap() KV {
	return s.inner
}

// IsSealBroken reports whether err came from a value that failed to open.
func IsSealBroken(err error) bool {
	return errors.Is(err, ErrSealBroken)
}
