package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// ErrCiphertextTooShort is returned when the input cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt seals plaintext, returning nonce||ciphertext||tag.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt opens the output of Encrypt.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the total bytes added to the plaintext.
	Overhead() int
}

// New creates a cipher, picking the algorithm from the platform.
func New(key []byte) (Cipher, error) {
	if hasAESNI() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherChaCha20)
}

// NewWithType creates a cipher of the specified type. Key must be 32 bytes.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("adaptive: invalid key size %d for %s: must be 32 bytes", len(key), t)
	}

	var (
		a   cipher.AEAD
		err error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			a, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		a, err = chacha20poly1305.New(key)
	default:
		return nil, errors.New("adaptive: unknown cipher type: " + string(t))
	}
	if err != nil {
		return nil, err
	}

	return &aeadCipher{aead: a, typ: t}, nil
}

// hasAESNI reports whether Go's crypto/aes uses hardware acceleration
// on this architecture.
func hasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return true
	default:
		return false
	}
}

type aeadCipher struct {
	aead cipher.AEAD
	typ  CipherType
}

func (c *aeadCipher) Type() CipherType {
	return c.typ
}

func (c *aeadCipher) NonceSize() int {
	return c.aead.NonceSize()
}

func (c *aeadCipher) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}
