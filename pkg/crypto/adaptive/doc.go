// Package adaptive provides AEAD ciphers with automatic algorithm selection.
//
// AES-256-GCM is chosen where the Go runtime has hardware AES support,
// ChaCha20-Poly1305 elsewhere. Ciphertexts carry their random nonce as a
// prefix, so callers only keep the sealed bytes and the additional data.
package adaptive
