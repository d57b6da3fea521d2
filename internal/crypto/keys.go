// Package crypto implements the streaming authenticated-decryption pipeline:
// key derivation and AES-256-GCM decryption driven manually across an
// ordered sequence of cached ciphertext parts.
package crypto

import "crypto/sha256"

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// DeriveKey derives the 32-byte symmetric key from the master-key string.
// No salt, no KDF iterations: SHA-256(UTF-8 bytes of masterKey).
// This must match the server's derivation exactly and must not change.
func DeriveKey(masterKey string) []byte {
	sum := sha256.Sum256([]byte(masterKey))
	key := make([]byte, KeySize)
	copy(key, sum[:])
	return key
}
