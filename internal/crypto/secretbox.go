// Package crypto provides authenticated encryption for queue message
// payloads, mirroring the Fernet-style "encrypt with a per-direction key"
// scheme the control plane's original queue ingress used.
//
// golang.org/x/crypto/nacl/secretbox is the idiomatic Go equivalent of
// Fernet: symmetric, authenticated, nonce-prefixed ciphertext. Keys are
// derived from an operator-supplied passphrase by hashing it to 32 bytes,
// the same derivation the original service applied before handing the
// result to Fernet.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed indicates the ciphertext could not be opened with the
// given key — either it was sealed with a different key, or it was
// truncated or corrupted in transit.
var ErrDecryptFailed = errors.New("crypto: message could not be decrypted")

// KeySize is the size in bytes of a derived secretbox key.
const KeySize = 32

// Key is a derived, direction-specific symmetric key.
type Key [KeySize]byte

// DeriveKey hashes an operator-supplied passphrase down to a fixed-size
// secretbox key, exactly as the original service hashed its Fernet key
// strings with SHA-256 before base64-encoding them.
func DeriveKey(passphrase string) Key {
	return Key(sha256.Sum256([]byte(passphrase)))
}

// Seal encrypts plaintext under key, returning nonce||ciphertext.
func Seal(key Key, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	k := [KeySize]byte(key)
	out := make([]byte, 0, len(nonce)+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, &k), nil
}

// Open decrypts a nonce||ciphertext payload produced by Seal using key.
func Open(key Key, sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, ErrDecryptFailed
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	k := [KeySize]byte(key)

	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &k)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
