// Package cryptox holds the symmetric primitives built on the server secret:
// per-purpose key derivation, HMAC signing of short values and AES-GCM
// sealing of JSON payloads.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrBadSignature is returned when a signed value was tampered with.
var ErrBadSignature = errors.New("bad signature")

// DeriveKey derives a 32-byte key for one purpose from the server secret, so
// cookie signing and payload sealing never share key material.
func DeriveKey(secret []byte, purpose string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails past 255*hash-size bytes of output
		panic(err)
	}
	return key
}

// Sign returns "<value>.<mac>" where mac is the base64url HMAC-SHA256 of value.
func Sign(value string, key []byte) string {
	return value + "." + mac(value, key)
}

// Verify checks a value produced by Sign and returns the original value.
func Verify(signed string, key []byte) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", ErrBadSignature
	}
	value, got := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(got), []byte(mac(value, key))) {
		return "", ErrBadSignature
	}
	return value, nil
}

func mac(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// SealJSON serializes v to JSON and encrypts it using AES-GCM. The random
// nonce is prepended to the ciphertext.
//
// The key must be a valid AES key length (16, 24, or 32 bytes).
func SealJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenJSON reverses SealJSON, unmarshalling the plaintext into v.
func OpenJSON(sealed, key []byte, v any) error {
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	ns := aesgcm.NonceSize()
	if len(sealed) < ns {
		return errors.New("sealed payload too short")
	}

	plaintext, err := aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
