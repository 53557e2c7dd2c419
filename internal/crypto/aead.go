package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"paircrypt/internal/domain"
)

const (
	// NonceSize is the size of the per-message nonce.
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the size of the detached authentication tag.
	TagSize = chacha20poly1305.Overhead
)

// Seal encrypts plaintext under key with a freshly generated nonce and
// returns the nonce, the ciphertext and the detached tag. ad is
// authenticated but not encrypted.
func Seal(key, plaintext, ad []byte) (nonce, ciphertext, tag []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, ad)
	split := len(sealed) - TagSize
	return nonce, sealed[:split:split], sealed[split:], nil
}

// Open verifies and decrypts. It fails closed with
// domain.ErrAuthenticationFailed: no plaintext is returned unless the tag
// verifies.
func Open(key, nonce, ciphertext, tag, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, domain.ErrAuthenticationFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	pt, err := aead.Open(nil, nonce, sealed, ad)
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return pt, nil
}
