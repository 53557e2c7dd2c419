package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// keystoreFormatVersion is the newest sealed-blob format this package reads.
const keystoreFormatVersion = 2

// ErrWrongPassphrase is returned when a sealed blob does not open, either
// because the passphrase is wrong or the file was modified.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted keystore")

// scryptParams are the key-derivation tunables recorded in each blob.
type scryptParams struct {
	N, R, P int
}

// defaultScrypt is used for new blobs.
var defaultScrypt = scryptParams{N: 1 << 15, R: 8, P: 1}

// sealedBlob is the on-disk JSON structure of a passphrase-sealed value.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce,omitempty"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from passphrase and encrypts raw into a JSON blob. The
// salt is authenticated as associated data.
func seal(passphrase string, raw []byte, params scryptParams) ([]byte, error) {
	bl := sealedBlob{
		V:     keystoreFormatVersion,
		Salt:  make([]byte, 16),
		Nonce: make([]byte, chacha20poly1305.NonceSizeX),
		N:     params.N,
		R:     params.R,
		P:     params.P,
	}
	if _, err := rand.Read(bl.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(bl.Nonce); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	bl.Cipher = aead.Seal(nil, bl.Nonce, raw, bl.Salt)
	return json.Marshal(bl)
}

// open reverses seal. Version 1 blobs used a zero nonce with ChaCha20-Poly1305.
func open(passphrase string, b []byte) ([]byte, error) {
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("store: decode keystore: %w", err)
	}
	if bl.V < 1 || bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("store: unsupported keystore version %d", bl.V)
	}
	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	var pt []byte
	if bl.V == 1 {
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		pt, err = aead.Open(nil, make([]byte, chacha20poly1305.NonceSize), bl.Cipher, bl.Salt)
		if err != nil {
			return nil, ErrWrongPassphrase
		}
		return pt, nil
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(bl.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	pt, err = aead.Open(nil, bl.Nonce, bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
