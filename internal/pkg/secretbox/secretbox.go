// Package secretbox seals small secrets, such as TOTP seeds, before they are
// written to storage.
//
// Sealed values are bound to a caller supplied context (usually the row id)
// through the AEAD additional data, so a ciphertext copied onto another row
// fails to open.
package secretbox

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed format: [version byte][24 byte nonce][ciphertext+tag].
const version byte = 1

var (
	// ErrInvalidKeyLength is returned when the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("secretbox: key must be 32 bytes")
	// ErrEmpty is returned when sealing an empty plaintext.
	ErrEmpty = errors.New("secretbox: plaintext is empty")
	// ErrMalformed is returned when the sealed value is truncated or of an unknown version.
	ErrMalformed = errors.New("secretbox: malformed sealed value")
	// ErrOpen is returned when authentication fails.
	ErrOpen = errors.New("secretbox: open failed")
)

// Box seals and opens values with XChaCha20-Poly1305.
type Box interface {
	Seal(plaintext []byte, bindTo string) ([]byte, error)
	Open(sealed []byte, bindTo string) ([]byte, error)
}

// XChaCha implements Box.
type XChaCha struct {
	key []byte
}

// New returns a Box for a 32 byte key.
func New(key []byte) (*XChaCha, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeyLength
	}

	k := make([]byte, len(key))
	copy(k, key)
	return &XChaCha{key: k}, nil
}

func (x *XChaCha) Seal(plaintext []byte, bindTo string) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmpty
	}

	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: init: %w", err)
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = version
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("secretbox: nonce: %w", err)
	}

	return aead.Seal(out, out[1:], plaintext, []byte(bindTo)), nil
}

func (x *XChaCha) Open(sealed []byte, bindTo string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: init: %w", err)
	}

	if len(sealed) < 1+aead.NonceSize()+aead.Overhead() || sealed[0] != version {
		return nil, ErrMalformed
	}

	nonce := sealed[1 : 1+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, sealed[1+aead.NonceSize():], []byte(bindTo))
	if err != nil {
		return nil, ErrOpen
	}

	return plain, nil
}
