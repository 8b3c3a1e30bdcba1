package qrcode

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/fatflowers/gachapon/pkg/errs"
)

const keyInfo = "gachapon-qr-v1"

// Sealer encrypts credential payloads. The first key seals; every key opens, so
// codes issued before a secret rotation stay readable until they expire.
type Sealer struct {
	keys []cipher.AEAD
}

// NewSealer derives one XChaCha20-Poly1305 key per secret with HKDF-SHA256.
func NewSealer(salt string, secret string, previous ...string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("qr secret is empty")
	}
	s := &Sealer{}
	for _, sec := range append([]string{secret}, previous...) {
		if sec == "" {
			continue
		}
		aead, err := deriveAEAD([]byte(sec), []byte(salt))
		if err != nil {
			return nil, err
		}
		s.keys = append(s.keys, aead)
	}
	return s, nil
}

func deriveAEAD(secret, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive qr key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// Seal returns base64url(nonce || ciphertext).
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	aead := s.keys[0]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// Open reverses Seal. Any framing or authentication failure is ErrInvalid.
func (s *Sealer) Open(code string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed code", errs.ErrInvalid)
	}
	if len(raw) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: code too short", errs.ErrInvalid)
	}
	nonce, box := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	for _, aead := range s.keys {
		if pt, err := aead.Open(nil, nonce, box, nil); err == nil {
			return pt, nil
		}
	}
	return nil, fmt.Errorf("%w: code failed authentication", errs.ErrInvalid)
}
