package qrcode

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/gachapon/pkg/errs"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("salt", "secret")
	require.NoError(t, err)

	a, err := s.Seal([]byte(`{"qr_id":"qr_1"}`))
	require.NoError(t, err)
	b, err := s.Seal([]byte(`{"qr_id":"qr_1"}`))
	require.NoError(t, err)
	require.NotEqual(t, a, b, "nonce must differ per seal")

	pt, err := s.Open(a)
	require.NoError(t, err)
	require.Equal(t, `{"qr_id":"qr_1"}`, string(pt))
}

func TestSealer_Rejects(t *testing.T) {
	s, err := NewSealer("salt", "secret")
	require.NoError(t, err)
	other, err := NewSealer("salt", "other-secret")
	require.NoError(t, err)
	foreign, err := other.Seal([]byte("x"))
	require.NoError(t, err)
	good, err := s.Seal([]byte("payload"))
	require.NoError(t, err)
	raw, _ := base64.RawURLEncoding.DecodeString(good)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	for name, code := range map[string]string{
		"not base64":  "%%%",
		"too short":   base64.RawURLEncoding.EncodeToString([]byte("short")),
		"foreign key": foreign,
		"tampered":    tampered,
		"empty":       "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Open(code)
			require.True(t, errors.Is(err, errs.ErrInvalid), err)
		})
	}
}

func TestSealer_Rotation(t *testing.T) {
	old, err := NewSealer("salt", "v1")
	require.NoError(t, err)
	code, err := old.Seal([]byte("issued before rotation"))
	require.NoError(t, err)

	rotated, err := NewSealer("salt", "v2", "v1")
	require.NoError(t, err)
	pt, err := rotated.Open(code)
	require.NoError(t, err)
	require.Equal(t, "issued before rotation", string(pt))

	fresh, err := rotated.Seal([]byte("new"))
	require.NoError(t, err)
	_, err = old.Open(fresh)
	require.Error(t, err)
}

func TestNewSealer_EmptySecret(t *testing.T) {
	_, err := NewSealer("salt", "")
	require.Error(t, err)
}
