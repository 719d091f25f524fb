package aesgcm

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

func testKey(t *testing.T) model.SymmetricKey {
	t.Helper()
	var key model.SymmetricKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

func TestCipher_RoundTrip(t *testing.T) {
	c := New()
	key := testKey(t)

	for _, plaintext := range []string{"", "pass123", "ünïcødé pässwörd", string(bytes.Repeat([]byte("x"), 4096))} {
		payload, err := c.Encrypt([]byte(plaintext), key)
		require.NoError(t, err)

		got, err := c.Decrypt(payload, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(got))
	}
}

func TestCipher_FreshNoncePerCall(t *testing.T) {
	c := New()
	key := testKey(t)

	seen := make(map[string]struct{})
	for range 100 {
		payload, err := c.Encrypt([]byte("same plaintext"), key)
		require.NoError(t, err)

		_, dup := seen[payload]
		require.False(t, dup, "payload repeated for identical plaintext")
		seen[payload] = struct{}{}
	}
}

func TestCipher_PayloadLayout(t *testing.T) {
	c := New()
	key := testKey(t)

	payload, err := c.Encrypt([]byte("pass123"), key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	// nonce + plaintext + 16-byte GCM tag
	assert.Len(t, raw, NonceSize+len("pass123")+16)
}

func TestCipher_FailuresShareOneErrorKind(t *testing.T) {
	c := New()
	key := testKey(t)

	valid, err := c.Encrypt([]byte("pass123"), key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(valid)
	require.NoError(t, err)
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xff

	tests := map[string]struct {
		payload string
		key     model.SymmetricKey
	}{
		"short payload": {base64.StdEncoding.EncodeToString([]byte("short")), key},
		"empty payload": {"", key},
		"not base64":    {"%%%not-base64%%%", key},
		"tampered tag":  {base64.StdEncoding.EncodeToString(tampered), key},
		"wrong key":     {valid, testKey(t)},
		"nonce only":    {base64.StdEncoding.EncodeToString(raw[:NonceSize]), key},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(tt.payload, tt.key)
			require.Error(t, err)
			assert.Equal(t, driven.ErrInvalidPayload, err)
		})
	}
}
