package aeswrapper

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	assert.Nil(t, err)

	h := New()
	data := []byte("wallet secret material")

	sealed, err := h.Encrypt(key, data)
	assert.Nil(t, err)
	assert.NotEqual(t, data, sealed)

	opened, err := h.Decrypt(key, sealed)
	assert.Nil(t, err)
	assert.Equal(t, data, opened)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	assert.Nil(t, err)

	h := New()
	sealed, err := h.Encrypt(key, []byte("secret"))
	assert.Nil(t, err)

	wrong := make([]byte, 32)
	_, err = rand.Read(wrong)
	assert.Nil(t, err)

	_, err = h.Decrypt(wrong, sealed)
	assert.ErrorIs(t, err, ErrOpenDataFailure)
}

func TestInvalidKeyLength(t *testing.T) {
	h := New()
	_, err := h.Encrypt([]byte("short"), []byte("data"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
