package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptFieldRoundTrip(t *testing.T) {
	t.Parallel()

	for _, plaintext := range []string{
		"",
		"13800001111",
		"exactly16bytes!!",
		"a much longer field value that spans several AES blocks 的中文",
	} {
		ct, err := EncryptField(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ct)

		pt, err := DecryptField(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, pt)
	}
}

func TestDecryptFieldRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecryptField("not-hex")
	assert.Error(t, err)

	// Valid hex, wrong length for a block cipher.
	_, err = DecryptField("abcdef")
	assert.Error(t, err)
}

func TestEncryptWithKeyB64(t *testing.T) {
	t.Parallel()

	out, err := EncryptWithKeyB64("point-data", "0123456789abcdef")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	// Base64, not hex.
	assert.NotContains(t, out, " ")

	_, err = EncryptWithKeyB64("x", "short-key")
	assert.Error(t, err)
}

func TestSign(t *testing.T) {
	t.Parallel()

	// MD5 is deterministic; the same ordered fields always give the same
	// signature and order matters.
	a := Sign("user-1", "device-1", "student")
	b := Sign("user-1", "device-1", "student")
	c := Sign("device-1", "user-1", "student")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestPKCS7Padding(t *testing.T) {
	t.Parallel()

	for size := 0; size <= 33; size++ {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		padded := pkcs7Pad(data, 16)
		require.Zero(t, len(padded)%16)

		out, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}

	_, err := pkcs7Unpad([]byte{}, 16)
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{0x00}, 16)
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{0x01, 0x02}, 16)
	assert.Error(t, err)
}
