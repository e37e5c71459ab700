package cryptoutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestAESGCMRoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	ct, err := enc.Encrypt([]byte("account-password"))
	require.NoError(t, err)
	assert.NotContains(t, ct, "account-password")
	assert.True(t, len(ct) > len("v1:"))
	assert.Equal(t, "v1:", ct[:3])

	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("account-password"), pt)

	// Random nonces: the same plaintext never encrypts to the same string.
	ct2, err := enc.Encrypt([]byte("account-password"))
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2)
}

func TestAESGCMRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewAESGCMEncryptor([]byte("short"))
	assert.Error(t, err)

	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	_, err = enc.Decrypt("v2:whatever")
	assert.ErrorContains(t, err, "unknown ciphertext version")

	_, err = enc.Decrypt("v1:!!not-base64!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("v1:QQ==")
	assert.ErrorContains(t, err, "too short")
}

func TestAESGCMRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	ct, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	// Flip one character in the middle of the base64 body.
	mid := len(ct) / 2
	replacement := byte('A')
	if ct[mid] == replacement {
		replacement = 'B'
	}
	tampered := ct[:mid] + string(replacement) + ct[mid+1:]

	_, err = enc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestAESGCMReadsNoopValues(t *testing.T) {
	t.Parallel()

	ct, err := NoopEncryptor{}.Encrypt([]byte("imported-password"))
	require.NoError(t, err)

	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	// Values written before encryption was enabled stay readable.
	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("imported-password"), pt)
}

func TestNoopRoundTrip(t *testing.T) {
	t.Parallel()

	noop := NoopEncryptor{}
	ct, err := noop.Encrypt([]byte("値"))
	require.NoError(t, err)

	pt, err := noop.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("値"), pt)

	_, err = noop.Decrypt("v1:something")
	assert.Error(t, err)
}
