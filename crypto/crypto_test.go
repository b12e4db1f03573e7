package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestService_RoundTripsWithKey(t *testing.T) {
	t.Setenv(EnvDataEncryptionKey, "a-passphrase-not-a-raw-key")
	svc, err := NewService()
	require.NoError(t, err)
	require.True(t, svc.HasKey())

	ciphertext, err := svc.Encrypt("super-secret-api-key")
	require.NoError(t, err)
	require.NotEqual(t, "super-secret-api-key", ciphertext)

	plaintext, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "super-secret-api-key", plaintext)
}

func TestService_WithoutKeyPassesThroughPlaintext(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	require.False(t, svc.HasKey())

	out, err := svc.Encrypt("plain")
	require.NoError(t, err)
	require.Equal(t, "plain", out)
}

func TestService_DecryptWithoutKeyFailsOnEncryptedValue(t *testing.T) {
	t.Setenv(EnvDataEncryptionKey, "key-a")
	svc, err := NewService()
	require.NoError(t, err)
	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	t.Setenv(EnvDataEncryptionKey, "")
	noKeySvc, err := NewService()
	require.NoError(t, err)
	_, err = noKeySvc.Decrypt(ciphertext)
	require.Error(t, err)

	_ = svc
}

func TestService_EmptyStringIsIdempotent(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	out, err := svc.Encrypt("")
	require.NoError(t, err)
	require.Equal(t, "", out)
}
