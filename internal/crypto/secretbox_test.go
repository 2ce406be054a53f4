package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveKey("request-direction-secret")
	plaintext := []byte(`{"request_id":"abc","code":"print(2+2)"}`)

	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)

	opened, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpen_FailsWithWrongDirectionKey(t *testing.T) {
	requestKey := DeriveKey("chat-to-runner-secret")
	responseKey := DeriveKey("runner-to-chat-secret")

	sealed, err := Seal(requestKey, []byte(`{"request_id":"abc"}`))
	require.NoError(t, err)

	_, err = Open(responseKey, sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpen_RejectsTruncatedPayload(t *testing.T) {
	key := DeriveKey("any-secret")
	_, err := Open(key, []byte("short"))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey("same-passphrase")
	b := DeriveKey("same-passphrase")
	assert.Equal(t, a, b)

	c := DeriveKey("different-passphrase")
	assert.NotEqual(t, a, c)
}
