package patchseal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	patch := bytes.Repeat([]byte("patch-bytes-payload-"), 200)

	sealed, err := Seal(patch, "k3y", "p3pper")
	require.NoError(t, err)
	assert.NotEqual(t, patch, sealed)

	unsealed, err := Unseal(sealed, "k3y", "p3pper")
	require.NoError(t, err)
	assert.Equal(t, patch, unsealed)
}

func TestUnsealFailsWithWrongKey(t *testing.T) {
	sealed, err := Seal([]byte("data"), "correct-key", "pepper")
	require.NoError(t, err)

	_, err = Unseal(sealed, "wrong-key", "pepper")
	assert.Error(t, err)
}

func TestUnsealFailsWithWrongPepper(t *testing.T) {
	sealed, err := Seal([]byte("data"), "key", "correct-pepper")
	require.NoError(t, err)

	_, err = Unseal(sealed, "key", "wrong-pepper")
	assert.Error(t, err)
}

func TestSealProducesDifferentCiphertextEachCall(t *testing.T) {
	patch := []byte("same-patch-bytes")

	a, err := Seal(patch, "k", "p")
	require.NoError(t, err)
	b, err := Seal(patch, "k", "p")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "random salt/nonce must vary sealed output")
}

func TestUnsealRejectsTruncatedPayload(t *testing.T) {
	_, err := Unseal([]byte{0x1f, 0x8b}, "k", "p")
	assert.Error(t, err)
}
