package deltacalc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBSDiffPayloadRoundTripsThroughRepackagedContainer(t *testing.T) {
	old := bytes.Repeat([]byte("the quick brown fox "), 200)
	newBytes := append(append([]byte{}, old...), []byte("a small appended tail")...)

	payload, err := ComputeBSDiffPayload(old, newBytes, false)
	require.NoError(t, err)
	assert.Greater(t, len(payload), 0)

	control, diff, extra, newSize, err := DecodeBSDiffPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(len(newBytes)), newSize)

	rebuilt, err := ToBSDIFF40(control, diff, extra, newSize)
	require.NoError(t, err)

	// rebuilt must itself unpack to the same three streams.
	control2, diff2, extra2, newSize2, err := unpackBSDIFF40(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, control, control2)
	assert.Equal(t, diff, diff2)
	assert.Equal(t, extra, extra2)
	assert.Equal(t, newSize, newSize2)
}

func TestComputeBSDiffPayloadNativeReturnsRawBSDIFF40(t *testing.T) {
	old := []byte("abcdefghijklmnopqrstuvwxyz")
	newBytes := []byte("abcdefghijklmnopqrstuvwxyZ")

	payload, err := ComputeBSDiffPayload(old, newBytes, true)
	require.NoError(t, err)
	assert.Equal(t, bsdiffMagic, string(payload[:8]))
}

func TestDecodeBSDiffPayloadRejectsShortInput(t *testing.T) {
	_, _, _, _, err := DecodeBSDiffPayload([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeBSDiffPayloadRejectsMissingMagic(t *testing.T) {
	bad := make([]byte, len(payloadMagic)+8)
	copy(bad, "XXXX")
	_, _, _, _, err := DecodeBSDiffPayload(bad)
	assert.Error(t, err)
}

func TestOfftinOfftoutRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1234567, -1234567, 1 << 40} {
		assert.Equal(t, v, offtin(offtout(v)))
	}
}

func TestZstdAndXzRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("roundtrip-me"), 50)

	zc, err := zstdCompress(plain)
	require.NoError(t, err)
	zd, err := zstdDecompress(zc)
	require.NoError(t, err)
	assert.Equal(t, plain, zd)

	xc, err := xzCompress(plain)
	require.NoError(t, err)
	xd, err := xzDecompress(xc)
	require.NoError(t, err)
	assert.Equal(t, plain, xd)
}
