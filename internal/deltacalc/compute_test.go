package deltacalc

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func TestComputeDeltaProducesBSDiffPayloadForProjectedRanges(t *testing.T) {
	old := bytes.Repeat([]byte("old-content-"), 100)
	newBytes := bytes.Repeat([]byte("new-content-"), 100)

	oldBlob := append(append([]byte("PAD-"), old...), []byte("-PAD")...)
	newBlob := append(append([]byte("PAD-"), newBytes...), []byte("-PAD")...)

	entry := DeltaEntry{
		Format:       prediff.FormatBSDiff,
		OldBlobRange: zipformat.Range{Offset: 4, Length: int64(len(old))},
		NewBlobRange: zipformat.Range{Offset: 4, Length: int64(len(newBytes))},
	}

	payload, err := ComputeDelta(context.Background(), entry, oldBlob, newBlob, false)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	_, _, _, newSize, err := DecodeBSDiffPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(len(newBytes)), newSize)
}

func TestComputeDeltaRejectsFileByFileFormat(t *testing.T) {
	entry := DeltaEntry{Format: prediff.FormatFileByFile}
	_, err := ComputeDelta(context.Background(), entry, nil, nil, false)
	assert.Error(t, err)
}

func TestComputeDeltaRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	entry := DeltaEntry{Format: prediff.FormatBSDiff}
	_, err := ComputeDelta(ctx, entry, []byte("a"), []byte("b"), false)
	assert.Error(t, err)
}

func TestSliceRangeReturnsNilForZeroLength(t *testing.T) {
	assert.Nil(t, sliceRange([]byte("hello"), 0, 0))
}
