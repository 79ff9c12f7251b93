package blobbuilder

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/scratch"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func deflate(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, 6)
	require.NoError(t, err)
	_, err = w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBuildOldReplacesPlannedRangesWithInflatedBytes(t *testing.T) {
	head := []byte("HEADER-")
	plain := []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times over")
	compressed := deflate(t, plain)
	tail := []byte("-TAIL")

	archive := append(append(append([]byte{}, head...), compressed...), tail...)
	src := bytesource.NewMemorySource(archive)

	plan := []zipformat.Range{{Offset: int64(len(head)), Length: int64(len(compressed))}}

	out := scratch.New(scratch.Options{})
	defer out.Close()

	err := BuildOld(context.Background(), src, plan, out)
	require.NoError(t, err)

	got, err := out.Bytes(context.Background())
	require.NoError(t, err)

	want := append(append(append([]byte{}, head...), plain...), tail...)
	assert.Equal(t, want, got)
}

func TestBuildOldCopiesVerbatimWhenPlanEmpty(t *testing.T) {
	archive := []byte("nothing-to-uncompress-here")
	src := bytesource.NewMemorySource(archive)

	out := scratch.New(scratch.Options{})
	defer out.Close()

	err := BuildOld(context.Background(), src, nil, out)
	require.NoError(t, err)

	got, err := out.Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, archive, got)
}

func TestBuildNewRecordsRecompressionPlanAtOutputOffsets(t *testing.T) {
	head := []byte("PREFIX")
	plain := []byte("some moderately repetitive payload data payload data payload data")
	compressed := deflate(t, plain)

	archive := append(append([]byte{}, head...), compressed...)
	src := bytesource.NewMemorySource(archive)

	plan := []zipformat.TypedRange[zipformat.DeflateParameters]{
		{
			Range:    zipformat.Range{Offset: int64(len(head)), Length: int64(len(compressed))},
			Metadata: zipformat.DeflateParameters{Level: 6, NoWrap: true},
		},
	}

	out := scratch.New(scratch.Options{})
	defer out.Close()

	result, err := BuildNew(context.Background(), src, plan, out)
	require.NoError(t, err)
	require.Len(t, result.RecompressionPlan, 1)

	assert.Equal(t, int64(len(head)), result.RecompressionPlan[0].Range.Offset)
	assert.Equal(t, int64(len(plain)), result.RecompressionPlan[0].Range.Length)
	assert.Equal(t, 6, result.RecompressionPlan[0].Metadata.Level)

	got, err := out.Bytes(context.Background())
	require.NoError(t, err)
	want := append(append([]byte{}, head...), plain...)
	assert.Equal(t, want, got)
}

func TestBuildOldRejectsOutOfOrderPlan(t *testing.T) {
	archive := []byte("0123456789")
	src := bytesource.NewMemorySource(archive)

	plan := []zipformat.Range{
		{Offset: 5, Length: 2},
		{Offset: 1, Length: 2},
	}

	out := scratch.New(scratch.Options{})
	defer out.Close()

	err := BuildOld(context.Background(), src, plan, out)
	assert.Error(t, err)
}
