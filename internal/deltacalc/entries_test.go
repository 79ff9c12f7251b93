package deltacalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func TestBuildRawEntriesProjectsBothSides(t *testing.T) {
	oldE := zipEntryAt("a.txt", 0, 10, 10)
	newE := zipEntryAt("a.txt", 0, 12, 12)

	planEntries := []prediff.PreDiffPlanEntry{
		{OldEntry: oldE, NewEntry: newE, DeltaFormat: prediff.FormatBSDiff},
	}
	oldProjected := map[zipformat.EntryKey]zipformat.Range{oldE.Key(): {Offset: 0, Length: 10}}
	newProjected := map[zipformat.EntryKey]zipformat.Range{newE.Key(): {Offset: 0, Length: 12}}

	out := BuildRawEntries(planEntries, oldProjected, newProjected)
	require.Len(t, out, 1)
	assert.Equal(t, prediff.FormatBSDiff, out[0].Format)
	assert.Equal(t, int64(10), out[0].OldBlobRange.Length)
	assert.Equal(t, int64(12), out[0].NewBlobRange.Length)
}

func TestFillGapsCoversUnexplainedNewBlobBytes(t *testing.T) {
	entries := []DeltaEntry{
		{Format: prediff.FormatBSDiff, OldBlobRange: zipformat.Range{Offset: 20, Length: 10}, NewBlobRange: zipformat.Range{Offset: 30, Length: 10}},
	}

	out := FillGaps(entries, 100, 100)

	// expect: gap [0,30), entry [30,40), gap [40,100)
	require.Len(t, out, 3)
	assert.Equal(t, int64(0), out[0].NewBlobRange.Offset)
	assert.Equal(t, int64(30), out[0].NewBlobRange.Length)
	assert.Equal(t, int64(30), out[1].NewBlobRange.Offset)
	assert.Equal(t, int64(40), out[2].NewBlobRange.Offset)
	assert.Equal(t, int64(60), out[2].NewBlobRange.Length)
}

func TestFillGapsReturnsSingleWholeBlobEntryWhenNoPlanEntries(t *testing.T) {
	out := FillGaps(nil, 50, 40)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].NewBlobRange.Offset)
	assert.Equal(t, int64(50), out[0].NewBlobRange.Length)
	assert.Equal(t, int64(40), out[0].OldBlobRange.Length)
}

func TestFillGapsNoGapsWhenEntriesTileExactly(t *testing.T) {
	entries := []DeltaEntry{
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 0, Length: 10}},
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 10, Length: 10}},
	}
	out := FillGaps(entries, 20, 20)
	require.Len(t, out, 2)
}

func TestCombineEntriesFoldsAdjacentBSDiffEntries(t *testing.T) {
	entries := []DeltaEntry{
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 0, Length: 10}},
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 10, Length: 10}},
	}
	out := CombineEntries(entries, 500)
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].NewBlobRange.Offset)
	assert.Equal(t, int64(20), out[0].NewBlobRange.Length)
	assert.Equal(t, int64(0), out[0].OldBlobRange.Offset)
	assert.Equal(t, int64(500), out[0].OldBlobRange.Length)
}

func TestCombineEntriesDoesNotFoldFileByFileEntries(t *testing.T) {
	entries := []DeltaEntry{
		{Format: prediff.FormatFileByFile, NewBlobRange: zipformat.Range{Offset: 0, Length: 10}},
		{Format: prediff.FormatFileByFile, NewBlobRange: zipformat.Range{Offset: 10, Length: 10}},
	}
	out := CombineEntries(entries, 500)
	assert.Len(t, out, 2)
}

func TestCombineEntriesDoesNotFoldNonContiguousEntries(t *testing.T) {
	entries := []DeltaEntry{
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 0, Length: 10}},
		{Format: prediff.FormatBSDiff, NewBlobRange: zipformat.Range{Offset: 20, Length: 10}},
	}
	out := CombineEntries(entries, 500)
	assert.Len(t, out, 2)
}
