package deltacalc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func zipEntryAt(name string, offset, compressedLen, uncompressedSize int64) zipformat.ZipEntry {
	return zipformat.ZipEntry{
		FileNameBytes:       []byte(name),
		CompressedDataRange: zipformat.Range{Offset: offset, Length: compressedLen},
		UncompressedSize:    uncompressedSize,
	}
}

func TestProjectPayloadRangesAccumulatesExtraBytesForUncompressedEntries(t *testing.T) {
	entries := []zipformat.ZipEntry{
		zipEntryAt("a.txt", 0, 10, 50),  // uncompressed: +40 extra
		zipEntryAt("b.txt", 10, 20, 20), // not uncompressed
	}
	uncompressed := map[zipformat.EntryKey]bool{
		entries[0].Key(): true,
	}

	out := ProjectPayloadRanges(entries, uncompressed)

	aRange := out[entries[0].Key()]
	assert.Equal(t, int64(0), aRange.Offset)
	assert.Equal(t, int64(50), aRange.Length)

	bRange := out[entries[1].Key()]
	assert.Equal(t, int64(10+40), bRange.Offset) // shifted by a's extraBytes
	assert.Equal(t, int64(20), bRange.Length)
}

func TestProjectPayloadRangesNoExtraWhenNothingUncompressed(t *testing.T) {
	entries := []zipformat.ZipEntry{
		zipEntryAt("a.txt", 0, 10, 10),
		zipEntryAt("b.txt", 10, 20, 20),
	}
	out := ProjectPayloadRanges(entries, nil)

	assert.Equal(t, int64(0), out[entries[0].Key()].Offset)
	assert.Equal(t, int64(10), out[entries[1].Key()].Offset)
}

func TestBuildUncompressedSetsExtractsFlaggedKeys(t *testing.T) {
	oldE := zipEntryAt("old.txt", 0, 10, 10)
	newE := zipEntryAt("new.txt", 0, 10, 10)

	planEntries := []prediff.PreDiffPlanEntry{
		{OldEntry: oldE, NewEntry: newE, UncompressionOption: prediff.UncompressBoth},
	}

	oldSet, newSet := BuildUncompressedSets(planEntries)
	assert.True(t, oldSet[oldE.Key()])
	assert.True(t, newSet[newE.Key()])
}

func TestBuildUncompressedSetsEmptyWhenNeitherFlagged(t *testing.T) {
	oldE := zipEntryAt("old.txt", 0, 10, 10)
	newE := zipEntryAt("new.txt", 0, 10, 10)

	planEntries := []prediff.PreDiffPlanEntry{
		{OldEntry: oldE, NewEntry: newE, UncompressionOption: prediff.UncompressNeither},
	}

	oldSet, newSet := BuildUncompressedSets(planEntries)
	assert.False(t, oldSet[oldE.Key()])
	assert.False(t, newSet[newE.Key()])
}
