package deltacalc

import (
	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// ProjectPayloadRanges maps each entry's payload (not its whole local
// entry) from its on-disk compressed-data range to the coordinate space
// of the delta-friendly blob that blobbuilder produced from it, per
// spec.md §4.5 step 1-2: "Compute the position of each entry's
// local-header in the two delta-friendly blobs by walking in
// local-header order and accumulating extraBytes += uncompressedSize -
// compressedLength for each uncompressed entry encountered."
//
// entries must already be sorted by local-header offset (the order
// zipformat.Parse returns). uncompressed reports, for each entry's key,
// whether that side was inflated by the planner — the blob builder
// replaced its compressed bytes with its uncompressed bytes at exactly
// this position.
func ProjectPayloadRanges(entries []zipformat.ZipEntry, uncompressed map[zipformat.EntryKey]bool) map[zipformat.EntryKey]zipformat.Range {
	out := make(map[zipformat.EntryKey]zipformat.Range, len(entries))

	var extraBytes int64
	for _, e := range entries {
		key := e.Key()
		blobOffset := e.CompressedDataRange.Offset + extraBytes

		if uncompressed[key] {
			out[key] = zipformat.Range{Offset: blobOffset, Length: e.UncompressedSize}
			extraBytes += e.UncompressedSize - e.CompressedDataRange.Length
		} else {
			out[key] = zipformat.Range{Offset: blobOffset, Length: e.CompressedDataRange.Length}
		}
	}

	return out
}

// BuildUncompressedSets extracts, from a plan's per-pair decisions, the
// two sets of entry keys whose old/new payload was flagged for
// uncompression — the input ProjectPayloadRanges needs for each side.
func BuildUncompressedSets(planEntries []prediff.PreDiffPlanEntry) (oldSet, newSet map[zipformat.EntryKey]bool) {
	oldSet = make(map[zipformat.EntryKey]bool)
	newSet = make(map[zipformat.EntryKey]bool)
	for _, e := range planEntries {
		if e.UncompressOld() {
			oldSet[e.OldEntry.Key()] = true
		}
		if e.UncompressNew() {
			newSet[e.NewEntry.Key()] = true
		}
	}
	return oldSet, newSet
}
