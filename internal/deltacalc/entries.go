package deltacalc

import (
	"sort"

	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// BuildRawEntries turns a plan's matched pairs into one DeltaEntry per
// pair, projecting each side's payload range into its delta-friendly
// blob's coordinate space (spec.md §4.5 step 2). oldProjected/
// newProjected come from ProjectPayloadRanges, run once over the full old
// and new entry lists respectively (not just the matched pairs), so the
// projection accounts for every uncompressed entry's extraBytes
// regardless of whether it happened to pair.
func BuildRawEntries(planEntries []prediff.PreDiffPlanEntry, oldProjected, newProjected map[zipformat.EntryKey]zipformat.Range) []DeltaEntry {
	out := make([]DeltaEntry, 0, len(planEntries))
	for _, e := range planEntries {
		out = append(out, DeltaEntry{
			Format:       e.DeltaFormat,
			OldBlobRange: oldProjected[e.OldEntry.Key()],
			NewBlobRange: newProjected[e.NewEntry.Key()],
		})
	}
	return out
}

// FillGaps sorts entries by NewBlobRange.offset and inserts default
// -format entries covering every unexplained byte of the delta-friendly
// new blob (before, between, after), per spec.md §4.5 step 3. A gap's old
// range is a zero-length range positioned at the next entry's old offset
// — coverage, not byte-identity, is all a gap promises. CombineEntries
// widens a gap's old range to the whole old blob when it folds the gap
// with a neighbouring BSDIFF entry; a gap left unfolded diffs against its
// zero-length old range.
func FillGaps(entries []DeltaEntry, newBlobLength, oldBlobLength int64) []DeltaEntry {
	sorted := make([]DeltaEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NewBlobRange.Offset < sorted[j].NewBlobRange.Offset
	})

	// An empty plan reduces to one DeltaEntry covering both blobs in
	// full (spec.md §4.5) — handled here, before the trailing-gap branch
	// below, since that branch always fires when newBlobLength > 0 (even
	// an "empty" ZIP has an EOCD record) and would otherwise produce a
	// single entry with a zero-length OldBlobRange instead.
	if len(sorted) == 0 {
		return []DeltaEntry{{
			Format:       prediff.FormatBSDiff,
			OldBlobRange: zipformat.Range{Offset: 0, Length: oldBlobLength},
			NewBlobRange: zipformat.Range{Offset: 0, Length: newBlobLength},
		}}
	}

	out := make([]DeltaEntry, 0, len(sorted)+2)
	var cursor int64

	gapOldOffset := func(idx int) int64 {
		if idx < len(sorted) {
			return sorted[idx].OldBlobRange.Offset
		}
		return oldBlobLength
	}

	for i, e := range sorted {
		if e.NewBlobRange.Offset > cursor {
			out = append(out, DeltaEntry{
				Format:       prediff.FormatBSDiff,
				OldBlobRange: zipformat.Range{Offset: gapOldOffset(i), Length: 0},
				NewBlobRange: zipformat.Range{Offset: cursor, Length: e.NewBlobRange.Offset - cursor},
			})
		}
		out = append(out, e)
		cursor = e.NewBlobRange.End()
	}

	if cursor < newBlobLength {
		out = append(out, DeltaEntry{
			Format:       prediff.FormatBSDiff,
			OldBlobRange: zipformat.Range{Offset: oldBlobLength, Length: 0},
			NewBlobRange: zipformat.Range{Offset: cursor, Length: newBlobLength - cursor},
		})
	}

	return out
}

// supportsMultiEntryDelta reports whether a format's deltas may be
// folded together into one wider diff, per spec.md §4.5 step 4. BSDIFF
// is a whole-buffer suffix-array match and tolerates an expanded old
// range; FILE_BY_FILE recurses into the generator per-entry and cannot
// be combined.
func supportsMultiEntryDelta(f prediff.DeltaFormat) bool {
	return f == prediff.FormatBSDiff
}

// CombineEntries folds adjacent entries (after FillGaps, so already
// sorted and contiguous in new-blob coordinates) whose formats are equal
// and combinable, per spec.md §4.5 step 4. A combined entry's old range
// widens to [0, oldBlobLength) — diff against the whole old blob — and
// its new range is the union of the folded entries' new ranges.
func CombineEntries(entries []DeltaEntry, oldBlobLength int64) []DeltaEntry {
	if len(entries) == 0 {
		return entries
	}

	out := make([]DeltaEntry, 0, len(entries))
	cur := entries[0]

	for _, next := range entries[1:] {
		if cur.Format == next.Format && supportsMultiEntryDelta(cur.Format) && cur.NewBlobRange.End() == next.NewBlobRange.Offset {
			cur = DeltaEntry{
				Format:       cur.Format,
				OldBlobRange: zipformat.Range{Offset: 0, Length: oldBlobLength},
				NewBlobRange: zipformat.Range{Offset: cur.NewBlobRange.Offset, Length: next.NewBlobRange.End() - cur.NewBlobRange.Offset},
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)

	return out
}
