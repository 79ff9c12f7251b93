package prediff

import "sort"

// Modifier is a budget limiter run after the initial plan is computed; it
// receives the current entry list and returns a transformed one. Spec.md
// §9's design note: the source expresses this as dynamic dispatch over an
// interface hierarchy, but a plain function type captures the same
// contract in Go without the indirection.
type Modifier func(entries []PreDiffPlanEntry) []PreDiffPlanEntry

// demote clears an entry's uncompression flags and stamps the
// RESOURCE_CONSTRAINED explanation on both decisions, per spec.md §4.3
// "Demotions also set deltaFormat = default and deltaFormatExplanation =
// RESOURCE_CONSTRAINED."
func demote(e PreDiffPlanEntry) PreDiffPlanEntry {
	e.UncompressionOption = UncompressNeither
	e.UncompressionExplanation = ExplainResourceConstrained
	e.DeltaFormat = FormatBSDiff
	e.DeltaFormatExplanation = DeltaExplainResourceConstrained
	return e
}

// TotalRecompressionLimiter bounds the total uncompressed size of
// new-entry bytes flagged for recompression, per spec.md §4.3. Entries
// are sorted by new entry size descending and greedily retained while
// they fit; the rest are demoted. maxBytes <= 0 disables the limiter.
func TotalRecompressionLimiter(maxBytes int64) Modifier {
	return func(entries []PreDiffPlanEntry) []PreDiffPlanEntry {
		if maxBytes <= 0 {
			return entries
		}

		eligible := make([]int, 0, len(entries))
		for i, e := range entries {
			if e.UncompressNew() {
				eligible = append(eligible, i)
			}
		}
		sort.Slice(eligible, func(a, b int) bool {
			return entries[eligible[a]].NewEntry.UncompressedSize > entries[eligible[b]].NewEntry.UncompressedSize
		})

		out := make([]PreDiffPlanEntry, len(entries))
		copy(out, entries)

		var running int64
		for _, idx := range eligible {
			size := out[idx].NewEntry.UncompressedSize
			if running+size <= maxBytes {
				running += size
				continue
			}
			out[idx] = demote(out[idx])
		}
		return out
	}
}

// DeltaFriendlyOldBlobSizeLimiter bounds oldFile.length + the sum of
// (uncompressedSize - compressedLength) over entries flagged
// uncompressOld, per spec.md §4.3. oldFileLength is the size of the old
// archive as parsed (not the delta-friendly blob, which does not exist
// yet when this modifier runs).
func DeltaFriendlyOldBlobSizeLimiter(maxTotalBytes, oldFileLength int64) Modifier {
	return func(entries []PreDiffPlanEntry) []PreDiffPlanEntry {
		if maxTotalBytes <= 0 {
			return entries
		}

		eligible := make([]int, 0, len(entries))
		for i, e := range entries {
			if e.UncompressOld() {
				eligible = append(eligible, i)
			}
		}
		sort.Slice(eligible, func(a, b int) bool {
			return entries[eligible[a]].OldEntry.UncompressedSize > entries[eligible[b]].OldEntry.UncompressedSize
		})

		out := make([]PreDiffPlanEntry, len(entries))
		copy(out, entries)

		running := oldFileLength
		for _, idx := range eligible {
			extra := out[idx].OldEntry.UncompressedSize - out[idx].OldEntry.CompressedDataRange.Length
			if extra < 0 {
				extra = 0
			}
			if running+extra <= maxTotalBytes {
				running += extra
				continue
			}
			out[idx] = demote(out[idx])
		}
		return out
	}
}

// RunModifiers applies each modifier in order, per spec.md §4.3.
func RunModifiers(entries []PreDiffPlanEntry, modifiers ...Modifier) []PreDiffPlanEntry {
	for _, m := range modifiers {
		entries = m(entries)
	}
	return entries
}
