// Package prediff pairs entries across old and new archives and decides,
// per pair, whether to uncompress each side and which delta format to
// use, subject to global resource budgets enforced by a chain of
// modifiers (spec.md §4.3).
package prediff

import (
	"sort"

	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// UncompressionOption mirrors spec.md §3's PreDiffPlanEntry.uncompressionOption.
type UncompressionOption int

const (
	UncompressNeither UncompressionOption = iota
	UncompressOld
	UncompressNew
	UncompressBoth
)

// UncompressionExplanation is the reason the planner picked a given
// UncompressionOption.
type UncompressionExplanation int

const (
	ExplainUnsuitable UncompressionExplanation = iota
	ExplainDeflateUnsuitable
	ExplainBothUncompressed
	ExplainUncompressedToCompressed
	ExplainCompressedToUncompressed
	ExplainCompressedBytesIdentical
	ExplainCompressedBytesChanged
	ExplainResourceConstrained
)

// DeltaFormat is the delta algorithm chosen for one pair.
type DeltaFormat int

const (
	FormatBSDiff DeltaFormat = iota
	FormatFileByFile
)

// DeltaFormatExplanation is the reason a DeltaFormat was chosen.
type DeltaFormatExplanation int

const (
	DeltaExplainDefault DeltaFormatExplanation = iota
	DeltaExplainFileType
	DeltaExplainUnchanged
	DeltaExplainUnsuitable
	DeltaExplainDeflateUnsuitable
	DeltaExplainResourceConstrained
)

// PreDiffPlanEntry is the per-pair decision record, spec.md §3.
type PreDiffPlanEntry struct {
	OldEntry zipformat.ZipEntry
	NewEntry zipformat.ZipEntry

	UncompressionOption      UncompressionOption
	UncompressionExplanation UncompressionExplanation

	DeltaFormat            DeltaFormat
	DeltaFormatExplanation DeltaFormatExplanation
}

// UncompressOld reports whether the old entry should be inflated for
// diffing.
func (e PreDiffPlanEntry) UncompressOld() bool {
	return e.UncompressionOption == UncompressOld || e.UncompressionOption == UncompressBoth
}

// UncompressNew reports whether the new entry should be inflated for
// diffing.
func (e PreDiffPlanEntry) UncompressNew() bool {
	return e.UncompressionOption == UncompressNew || e.UncompressionOption == UncompressBoth
}

// PreDiffPlan is the whole output of the planner, spec.md §3.
type PreDiffPlan struct {
	OldFileUncompressionPlan              []zipformat.Range
	NewFileUncompressionPlan              []zipformat.TypedRange[zipformat.DeflateParameters]
	DeltaFriendlyNewFileRecompressionPlan []zipformat.TypedRange[zipformat.DeflateParameters]
	Entries                               []PreDiffPlanEntry
}

// Assemble projects the retained uncompress-old/new ranges into ordered,
// disjoint plans, per spec.md §4.3 "Assembly of plans". newParams
// supplies, for each new entry flagged for uncompression, the
// DeflateParameters the oracle divined for it (required — an entry can
// only be flagged UncompressNew if the oracle succeeded).
func Assemble(entries []PreDiffPlanEntry, newParams map[zipformat.EntryKey]zipformat.DeflateParameters) (PreDiffPlan, error) {
	plan := PreDiffPlan{Entries: entries}

	uncompressedSizeByOffset := make(map[int64]int64)
	for _, e := range entries {
		if e.UncompressOld() {
			plan.OldFileUncompressionPlan = append(plan.OldFileUncompressionPlan, e.OldEntry.CompressedDataRange)
		}
		if e.UncompressNew() {
			params := newParams[e.NewEntry.Key()]
			plan.NewFileUncompressionPlan = append(plan.NewFileUncompressionPlan, zipformat.TypedRange[zipformat.DeflateParameters]{
				Range:    e.NewEntry.CompressedDataRange,
				Metadata: params,
			})
			uncompressedSizeByOffset[e.NewEntry.CompressedDataRange.Offset] = e.NewEntry.UncompressedSize
		}
	}

	sort.Slice(plan.OldFileUncompressionPlan, func(i, j int) bool {
		return plan.OldFileUncompressionPlan[i].Less(plan.OldFileUncompressionPlan[j])
	})
	sort.Slice(plan.NewFileUncompressionPlan, func(i, j int) bool {
		return plan.NewFileUncompressionPlan[i].Less(plan.NewFileUncompressionPlan[j].Range)
	})

	if err := checkDisjointOrdered(rangesOf(plan.OldFileUncompressionPlan)); err != nil {
		return PreDiffPlan{}, err
	}
	if err := checkDisjointOrdered(typedRangesOf(plan.NewFileUncompressionPlan)); err != nil {
		return PreDiffPlan{}, err
	}

	// The recompression plan is the inverse projection of the new
	// uncompression plan onto the delta-friendly new blob (spec.md §3):
	// every inflated range before a given one shifts it by that range's
	// (uncompressedSize - compressedLength).
	var extra int64
	for _, tr := range plan.NewFileUncompressionPlan {
		size := uncompressedSizeByOffset[tr.Offset]
		plan.DeltaFriendlyNewFileRecompressionPlan = append(plan.DeltaFriendlyNewFileRecompressionPlan, zipformat.TypedRange[zipformat.DeflateParameters]{
			Range:    zipformat.Range{Offset: tr.Offset + extra, Length: size},
			Metadata: tr.Metadata,
		})
		extra += size - tr.Length
	}

	return plan, nil
}

func rangesOf(rs []zipformat.Range) []zipformat.Range { return rs }

func typedRangesOf(trs []zipformat.TypedRange[zipformat.DeflateParameters]) []zipformat.Range {
	out := make([]zipformat.Range, len(trs))
	for i, tr := range trs {
		out[i] = tr.Range
	}
	return out
}
