package prediff

import (
	"context"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// PlanInputs bundles what BuildEntries needs beyond the pairing itself:
// access to both archives' raw bytes for the byte-identical check, the
// oracle's per-new-entry divination results, and the FILE_BY_FILE
// eligibility probe (spec.md §4.3's "names look like archives and both
// parse as ZIP" predicate), which requires reading payload bytes the
// planner itself has no business doing directly.
type PlanInputs struct {
	OldSource bytesource.Source
	NewSource bytesource.Source

	// Oracle holds the oracle's result for each new DEFLATE entry, keyed
	// by EntryKey, whether or not divination succeeded; a missing key
	// reads as not divined.
	Oracle map[zipformat.EntryKey]OracleResult

	SupportsFileByFile bool

	// Probe is called only for pairs that reach the FILE_BY_FILE branch
	// of DecideDeltaFormat's cascade; nil disables FILE_BY_FILE entirely.
	Probe func(ctx context.Context, p Pair) (FileTypeProbe, error)
}

// BuildEntries pairs old and new entries (spec.md §4.3 step "pairing"),
// then runs the per-pair uncompression and delta-format decisions for
// every matched pair. An unmatched new entry yields no plan entry — its
// bytes are covered later as a gap by the delta computer (spec.md §4.3
// step 3, §4.5 step 3).
func BuildEntries(ctx context.Context, oldEntries, newEntries []zipformat.ZipEntry, in PlanInputs) ([]PreDiffPlanEntry, error) {
	pairs := PairEntries(oldEntries, newEntries)
	out := make([]PreDiffPlanEntry, 0, len(pairs))

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, zdstat.Interruptedf("prediff.BuildEntries")
		}
		if !p.Matched {
			continue
		}

		oldCompressed, err := in.OldSource.Slice(ctx, p.OldEntry.CompressedDataRange.Offset, p.OldEntry.CompressedDataRange.Length)
		if err != nil {
			return nil, err
		}
		newCompressed, err := in.NewSource.Slice(ctx, p.NewEntry.CompressedDataRange.Offset, p.NewEntry.CompressedDataRange.Length)
		if err != nil {
			return nil, err
		}

		oracle := in.Oracle[p.NewEntry.Key()]
		uOpt, uExpl := DecideUncompression(p, oracle, oldCompressed, newCompressed)

		crcMatches := p.OldEntry.CRC32 == p.NewEntry.CRC32 && p.OldEntry.UncompressedSize == p.NewEntry.UncompressedSize

		var probe FileTypeProbe
		if in.Probe != nil && in.SupportsFileByFile && uExpl != ExplainUnsuitable && uExpl != ExplainDeflateUnsuitable && !crcMatches {
			probe, err = in.Probe(ctx, p)
			if err != nil {
				return nil, err
			}
		}

		dFormat, dExpl := DecideDeltaFormat(uExpl, crcMatches, in.SupportsFileByFile, probe)

		out = append(out, PreDiffPlanEntry{
			OldEntry: p.OldEntry,
			NewEntry: p.NewEntry,

			UncompressionOption:      uOpt,
			UncompressionExplanation: uExpl,

			DeltaFormat:            dFormat,
			DeltaFormatExplanation: dExpl,
		})
	}

	return out, nil
}
