package zipdelta

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/crdzbird/zipdelta/internal/blobbuilder"
	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/deflateoracle"
	"github.com/crdzbird/zipdelta/internal/deltacalc"
	"github.com/crdzbird/zipdelta/internal/patchio"
	"github.com/crdzbird/zipdelta/internal/patchseal"
	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/scratch"
	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// Generate composes the full pipeline described in spec.md §4.7: parse
// both archives, run the deflate oracle over every new DEFLATE entry,
// plan per-pair uncompression and delta-format decisions, apply the
// resource-budget modifiers, materialise the two delta-friendly blobs,
// derive and tile delta entries, and stream the result to out in the
// wire format defined in spec.md §6.
func Generate(ctx context.Context, old, new bytesource.Source, out io.Writer, opts Options) (Stats, error) {
	var stats Stats
	log := opts.log()

	oldEntries, err := zipformat.Parse(ctx, old)
	if err != nil {
		return stats, err
	}
	newEntries, err := zipformat.Parse(ctx, new)
	if err != nil {
		return stats, err
	}
	stats.OldEntryCount = len(oldEntries)
	stats.NewEntryCount = len(newEntries)
	if log != nil {
		log.Debug().Int("old_entries", len(oldEntries)).Int("new_entries", len(newEntries)).Msg("zipdelta: parsed archives")
	}

	oracleResults, newParams, err := runOracle(ctx, new, newEntries)
	if err != nil {
		return stats, err
	}
	if log != nil {
		log.Debug().Int("divined", len(newParams)).Msg("zipdelta: oracle pass complete")
	}

	planEntries, err := prediff.BuildEntries(ctx, oldEntries, newEntries, prediff.PlanInputs{
		OldSource:          old,
		NewSource:          new,
		Oracle:             oracleResults,
		SupportsFileByFile: opts.supportsFileByFile(),
		Probe:              buildProbe(old, new),
	})
	if err != nil {
		return stats, err
	}
	stats.MatchedPairs = len(planEntries)

	planEntries = prediff.RunModifiers(planEntries,
		prediff.TotalRecompressionLimiter(opts.TotalRecompressionLimit),
		prediff.DeltaFriendlyOldBlobSizeLimiter(opts.DeltaFriendlyOldBlobSizeLimit, old.Len()),
	)
	for _, e := range planEntries {
		if e.UncompressionExplanation == prediff.ExplainResourceConstrained {
			stats.RecompressionDemotions++
		}
	}

	plan, err := prediff.Assemble(planEntries, newParams)
	if err != nil {
		return stats, err
	}
	stats.UncompressedOldRanges = len(plan.OldFileUncompressionPlan)
	stats.UncompressedNewRanges = len(plan.NewFileUncompressionPlan)
	if log != nil {
		log.Debug().Int("old_ranges", stats.UncompressedOldRanges).Int("new_ranges", stats.UncompressedNewRanges).Msg("zipdelta: plan assembled")
	}

	scratchOpts := scratch.Options{
		ThresholdBytes: opts.TempSpillThresholdBytes,
		TempDir:        opts.TempDir,
		Encrypt:        opts.EncryptScratch,
		Compress:       opts.CompressScratch,
	}

	oldBlob := scratch.New(scratchOpts)
	defer oldBlob.Close()
	if err := blobbuilder.BuildOld(ctx, old, plan.OldFileUncompressionPlan, oldBlob); err != nil {
		return stats, err
	}

	newBlob := scratch.New(scratchOpts)
	defer newBlob.Close()
	buildResult, err := blobbuilder.BuildNew(ctx, new, plan.NewFileUncompressionPlan, newBlob)
	if err != nil {
		return stats, err
	}

	oldBlobBytes, err := oldBlob.Bytes(ctx)
	if err != nil {
		return stats, err
	}
	newBlobBytes, err := newBlob.Bytes(ctx)
	if err != nil {
		return stats, err
	}
	if log != nil {
		log.Debug().Int("old_blob_bytes", len(oldBlobBytes)).Int("new_blob_bytes", len(newBlobBytes)).Msg("zipdelta: delta-friendly blobs built")
	}

	oldUncompressed, newUncompressed := deltacalc.BuildUncompressedSets(plan.Entries)
	oldProjected := deltacalc.ProjectPayloadRanges(oldEntries, oldUncompressed)
	newProjected := deltacalc.ProjectPayloadRanges(newEntries, newUncompressed)

	rawDeltaEntries := deltacalc.BuildRawEntries(plan.Entries, oldProjected, newProjected)
	filled := deltacalc.FillGaps(rawDeltaEntries, int64(len(newBlobBytes)), int64(len(oldBlobBytes)))
	combined := deltacalc.CombineEntries(filled, int64(len(oldBlobBytes)))
	stats.DeltaEntryCount = len(combined)

	deltaRecords := make([]patchio.DeltaRecord, 0, len(combined))
	for _, e := range combined {
		if err := ctx.Err(); err != nil {
			return stats, zdstat.Interruptedf("zipdelta.Generate")
		}
		deltaBytes, format, err := computeOneDelta(ctx, e, oldBlobBytes, newBlobBytes, opts)
		if err != nil {
			return stats, err
		}
		deltaRecords = append(deltaRecords, patchio.DeltaRecord{
			Format:        format,
			OldWorkOffset: e.OldBlobRange.Offset,
			OldWorkLength: e.OldBlobRange.Length,
			NewWorkOffset: e.NewBlobRange.Offset,
			NewWorkLength: e.NewBlobRange.Length,
			Delta:         deltaBytes,
		})
	}

	recompressionPlan := make([]patchio.RecompressionRange, 0, len(buildResult.RecompressionPlan))
	for _, tr := range buildResult.RecompressionPlan {
		recompressionPlan = append(recompressionPlan, patchio.DeflateParamsFromRange(tr))
	}
	uncompressionPlan := make([]patchio.UncompressionRange, 0, len(plan.OldFileUncompressionPlan))
	for _, r := range plan.OldFileUncompressionPlan {
		uncompressionPlan = append(uncompressionPlan, patchio.UncompressionRange{Offset: r.Offset, Length: r.Length})
	}

	patch := patchio.Patch{
		Flags:                0,
		OldDeltaFriendlySize: int64(len(oldBlobBytes)),
		OldUncompressionPlan: uncompressionPlan,
		NewRecompressionPlan: recompressionPlan,
		Deltas:               deltaRecords,
	}

	if opts.sealed() {
		var buf bytes.Buffer
		if err := patchio.Write(&buf, patch); err != nil {
			return stats, err
		}
		sealed, err := patchseal.Seal(buf.Bytes(), opts.SealKey, opts.SealPepper)
		if err != nil {
			return stats, zdstat.Wrapf(err, "zipdelta.Generate: sealing patch")
		}
		n, err := out.Write(sealed)
		if err != nil {
			return stats, zdstat.Wrapf(err, "zipdelta.Generate: writing sealed patch")
		}
		stats.PatchBytes = int64(n)
		if log != nil {
			log.Info().Int64("patch_bytes", stats.PatchBytes).Int("deltas", stats.DeltaEntryCount).Bool("sealed", true).Msg("zipdelta: generate complete")
		}
		return stats, nil
	}

	var counted countingWriter
	mw := io.MultiWriter(out, &counted)
	if err := patchio.Write(mw, patch); err != nil {
		return stats, err
	}
	stats.PatchBytes = counted.n
	if log != nil {
		log.Info().Int64("patch_bytes", stats.PatchBytes).Int("deltas", stats.DeltaEntryCount).Msg("zipdelta: generate complete")
	}

	return stats, nil
}

// computeOneDelta dispatches one DeltaEntry to either the in-process
// bsdiff computer or, for FILE_BY_FILE entries, a recursive Generate call
// over the entry's inflated inner-archive bytes (spec.md §4.5).
func computeOneDelta(ctx context.Context, e deltacalc.DeltaEntry, oldBlob, newBlob []byte, opts Options) ([]byte, patchio.DeltaFormatCode, error) {
	switch e.Format {
	case prediff.FormatFileByFile:
		oldInner := sliceRange(oldBlob, e.OldBlobRange)
		newInner := sliceRange(newBlob, e.NewBlobRange)

		var inner bytes.Buffer
		innerOpts := Options{
			SupportedDeltaFormats:   map[DeltaFormat]bool{FormatBSDiff: true},
			UseNativeBsdiff:         opts.UseNativeBsdiff,
			TempSpillThresholdBytes: opts.TempSpillThresholdBytes,
			TempDir:                 opts.TempDir,
			EncryptScratch:          opts.EncryptScratch,
			CompressScratch:         opts.CompressScratch,
			Logger:                  opts.Logger,
		}
		if _, err := Generate(ctx, bytesource.NewMemorySource(oldInner), bytesource.NewMemorySource(newInner), &inner, innerOpts); err != nil {
			return nil, 0, zdstat.Wrapf(err, "zipdelta: recursive FILE_BY_FILE generate")
		}
		return inner.Bytes(), patchio.DeltaFormatFileByFile, nil

	default:
		deltaBytes, err := deltacalc.ComputeDelta(ctx, e, oldBlob, newBlob, opts.UseNativeBsdiff)
		if err != nil {
			return nil, 0, err
		}
		return deltaBytes, patchio.DeltaFormatBSDiff, nil
	}
}

func sliceRange(blob []byte, r zipformat.Range) []byte {
	if r.Length == 0 {
		return nil
	}
	return blob[r.Offset : r.Offset+r.Length]
}

// runOracle divines DeflateParameters for every new entry whose effective
// method is DEFLATE, per spec.md §4.7 step 2.
func runOracle(ctx context.Context, new bytesource.Source, newEntries []zipformat.ZipEntry) (map[zipformat.EntryKey]prediff.OracleResult, map[zipformat.EntryKey]zipformat.DeflateParameters, error) {
	oracleResults := make(map[zipformat.EntryKey]prediff.OracleResult, len(newEntries))
	newParams := make(map[zipformat.EntryKey]zipformat.DeflateParameters)

	for _, e := range newEntries {
		if e.EffectiveMethod() != zipformat.Deflate {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, zdstat.Interruptedf("zipdelta.runOracle")
		}
		params, divined, err := deflateoracle.Divine(ctx, new, e.CompressedDataRange)
		if err != nil {
			return nil, nil, err
		}
		oracleResults[e.Key()] = prediff.OracleResult{Divined: divined, Params: params}
		if divined {
			newParams[e.Key()] = params
		}
	}

	return oracleResults, newParams, nil
}

// archiveNameSuffixes are the extensions buildProbe treats as "looks like
// an archive" for the FILE_BY_FILE eligibility check — exactly the
// .zip|.apk|.jar set spec.md §4.3's decision table authorizes.
var archiveNameSuffixes = []string{".zip", ".jar", ".apk"}

func looksLikeArchiveName(nameBytes []byte) bool {
	name := strings.ToLower(string(nameBytes))
	for _, suffix := range archiveNameSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// buildProbe returns the FILE_BY_FILE eligibility probe BuildEntries
// calls for pairs that otherwise qualify: it inflates each side's payload
// (ZIP local entries are always raw deflate, regardless of the oracle's
// divined nowrap setting) and checks whether both parse as a ZIP archive
// with at least one entry.
func buildProbe(oldSrc, newSrc bytesource.Source) func(ctx context.Context, p prediff.Pair) (prediff.FileTypeProbe, error) {
	return func(ctx context.Context, p prediff.Pair) (prediff.FileTypeProbe, error) {
		if !looksLikeArchiveName(p.OldEntry.FileNameBytes) || !looksLikeArchiveName(p.NewEntry.FileNameBytes) {
			return prediff.FileTypeProbe{}, nil
		}

		oldPayload, ok := inflateEntryPayload(ctx, oldSrc, p.OldEntry)
		if !ok {
			return prediff.FileTypeProbe{NamesLookLikeArchives: true}, nil
		}
		newPayload, ok := inflateEntryPayload(ctx, newSrc, p.NewEntry)
		if !ok {
			return prediff.FileTypeProbe{NamesLookLikeArchives: true}, nil
		}

		return prediff.FileTypeProbe{
			NamesLookLikeArchives: true,
			BothParseAsZip:        parsesAsZip(ctx, oldPayload) && parsesAsZip(ctx, newPayload),
		}, nil
	}
}

func inflateEntryPayload(ctx context.Context, src bytesource.Source, e zipformat.ZipEntry) ([]byte, bool) {
	raw, err := src.Slice(ctx, e.CompressedDataRange.Offset, e.CompressedDataRange.Length)
	if err != nil {
		return nil, false
	}
	if e.EffectiveMethod() == zipformat.Stored {
		return raw, true
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, false
	}
	return out, true
}

func parsesAsZip(ctx context.Context, payload []byte) bool {
	src := bytesource.NewMemorySource(payload)
	entries, err := zipformat.Parse(ctx, src)
	return err == nil && len(entries) > 0
}

// countingWriter counts bytes written through it, used to report
// Stats.PatchBytes without buffering the whole patch in memory.
type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
