// Package blobbuilder materialises the two "delta-friendly" blobs
// described in spec.md §4.4: for one input file and one uncompression
// plan, it emits a new blob where each planned range's compressed
// payload is replaced by its inflated bytes, copying everything else
// verbatim. For the new file it simultaneously records the inverse
// (recompression) plan.
package blobbuilder

import (
	"context"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/scratch"
	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// BuildOld writes the old file's delta-friendly blob: every range in plan
// is replaced by its inflated bytes; everything else is copied verbatim.
// plan must be sorted by offset with disjoint ranges (spec.md §3).
func BuildOld(ctx context.Context, src bytesource.Source, plan []zipformat.Range, out *scratch.Blob) error {
	w, err := out.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	var cursor int64
	for _, r := range plan {
		if err := ctx.Err(); err != nil {
			return zdstat.Interruptedf("blobbuilder.BuildOld")
		}
		if r.Offset < cursor {
			return zdstat.Invariantf("blobbuilder.BuildOld: uncompression plan out of order at offset %d (cursor %d)", r.Offset, cursor)
		}
		if err := copyVerbatim(ctx, src, w, cursor, r.Offset-cursor); err != nil {
			return err
		}
		if err := inflateRange(ctx, src, w, r); err != nil {
			return err
		}
		cursor = r.End()
	}
	return copyVerbatim(ctx, src, w, cursor, src.Len()-cursor)
}

// NewBuildResult is BuildNew's result alongside the delta-friendly new
// blob it writes into out: the recompression plan needed to restore the
// blob, produced in lock-step per spec.md §5.
type NewBuildResult struct {
	RecompressionPlan []zipformat.TypedRange[zipformat.DeflateParameters]
}

// BuildNew writes the new file's delta-friendly blob and records, for
// each inflated range, the offset within the *output* blob where the
// inflated bytes begin and the DeflateParameters needed to recompress
// them, per spec.md §4.4: "Each emitted recompression range's offset
// equals the position in the output blob at which inflated bytes began;
// its length equals uncompressedSize."
func BuildNew(ctx context.Context, src bytesource.Source, plan []zipformat.TypedRange[zipformat.DeflateParameters], out *scratch.Blob) (NewBuildResult, error) {
	w, err := out.Writer()
	if err != nil {
		return NewBuildResult{}, err
	}
	defer w.Close()

	result := NewBuildResult{RecompressionPlan: make([]zipformat.TypedRange[zipformat.DeflateParameters], 0, len(plan))}

	var cursor int64
	var written int64
	for _, r := range plan {
		if err := ctx.Err(); err != nil {
			return NewBuildResult{}, zdstat.Interruptedf("blobbuilder.BuildNew")
		}
		if r.Offset < cursor {
			return NewBuildResult{}, zdstat.Invariantf("blobbuilder.BuildNew: uncompression plan out of order at offset %d (cursor %d)", r.Offset, cursor)
		}
		verbatimLen := r.Offset - cursor
		if err := copyVerbatim(ctx, src, w, cursor, verbatimLen); err != nil {
			return NewBuildResult{}, err
		}
		written += verbatimLen

		inflatedStart := written
		n, err := inflateRangeCounted(ctx, src, w, r.Range)
		if err != nil {
			return NewBuildResult{}, err
		}
		written += n

		result.RecompressionPlan = append(result.RecompressionPlan, zipformat.TypedRange[zipformat.DeflateParameters]{
			Range:    zipformat.Range{Offset: inflatedStart, Length: n},
			Metadata: r.Metadata,
		})

		cursor = r.End()
	}
	tailLen := src.Len() - cursor
	if err := copyVerbatim(ctx, src, w, cursor, tailLen); err != nil {
		return NewBuildResult{}, err
	}

	return result, nil
}

func copyVerbatim(ctx context.Context, src bytesource.Source, w io.Writer, offset, length int64) error {
	if length == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return zdstat.Interruptedf("blobbuilder.copyVerbatim")
	}
	r, err := src.OpenStream(ctx, offset, length)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return zdstat.Wrapf(err, "blobbuilder.copyVerbatim")
	}
	return nil
}

func inflateRange(ctx context.Context, src bytesource.Source, w io.Writer, r zipformat.Range) error {
	_, err := inflateRangeCounted(ctx, src, w, r)
	return err
}

// inflateRangeCounted streams the inflated bytes of r (a compressed
// payload range in src) to w and returns how many bytes it wrote.
func inflateRangeCounted(ctx context.Context, src bytesource.Source, w io.Writer, r zipformat.Range) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, zdstat.Interruptedf("blobbuilder.inflateRange")
	}
	stream, err := src.OpenStream(ctx, r.Offset, r.Length)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	fr := flate.NewReader(stream)
	defer fr.Close()
	n, err := io.Copy(w, fr)
	if err != nil {
		return 0, zdstat.Wrapf(err, "blobbuilder.inflateRange")
	}
	return n, nil
}
