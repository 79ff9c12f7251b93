package deltacalc

import (
	"context"

	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zdstat"
)

// ComputeDelta produces the delta bytes for one DeltaEntry, slicing
// oldBlob/newBlob by the entry's already-projected ranges. FILE_BY_FILE
// entries are not handled here — the orchestrator recurses into Generate
// for those (spec.md §4.5, "invoke the generator again on the inner
// archives") and supplies the resulting patch bytes directly.
func ComputeDelta(ctx context.Context, e DeltaEntry, oldBlob, newBlob []byte, useNativeBsdiff bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, zdstat.Interruptedf("deltacalc.ComputeDelta")
	}
	switch e.Format {
	case prediff.FormatBSDiff:
		old := sliceRange(oldBlob, e.OldBlobRange.Offset, e.OldBlobRange.Length)
		new := sliceRange(newBlob, e.NewBlobRange.Offset, e.NewBlobRange.Length)
		return ComputeBSDiffPayload(old, new, useNativeBsdiff)
	default:
		return nil, zdstat.Invariantf("deltacalc.ComputeDelta: format %v is not computed directly; caller must recurse", e.Format)
	}
}

func sliceRange(blob []byte, offset, length int64) []byte {
	if length == 0 {
		return nil
	}
	return blob[offset : offset+length]
}
