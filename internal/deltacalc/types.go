// Package deltacalc turns a PreDiffPlan plus the two delta-friendly blobs
// into the tiled list of DeltaEntry ranges the patch writer streams out,
// and computes the actual delta bytes for each one (spec.md §4.5).
package deltacalc

import (
	"github.com/crdzbird/zipdelta/internal/prediff"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// DeltaEntry is one (format, oldRange, newRange) triple, spec.md §3: one
// delta will be computed per entry, and after fillGaps+combine,
// NewBlobRange values tile [0, len(deltaFriendlyNew)) without overlap.
type DeltaEntry struct {
	Format       prediff.DeltaFormat
	OldBlobRange zipformat.Range
	NewBlobRange zipformat.Range
}
