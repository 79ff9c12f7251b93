package prediff

import (
	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// checkDisjointOrdered verifies the Testable Property 1 invariant: ranges
// sorted by offset with no overlap. rs must already be sorted.
func checkDisjointOrdered(rs []zipformat.Range) error {
	for i := 1; i < len(rs); i++ {
		if rs[i].Offset < rs[i-1].Offset {
			return zdstat.Invariantf("prediff: plan out of order at index %d (%d < %d)", i, rs[i].Offset, rs[i-1].Offset)
		}
		if rs[i-1].Overlaps(rs[i]) {
			return zdstat.Invariantf("prediff: overlapping ranges at index %d: [%d,%d) and [%d,%d)", i, rs[i-1].Offset, rs[i-1].End(), rs[i].Offset, rs[i].End())
		}
	}
	return nil
}
