// Package patchio writes and reads the self-describing patch stream
// defined in spec.md §6: a sequential, single-pass, big-endian binary
// layout carrying the old-file uncompression plan, the new-file
// recompression plan, and the tiled list of delta entries with their
// delta bytes inlined.
package patchio

import "github.com/crdzbird/zipdelta/internal/zipformat"

// Magic is the patch stream's fixed 8-byte header.
const Magic = "GFbFv1_0"

// DeltaFormatCode is the wire encoding of a prediff.DeltaFormat.
type DeltaFormatCode uint8

const (
	DeltaFormatBSDiff     DeltaFormatCode = 0
	DeltaFormatFileByFile DeltaFormatCode = 1
)

// CodecDefaultDeflate is the wire encoding of a recompression range's
// codec; 0 is the only value the core emits (spec.md §6).
const CodecDefaultDeflate uint8 = 0

// UncompressionRange is one (offset, length) pair of the old-file
// uncompression plan, sorted by offset on the wire.
type UncompressionRange struct {
	Offset int64
	Length int64
}

// RecompressionRange is one (offset, length, DeflateParameters) triple of
// the new-file recompression plan, sorted by offset on the wire.
type RecompressionRange struct {
	Offset int64
	Length int64
	Params zipformat.DeflateParameters
}

// DeltaRecord is one tiled delta entry plus its computed delta bytes.
type DeltaRecord struct {
	Format        DeltaFormatCode
	OldWorkOffset int64
	OldWorkLength int64
	NewWorkOffset int64
	NewWorkLength int64
	Delta         []byte
}

// Patch is the full in-memory representation of one patch stream —
// assembled by the generator for Write, or reconstructed by Read for
// diagnostics and round-trip tests.
type Patch struct {
	Flags                uint32
	OldDeltaFriendlySize int64
	OldUncompressionPlan []UncompressionRange
	NewRecompressionPlan []RecompressionRange
	Deltas               []DeltaRecord
}
