// Package zipdelta generates small, byte-identical-on-reconstruction
// binary patches between two ZIP-family archives (ZIP, JAR, APK) by
// exploiting reproducible deflate compression: inflate what was
// deterministically compressed, diff the plaintext, and record enough to
// recompress it back on the applying side.
package zipdelta

import (
	"github.com/rs/zerolog"

	"github.com/crdzbird/zipdelta/internal/prediff"
)

// DeltaFormat mirrors prediff.DeltaFormat at the public API boundary, so
// callers configuring Options.SupportedDeltaFormats never need to import
// an internal package.
type DeltaFormat = prediff.DeltaFormat

const (
	FormatBSDiff     = prediff.FormatBSDiff
	FormatFileByFile = prediff.FormatFileByFile
)

// Options configures one Generate call, mirroring spec.md §6's
// generate(old, new, out, opts) surface.
type Options struct {
	// SupportedDeltaFormats restricts which delta formats the planner may
	// choose. A nil map is treated as {BSDIFF, FILE_BY_FILE} (both
	// enabled); FILE_BY_FILE recursion always restricts its own inner
	// call to {BSDIFF} regardless of this setting (spec.md §4.5).
	SupportedDeltaFormats map[DeltaFormat]bool

	// TotalRecompressionLimit caps the total uncompressed bytes of new
	// entries the planner may flag for recompression (spec.md §4.3). Zero
	// disables the limiter.
	TotalRecompressionLimit int64

	// DeltaFriendlyOldBlobSizeLimit caps oldFile.length plus the summed
	// uncompress-old "extra" bytes (spec.md §4.3). Zero disables the
	// limiter.
	DeltaFriendlyOldBlobSizeLimit int64

	// UseNativeBsdiff selects the unpackaged BSDIFF4 byte layout
	// (bzip2-compressed control/diff/extra streams, compatible with any
	// bsdiff4 reader) instead of this module's xz/zstd-repackaged
	// payload. The wire-visible deltaFormat tag is unaffected either way;
	// this only changes what is inside the delta byte range.
	UseNativeBsdiff bool

	// TempSpillThresholdBytes bounds how much of each delta-friendly blob
	// is held in memory before spilling to a temp file (spec.md §5).
	// Zero uses the package default (5 MiB).
	TempSpillThresholdBytes int64

	// TempDir overrides where spill files are created; empty uses
	// os.TempDir().
	TempDir string

	// EncryptScratch enables at-rest AES-CTR encryption of spilled
	// scratch bytes, keyed by a random per-blob key (SPEC_FULL.md §5.1).
	// It never affects the wire format or round-trip correctness.
	EncryptScratch bool

	// CompressScratch lz4-frames spilled scratch bytes before they hit
	// disk (SPEC_FULL.md §5.1) to shrink the spill footprint of
	// deflate-friendly archive content. Independent of EncryptScratch;
	// when both are set, compression runs first.
	CompressScratch bool

	// SealKey and SealPepper, when both non-empty, wrap the finished
	// patch in an encrypted, compressed container (internal/patchseal)
	// before it is written to Generate's out — for publishers who ship
	// patches over a channel they don't otherwise control the
	// confidentiality of. Leaving either empty writes the plain patch
	// wire format (spec.md §6) with no sealing.
	SealKey    string
	SealPepper string

	// Logger receives one structured event per pipeline stage boundary.
	// A nil Logger disables logging.
	Logger *zerolog.Logger
}

// DefaultOptions returns the generator's default configuration: both
// delta formats enabled, no resource limits, upstream-compatible bsdiff
// framing disabled (our xz/zstd repackaging is the default), no
// encryption, and a nil logger.
func DefaultOptions() Options {
	return Options{
		SupportedDeltaFormats: map[DeltaFormat]bool{
			FormatBSDiff:     true,
			FormatFileByFile: true,
		},
	}
}

func (o Options) supportsFileByFile() bool {
	if o.SupportedDeltaFormats == nil {
		return true
	}
	return o.SupportedDeltaFormats[FormatFileByFile]
}

func (o Options) log() *zerolog.Logger {
	return o.Logger
}

func (o Options) sealed() bool {
	return o.SealKey != "" && o.SealPepper != ""
}

// Stats summarises one Generate call for observability — entry counts,
// demotions, and bytes written — logged via Options.Logger at each stage
// boundary and also returned directly (spec.md §4.7).
type Stats struct {
	OldEntryCount int
	NewEntryCount int
	MatchedPairs  int

	UncompressedOldRanges int
	UncompressedNewRanges int

	RecompressionDemotions int

	DeltaEntryCount int
	PatchBytes      int64
}
