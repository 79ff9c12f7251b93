package prediff

import (
	"bytes"

	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// OracleResult is what the deflate oracle determined for one new entry.
type OracleResult struct {
	Divined bool // true iff the oracle found a reproducing DeflateParameters
	Params  zipformat.DeflateParameters
}

// FileTypeProbe answers the two predicates spec.md §4.3's FILE_BY_FILE
// rule needs about a candidate pair, without the planner itself doing
// any I/O: whether both entries' names carry an archive-like extension,
// and whether each entry's (already-inflated-if-needed) payload parses as
// a ZIP with at least one inner entry.
type FileTypeProbe struct {
	NamesLookLikeArchives bool
	BothParseAsZip        bool
}

// DecideUncompression implements spec.md §4.3's per-pair uncompression
// decision table. oldCompressed/newCompressed are the raw compressed
// payload bytes of each side (used only for the byte-identical check);
// oracle is the new entry's divination result, required whenever the new
// entry is DEFLATE.
func DecideUncompression(p Pair, oracle OracleResult, oldCompressed, newCompressed []byte) (UncompressionOption, UncompressionExplanation) {
	oldMethod := p.OldEntry.EffectiveMethod()
	newMethod := p.NewEntry.EffectiveMethod()

	// Rule 1: new is DEFLATE but the oracle could not divine it.
	if newMethod == zipformat.Deflate && !oracle.Divined {
		return UncompressNeither, ExplainDeflateUnsuitable
	}
	// Rule 2: either side uses an unknown method.
	if oldMethod == zipformat.UnknownMethod || newMethod == zipformat.UnknownMethod {
		return UncompressNeither, ExplainUnsuitable
	}
	// Rule 3: both STORED.
	if oldMethod == zipformat.Stored && newMethod == zipformat.Stored {
		return UncompressNeither, ExplainBothUncompressed
	}
	// Rule 4: old STORED, new non-STORED.
	if oldMethod == zipformat.Stored && newMethod != zipformat.Stored {
		return UncompressNew, ExplainUncompressedToCompressed
	}
	// Rule 5: old non-STORED, new STORED.
	if oldMethod != zipformat.Stored && newMethod == zipformat.Stored {
		return UncompressOld, ExplainCompressedToUncompressed
	}
	// Rule 6: byte-identical compressed payloads.
	if len(oldCompressed) == len(newCompressed) && bytes.Equal(oldCompressed, newCompressed) {
		return UncompressNeither, ExplainCompressedBytesIdentical
	}
	// Rule 7: otherwise.
	return UncompressBoth, ExplainCompressedBytesChanged
}

// DecideDeltaFormat implements spec.md §4.3's per-pair delta-format
// decision. uncompressExplanation is the explanation DecideUncompression
// just returned; crcMatches reports whether the pair's CRC32 of
// uncompressed data is equal; supportsFileByFile reports whether the
// caller's Options.SupportedDeltaFormats includes FILE_BY_FILE.
func DecideDeltaFormat(uncompressExplanation UncompressionExplanation, crcMatches bool, supportsFileByFile bool, probe FileTypeProbe) (DeltaFormat, DeltaFormatExplanation) {
	switch uncompressExplanation {
	case ExplainUnsuitable:
		return FormatBSDiff, DeltaExplainUnsuitable
	case ExplainDeflateUnsuitable:
		return FormatBSDiff, DeltaExplainDeflateUnsuitable
	}

	if crcMatches {
		return FormatBSDiff, DeltaExplainUnchanged
	}

	if supportsFileByFile && probe.NamesLookLikeArchives && probe.BothParseAsZip {
		return FormatFileByFile, DeltaExplainFileType
	}

	return FormatBSDiff, DeltaExplainDefault
}
