// Package zipformat parses ZIP-family archives (ZIP, JAR, APK) over a
// random-access bytesource.Source and models the ranges the rest of the
// pipeline reasons about. It intentionally does not use archive/zip: the
// generator needs the raw local-header byte offsets and the compressed
// payload verbatim, not archive/zip's materialised, already-decoded view.
package zipformat

import "sort"

// Range is a half-open byte range [Offset, Offset+Length). Zero-length
// ranges are allowed.
type Range struct {
	Offset int64
	Length int64
}

// End returns Offset+Length.
func (r Range) End() int64 { return r.Offset + r.Length }

// Less orders ranges by offset then length.
func (r Range) Less(other Range) bool {
	if r.Offset != other.Offset {
		return r.Offset < other.Offset
	}
	return r.Length < other.Length
}

// Overlaps reports whether r and other share any byte.
func (r Range) Overlaps(other Range) bool {
	return r.Offset < other.End() && other.Offset < r.End()
}

// TypedRange is a Range carrying arbitrary metadata, used to annotate
// recompression plans with the DeflateParameters needed to restore them.
type TypedRange[M any] struct {
	Range
	Metadata M
}

// Strategy mirrors the deflate strategy knob. All three values are
// representable on the wire; divination only ever emits Default or
// HuffmanOnly (see deflateoracle).
type Strategy int

const (
	StrategyDefault     Strategy = 0
	StrategyFiltered    Strategy = 1
	StrategyHuffmanOnly Strategy = 2
)

// DeflateParameters are the only three inputs the reference deflate codec
// observes for bit-exact reproduction of a compressed stream.
type DeflateParameters struct {
	Level    int // 1..9
	Strategy Strategy
	NoWrap   bool
}

// CompressionMethod is the local/central-directory compression method,
// normalised to the three cases the generator cares about.
type CompressionMethod int

const (
	Stored CompressionMethod = iota
	Deflate
	UnknownMethod
)

func methodFromCode(code uint16) CompressionMethod {
	switch code {
	case 0:
		return Stored
	case 8:
		return Deflate
	default:
		return UnknownMethod
	}
}

// EntryKey wraps the raw (opaque) filename bytes of an entry, providing
// deep equality and a stable hash. Names are never interpreted as Go
// strings for matching purposes, only as byte sequences, since the
// archive's declared encoding (bit 11 of the general-purpose flags) may
// not agree with what the host platform considers valid UTF-8.
type EntryKey struct {
	raw string // string is used purely as an immutable, comparable, hashable byte holder
}

// NewEntryKey builds an EntryKey from raw filename bytes.
func NewEntryKey(nameBytes []byte) EntryKey {
	return EntryKey{raw: string(nameBytes)}
}

// Bytes returns the key's underlying bytes.
func (k EntryKey) Bytes() []byte { return []byte(k.raw) }

// ZipEntry is everything the rest of the pipeline needs to know about one
// local entry.
type ZipEntry struct {
	CompressionMethod   CompressionMethod
	CRC32               uint32
	UncompressedSize    int64
	FileNameBytes       []byte
	UseUTF8Encoding     bool
	LocalEntryRange     Range
	CompressedDataRange Range
}

// Key returns the EntryKey used for pairing and indexing.
func (e ZipEntry) Key() EntryKey { return NewEntryKey(e.FileNameBytes) }

// EffectiveMethod returns Stored when the entry's compressed size equals
// its uncompressed size even though it is labelled DEFLATE: some writers
// mislabel stored data as deflate, and the spec directs treating such
// entries as STORED for planning purposes (spec.md §4.1, §9 Open
// Question). This is the single place that decision is made so the rest
// of the pipeline never has to special-case it again.
func (e ZipEntry) EffectiveMethod() CompressionMethod {
	if e.CompressionMethod == Deflate && e.CompressedDataRange.Length == e.UncompressedSize {
		return Stored
	}
	return e.CompressionMethod
}

// SortByLocalOffset sorts entries in place by local-header offset,
// ascending — the file order the ZIP parser must emit per spec.md §4.1.
func SortByLocalOffset(entries []ZipEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LocalEntryRange.Offset < entries[j].LocalEntryRange.Offset
	})
}
