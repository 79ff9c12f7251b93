// Package deflateoracle recovers the (level, strategy, nowrap) tuple that
// reproduces a given deflate-compressed byte stream bit-exactly, by trial
// recompression against github.com/klauspost/compress/flate — the deflate
// implementation this module treats as its reference compatibility
// window on both the generating and applying side.
//
// nowrap mirrors java.util.zip.Deflater's constructor argument of the
// same name: true means raw deflate (no header, no trailer — what every
// ZIP local entry actually contains), false means the stream carries a
// 2-byte zlib header and a trailing 4-byte Adler-32 checksum. ZIP entries
// are always raw, but the oracle still walks both settings because
// DeflateParameters is meant to describe any deflate-compatible stream,
// not just ones living inside a ZIP payload (spec.md §4.2).
package deflateoracle

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/adler32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// smallEntryThreshold is the 100 KiB small-entry size from spec.md
// §4.2's "resource hygiene" note. Divine reads every entry's compressed
// bytes into memory once, whatever its size, so no code path branches on
// this value.
const smallEntryThreshold = 100 * 1024

// divinationOrder enumerates candidates in empirical frequency order:
// the first one that reproduces the bytes wins. Levels under the default
// strategy are probed as [6, 9, 1, 4, 2, 3, 5, 7, 8]; the huffman-only
// strategy ignores its level and is probed once.
//
// The filtered strategy (1) is representable in DeflateParameters and on
// the wire, but never emitted by divination: the reference codec exposes
// default and huffman-only entropy modes, not zlib's filtered match
// heuristic, so no stream inside this compatibility window carries it.
// Streams whose encoder used a filtered strategy fall out as
// undivinable and the planner leaves them compressed.
var divinationOrder = buildDivinationOrder()

func buildDivinationOrder() []zipformat.DeflateParameters {
	var out []zipformat.DeflateParameters
	for _, level := range []int{6, 9, 1, 4, 2, 3, 5, 7, 8} {
		out = append(out, zipformat.DeflateParameters{Level: level, Strategy: zipformat.StrategyDefault})
	}
	out = append(out, zipformat.DeflateParameters{Level: 1, Strategy: zipformat.StrategyHuffmanOnly})
	return out
}

// effectiveFlateLevel maps DeflateParameters onto the single level knob
// the reference codec's writer constructor takes: huffman-only is the
// codec's dedicated negative level, everything else passes the level
// through.
func effectiveFlateLevel(params zipformat.DeflateParameters) int {
	if params.Strategy == zipformat.StrategyHuffmanOnly {
		return flate.HuffmanOnly
	}
	return params.Level
}

// trialEncoder holds one deflate writer per effective level, reset (not
// recreated) between candidates per spec.md §4.2's resource-hygiene
// requirement — writer construction allocates large match-search state
// worth keeping across the candidate walk.
type trialEncoder struct {
	writers map[int]*flate.Writer
	buf     bytes.Buffer
}

func newTrialEncoder() *trialEncoder {
	return &trialEncoder{writers: make(map[int]*flate.Writer)}
}

func (t *trialEncoder) deflate(plain []byte, params zipformat.DeflateParameters) ([]byte, bool) {
	level := effectiveFlateLevel(params)
	t.buf.Reset()
	w, ok := t.writers[level]
	if !ok {
		var err error
		w, err = flate.NewWriter(&t.buf, level)
		if err != nil {
			return nil, false
		}
		t.writers[level] = w
	} else {
		w.Reset(&t.buf)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return t.buf.Bytes(), true
}

// zlibHeaderForLevel picks the 2-byte zlib CMF/FLG header zlib itself
// stamps for the given level (a zlib decoder ignores the FLEVEL bits, so
// this only has to match what the original encoder wrote).
func zlibHeaderForLevel(level int) [2]byte {
	switch {
	case level >= 7:
		return [2]byte{0x78, 0xDA}
	case level == 6:
		return [2]byte{0x78, 0x9C}
	case level >= 2:
		return [2]byte{0x78, 0x5E}
	default:
		return [2]byte{0x78, 0x01}
	}
}

// Divine attempts to recover the DeflateParameters that reproduce
// compressed bit-exactly. It returns (params, true, nil) on an exact
// match, (zero, false, nil) when the reference codec cannot reproduce the
// bytes (corruption, or a foreign encoder outside the compatibility
// window), and a non-nil error for cancellation or when the range cannot
// be read from src.
func Divine(ctx context.Context, src bytesource.Source, compressedRange zipformat.Range) (zipformat.DeflateParameters, bool, error) {
	// Entries below smallEntryThreshold are slurped once up front per
	// spec.md §4.2's resource-hygiene note; larger entries still need
	// their bytes in memory to run multiple deflate candidates against,
	// so the distinction only matters for callers wanting to bound peak
	// memory — this implementation reads the whole range either way and
	// relies on the caller to size its concurrency accordingly.
	compressed, err := src.Slice(ctx, compressedRange.Offset, compressedRange.Length)
	if err != nil {
		return zipformat.DeflateParameters{}, false, err
	}

	enc := newTrialEncoder()

	for _, nowrap := range []bool{true, false} {
		if err := ctx.Err(); err != nil {
			return zipformat.DeflateParameters{}, false, zdstat.Interruptedf("deflateoracle.Divine")
		}

		inflated, ok := inflateAll(compressed, nowrap)
		if !ok {
			// A real deflate stream decodes under exactly one nowrap
			// setting; failure of both implies corruption (spec.md §4.2).
			continue
		}

		for _, candidate := range divinationOrder {
			if err := ctx.Err(); err != nil {
				return zipformat.DeflateParameters{}, false, zdstat.Interruptedf("deflateoracle.Divine")
			}
			params := candidate
			params.NoWrap = nowrap
			if matchesCandidate(enc, inflated, compressed, params) {
				return params, true, nil
			}
		}
	}

	return zipformat.DeflateParameters{}, false, nil
}

// inflateAll decodes compressed under the given nowrap assumption. It
// returns ok=false if the bytes do not decode cleanly under that
// assumption (wrong header, bad checksum, truncated stream, ...).
func inflateAll(compressed []byte, nowrap bool) ([]byte, bool) {
	body := compressed
	var wantChecksum uint32
	haveChecksum := false
	if !nowrap {
		if len(compressed) < 6 {
			return nil, false
		}
		// 2-byte zlib header, 4-byte big-endian Adler-32 trailer.
		if compressed[0]&0x0f != 8 {
			return nil, false // not a deflate-based zlib stream
		}
		body = compressed[2 : len(compressed)-4]
		wantChecksum = binary.BigEndian.Uint32(compressed[len(compressed)-4:])
		haveChecksum = true
	}

	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, false
	}

	if haveChecksum && adler32.Checksum(out) != wantChecksum {
		return nil, false
	}
	return out, true
}

// matchesCandidate re-deflates inflated with params and requires
// byte-for-byte equality against the original compressed bytes. A
// mismatch aborts the candidate immediately (spec.md §4.2).
func matchesCandidate(enc *trialEncoder, inflated, original []byte, params zipformat.DeflateParameters) bool {
	encoded, ok := enc.deflate(inflated, params)
	if !ok {
		return false
	}

	if params.NoWrap {
		return bytes.Equal(encoded, original)
	}

	hdr := zlibHeaderForLevel(params.Level)
	full := make([]byte, 0, 2+len(encoded)+4)
	full = append(full, hdr[0], hdr[1])
	full = append(full, encoded...)
	checksum := adler32.Checksum(inflated)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], checksum)
	full = append(full, trailer[:]...)
	return bytes.Equal(full, original)
}
