package scratch

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"

	"github.com/crdzbird/zipdelta/internal/zdstat"
)

// Spilled blobs carry the inflated bytes of a publisher's archive, which
// compress well (they were deflate payloads moments ago). Framing each
// Write call as its own independently-decompressible LZ4 block keeps the
// spill file's on-disk footprint down without needing a continuous
// streaming codec state, adapted from the teacher's block-based LZ4
// helpers (file_reducer.go's compressLZ4/decompressLZ4) — the block API
// there already carries the original size alongside the compressed
// bytes for exactly this reason.
const (
	frameRaw        byte = 0
	frameCompressed byte = 1
)

// lz4FrameEncode compresses one chunk and returns it prefixed with a
// one-byte kind tag and two big-endian uint32 lengths (original,
// payload). Incompressible or empty chunks are stored raw rather than
// forcing lz4.CompressBlock to fail on its hashTable-less fast path.
func lz4FrameEncode(plain []byte) []byte {
	if len(plain) == 0 {
		return encodeFrame(frameRaw, 0, nil)
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(plain)))
	n, err := lz4.CompressBlock(plain, compressed, nil)
	if err != nil || n == 0 {
		return encodeFrame(frameRaw, len(plain), plain)
	}
	return encodeFrame(frameCompressed, len(plain), compressed[:n])
}

func encodeFrame(kind byte, originalLen int, payload []byte) []byte {
	out := make([]byte, 9+len(payload))
	out[0] = kind
	binary.BigEndian.PutUint32(out[1:5], uint32(originalLen))
	binary.BigEndian.PutUint32(out[5:9], uint32(len(payload)))
	copy(out[9:], payload)
	return out
}

// lz4FrameDecodeAll parses a concatenation of lz4FrameEncode frames back
// into the original byte stream.
func lz4FrameDecodeAll(framed []byte) ([]byte, error) {
	var out []byte
	pos := 0
	for pos < len(framed) {
		if pos+9 > len(framed) {
			return nil, zdstat.Corruptf("scratch: spill file truncated mid-frame header")
		}
		kind := framed[pos]
		originalLen := int(binary.BigEndian.Uint32(framed[pos+1 : pos+5]))
		payloadLen := int(binary.BigEndian.Uint32(framed[pos+5 : pos+9]))
		pos += 9
		if pos+payloadLen > len(framed) {
			return nil, zdstat.Corruptf("scratch: spill file truncated mid-frame payload")
		}
		payload := framed[pos : pos+payloadLen]
		pos += payloadLen

		switch kind {
		case frameRaw:
			out = append(out, payload...)
		case frameCompressed:
			decompressed := make([]byte, originalLen)
			n, err := lz4.UncompressBlock(payload, decompressed)
			if err != nil {
				return nil, zdstat.Wrapf(err, "scratch: lz4 decompress spill frame")
			}
			out = append(out, decompressed[:n]...)
		default:
			return nil, zdstat.Corruptf("scratch: spill file has an unrecognized frame kind")
		}
	}
	return out, nil
}
