package patchio

import (
	"encoding/binary"
	"io"

	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// Write streams p to w exactly per spec.md §6's layout: sequential,
// single-pass, no backtracking. Level, strategy and nowrap are encoded
// directly from DeflateParameters — one byte each, as the wire format
// specifies.
func Write(w io.Writer, p Patch) error {
	bw := &byteWriter{w: w}

	bw.writeString(Magic)
	bw.writeU32(p.Flags)
	bw.writeU64(uint64(p.OldDeltaFriendlySize))

	bw.writeU32(uint32(len(p.OldUncompressionPlan)))
	for _, r := range p.OldUncompressionPlan {
		bw.writeU64(uint64(r.Offset))
		bw.writeU64(uint64(r.Length))
	}

	bw.writeU32(uint32(len(p.NewRecompressionPlan)))
	for _, r := range p.NewRecompressionPlan {
		bw.writeU64(uint64(r.Offset))
		bw.writeU64(uint64(r.Length))
		bw.writeByte(CodecDefaultDeflate)
		bw.writeByte(byte(r.Params.Level))
		bw.writeByte(byte(r.Params.Strategy))
		bw.writeByte(boolByte(r.Params.NoWrap))
	}

	bw.writeU32(uint32(len(p.Deltas)))
	for _, d := range p.Deltas {
		bw.writeByte(byte(d.Format))
		bw.writeU64(uint64(d.OldWorkOffset))
		bw.writeU64(uint64(d.OldWorkLength))
		bw.writeU64(uint64(d.NewWorkOffset))
		bw.writeU64(uint64(d.NewWorkLength))
		bw.writeU64(uint64(len(d.Delta)))
		bw.write(d.Delta)
	}

	return bw.err
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// byteWriter accumulates the first error encountered and makes every
// subsequent call a no-op, so Write's body reads as a flat sequence of
// field writes instead of an if-err chain per field.
type byteWriter struct {
	w   io.Writer
	err error
}

func (bw *byteWriter) write(p []byte) {
	if bw.err != nil || len(p) == 0 {
		return
	}
	if _, err := bw.w.Write(p); err != nil {
		bw.err = zdstat.Wrapf(err, "patchio.Write")
	}
}

func (bw *byteWriter) writeByte(b byte) {
	bw.write([]byte{b})
}

func (bw *byteWriter) writeString(s string) {
	bw.write([]byte(s))
}

func (bw *byteWriter) writeU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	bw.write(buf[:])
}

func (bw *byteWriter) writeU64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	bw.write(buf[:])
}

// DeflateParamsFromRange is a convenience constructor tying a
// zipformat.TypedRange[zipformat.DeflateParameters] to a
// RecompressionRange for callers assembling a Patch from prediff/
// blobbuilder output directly.
func DeflateParamsFromRange(tr zipformat.TypedRange[zipformat.DeflateParameters]) RecompressionRange {
	return RecompressionRange{Offset: tr.Offset, Length: tr.Length, Params: tr.Metadata}
}
