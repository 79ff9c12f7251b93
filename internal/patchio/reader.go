package patchio

import (
	"encoding/binary"
	"io"

	"github.com/crdzbird/zipdelta/internal/zdstat"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

// Read parses a patch stream written by Write. It is diagnostic-only —
// the applier itself is out of scope (spec.md §4.6) — but is required
// internally to exercise Testable Property 4 (round-trip) in tests
// without an external tool.
func Read(r io.Reader) (Patch, error) {
	br := &byteReader{r: r}

	magic := br.readString(len(Magic))
	if br.err == nil && magic != Magic {
		return Patch{}, zdstat.Corruptf("patchio.Read: bad magic %q", magic)
	}

	var p Patch
	p.Flags = br.readU32()
	p.OldDeltaFriendlySize = int64(br.readU64())

	oldN := br.readU32()
	p.OldUncompressionPlan = make([]UncompressionRange, 0, oldN)
	for i := uint32(0); i < oldN && br.err == nil; i++ {
		p.OldUncompressionPlan = append(p.OldUncompressionPlan, UncompressionRange{
			Offset: int64(br.readU64()),
			Length: int64(br.readU64()),
		})
	}

	newN := br.readU32()
	p.NewRecompressionPlan = make([]RecompressionRange, 0, newN)
	for i := uint32(0); i < newN && br.err == nil; i++ {
		offset := int64(br.readU64())
		length := int64(br.readU64())
		_ = br.readByte() // codec: always CodecDefaultDeflate in this core
		level := br.readByte()
		strategy := br.readByte()
		nowrap := br.readByte()
		p.NewRecompressionPlan = append(p.NewRecompressionPlan, RecompressionRange{
			Offset: offset,
			Length: length,
			Params: zipformat.DeflateParameters{
				Level:    int(level),
				Strategy: zipformat.Strategy(strategy),
				NoWrap:   nowrap != 0,
			},
		})
	}

	deltaN := br.readU32()
	p.Deltas = make([]DeltaRecord, 0, deltaN)
	for i := uint32(0); i < deltaN && br.err == nil; i++ {
		format := DeltaFormatCode(br.readByte())
		oldOffset := int64(br.readU64())
		oldLen := int64(br.readU64())
		newOffset := int64(br.readU64())
		newLen := int64(br.readU64())
		deltaLen := br.readU64()
		delta := br.readN(int(deltaLen))
		p.Deltas = append(p.Deltas, DeltaRecord{
			Format:        format,
			OldWorkOffset: oldOffset,
			OldWorkLength: oldLen,
			NewWorkOffset: newOffset,
			NewWorkLength: newLen,
			Delta:         delta,
		})
	}

	if br.err != nil {
		return Patch{}, br.err
	}
	return p, nil
}

type byteReader struct {
	r   io.Reader
	err error
}

func (br *byteReader) readN(n int) []byte {
	if br.err != nil || n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = zdstat.Wrapf(err, "patchio.Read")
		return nil
	}
	return buf
}

func (br *byteReader) readString(n int) string {
	return string(br.readN(n))
}

func (br *byteReader) readByte() byte {
	b := br.readN(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (br *byteReader) readU32() uint32 {
	b := br.readN(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (br *byteReader) readU64() uint64 {
	b := br.readN(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
