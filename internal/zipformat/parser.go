package zipformat

import (
	"context"
	"encoding/binary"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/zdstat"
)

const (
	eocdSignature       = 0x06054b50
	centralDirSignature = 0x02014b50
	localHeaderSignature = 0x04034b50

	eocdMinLength  = 22
	eocdMaxScan    = 32*1024 + eocdMinLength // "last 32 KiB at most" plus the record itself
	localHeaderLen = 30

	utf8FlagBit = 1 << 11
)

// Parse reads the end-of-central-directory record, the central directory,
// and the local header prefixes of src, and returns the archive's entries
// in local-header offset order, per spec.md §4.1.
func Parse(ctx context.Context, src bytesource.Source) ([]ZipEntry, error) {
	eocd, err := findEOCD(ctx, src)
	if err != nil {
		return nil, err
	}
	if eocd.totalEntries == 0xFFFF {
		return nil, zdstat.Unsupportedf("zipformat: ZIP64 end-of-central-directory entry count")
	}

	entries, err := parseCentralDirectory(ctx, src, eocd)
	if err != nil {
		return nil, err
	}

	SortByLocalOffset(entries)

	if err := resolveLocalHeaders(ctx, src, entries, eocd.cdOffset); err != nil {
		return nil, err
	}

	return entries, nil
}

type eocdRecord struct {
	totalEntries uint16
	cdSize       uint32
	cdOffset     uint32
}

// findEOCD scans backwards from EOF over the last 32 KiB at most, looking
// for the end-of-central-directory signature, per spec.md §4.1 step 1.
func findEOCD(ctx context.Context, src bytesource.Source) (eocdRecord, error) {
	if err := ctx.Err(); err != nil {
		return eocdRecord{}, zdstat.Interruptedf("zipformat.findEOCD")
	}

	size := src.Len()
	if size < eocdMinLength {
		return eocdRecord{}, zdstat.Corruptf("zipformat: file too small to contain an EOCD record (%d bytes)", size)
	}

	scanLen := int64(eocdMaxScan)
	if scanLen > size {
		scanLen = size
	}
	tail, err := src.Slice(ctx, size-scanLen, scanLen)
	if err != nil {
		return eocdRecord{}, zdstat.Wrapf(err, "zipformat.findEOCD: reading tail")
	}

	for i := len(tail) - eocdMinLength; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:]) == eocdSignature {
			rec := tail[i:]
			commentLen := int(binary.LittleEndian.Uint16(rec[20:22]))
			if i+eocdMinLength+commentLen > len(tail) {
				// Signature-looking bytes inside file data; keep scanning.
				continue
			}
			return eocdRecord{
				totalEntries: binary.LittleEndian.Uint16(rec[10:12]),
				cdSize:       binary.LittleEndian.Uint32(rec[12:16]),
				cdOffset:     binary.LittleEndian.Uint32(rec[16:20]),
			}, nil
		}
	}
	return eocdRecord{}, zdstat.Corruptf("zipformat: end-of-central-directory signature not found")
}

// parseCentralDirectory streams the central directory and parses each
// entry's metadata, per spec.md §4.1 step 3.
func parseCentralDirectory(ctx context.Context, src bytesource.Source, eocd eocdRecord) ([]ZipEntry, error) {
	if int64(eocd.cdOffset)+int64(eocd.cdSize) > src.Len() {
		return nil, zdstat.Corruptf("zipformat: central directory range [%d,%d) exceeds file length %d", eocd.cdOffset, int64(eocd.cdOffset)+int64(eocd.cdSize), src.Len())
	}
	cd, err := src.Slice(ctx, int64(eocd.cdOffset), int64(eocd.cdSize))
	if err != nil {
		return nil, zdstat.Wrapf(err, "zipformat.parseCentralDirectory: reading central directory")
	}

	entries := make([]ZipEntry, 0, eocd.totalEntries)
	pos := 0
	for pos < len(cd) {
		if err := ctx.Err(); err != nil {
			return nil, zdstat.Interruptedf("zipformat.parseCentralDirectory")
		}
		if pos+46 > len(cd) {
			return nil, zdstat.Corruptf("zipformat: truncated central directory entry at offset %d", pos)
		}
		rec := cd[pos:]
		if binary.LittleEndian.Uint32(rec[0:4]) != centralDirSignature {
			return nil, zdstat.Corruptf("zipformat: bad central directory signature at offset %d", pos)
		}

		flags := binary.LittleEndian.Uint16(rec[8:10])
		methodCode := binary.LittleEndian.Uint16(rec[10:12])
		crc := binary.LittleEndian.Uint32(rec[16:20])
		compressedSize := binary.LittleEndian.Uint32(rec[20:24])
		uncompressedSize := binary.LittleEndian.Uint32(rec[24:28])
		nameLen := int(binary.LittleEndian.Uint16(rec[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(rec[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(rec[32:34]))
		localOffset := binary.LittleEndian.Uint32(rec[42:46])

		entryEnd := 46 + nameLen + extraLen + commentLen
		if pos+entryEnd > len(cd) {
			return nil, zdstat.Corruptf("zipformat: truncated central directory entry fields at offset %d", pos)
		}
		name := make([]byte, nameLen)
		copy(name, rec[46:46+nameLen])

		entries = append(entries, ZipEntry{
			CompressionMethod: methodFromCode(methodCode),
			CRC32:             crc,
			UncompressedSize:  int64(uncompressedSize),
			FileNameBytes:     name,
			UseUTF8Encoding:   flags&utf8FlagBit != 0,
			LocalEntryRange:   Range{Offset: int64(localOffset)},
			CompressedDataRange: Range{
				Length: int64(compressedSize),
			},
		})

		pos += entryEnd
	}

	return entries, nil
}

// resolveLocalHeaders reads each entry's local header prefix to compute
// the authoritative compressed-data offset and the local entry's total
// extent, per spec.md §4.1 steps 4-5. entries must already be sorted by
// local offset.
func resolveLocalHeaders(ctx context.Context, src bytesource.Source, entries []ZipEntry, cdOffset uint32) error {
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return zdstat.Interruptedf("zipformat.resolveLocalHeaders")
		}

		localOffset := entries[i].LocalEntryRange.Offset
		if localOffset+localHeaderLen > src.Len() {
			return zdstat.Corruptf("zipformat: local header at offset %d exceeds file length", localOffset)
		}
		hdr, err := src.Slice(ctx, localOffset, localHeaderLen)
		if err != nil {
			return zdstat.Wrapf(err, "zipformat.resolveLocalHeaders: reading local header at %d", localOffset)
		}
		if binary.LittleEndian.Uint32(hdr[0:4]) != localHeaderSignature {
			return zdstat.Corruptf("zipformat: bad local header signature at offset %d", localOffset)
		}
		nameLenLocal := int64(binary.LittleEndian.Uint16(hdr[26:28]))
		extraLenLocal := int64(binary.LittleEndian.Uint16(hdr[28:30]))

		compressedDataOffset := localOffset + localHeaderLen + nameLenLocal + extraLenLocal
		entries[i].CompressedDataRange.Offset = compressedDataOffset

		var localEnd int64
		if i+1 < len(entries) {
			localEnd = entries[i+1].LocalEntryRange.Offset
		} else {
			localEnd = int64(cdOffset)
		}
		if localEnd < compressedDataOffset {
			return zdstat.Corruptf("zipformat: local entry at offset %d overruns next entry/central directory", localOffset)
		}
		entries[i].LocalEntryRange.Length = localEnd - localOffset

		if entries[i].EffectiveMethod() == Stored && entries[i].CompressedDataRange.Length != entries[i].UncompressedSize {
			return zdstat.Corruptf("zipformat: STORED entry %q has compressed size %d != uncompressed size %d", entries[i].FileNameBytes, entries[i].CompressedDataRange.Length, entries[i].UncompressedSize)
		}
	}
	return nil
}
