package prediff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crdzbird/zipdelta/internal/bytesource"
	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func entryAt(name string, offset int64, data []byte, method zipformat.CompressionMethod, crc uint32, uncompSize int64) zipformat.ZipEntry {
	return zipformat.ZipEntry{
		FileNameBytes:       []byte(name),
		CompressionMethod:   method,
		CompressedDataRange: zipformat.Range{Offset: offset, Length: int64(len(data))},
		CRC32:               crc,
		UncompressedSize:    uncompSize,
	}
}

func TestBuildEntriesSkipsUnmatchedNewEntries(t *testing.T) {
	oldData := []byte("old-payload")
	newData := []byte("new-payload")

	oldEntries := []zipformat.ZipEntry{entryAt("only-old.txt", 0, oldData, zipformat.Stored, 1, int64(len(oldData)))}
	newEntries := []zipformat.ZipEntry{entryAt("only-new.txt", 0, newData, zipformat.Stored, 2, int64(len(newData)))}

	in := PlanInputs{
		OldSource: bytesource.NewMemorySource(oldData),
		NewSource: bytesource.NewMemorySource(newData),
	}

	out, err := BuildEntries(context.Background(), oldEntries, newEntries, in)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuildEntriesDecidesMatchedPairBothStored(t *testing.T) {
	oldData := []byte("aaaaaaaaaa")
	newData := []byte("bbbbbbbbbb")

	oldEntries := []zipformat.ZipEntry{entryAt("a.txt", 0, oldData, zipformat.Stored, 111, int64(len(oldData)))}
	newEntries := []zipformat.ZipEntry{entryAt("a.txt", 0, newData, zipformat.Stored, 222, int64(len(newData)))}

	in := PlanInputs{
		OldSource: bytesource.NewMemorySource(oldData),
		NewSource: bytesource.NewMemorySource(newData),
	}

	out, err := BuildEntries(context.Background(), oldEntries, newEntries, in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, UncompressNeither, out[0].UncompressionOption)
	assert.Equal(t, ExplainBothUncompressed, out[0].UncompressionExplanation)
	assert.Equal(t, FormatBSDiff, out[0].DeltaFormat)
}

func TestBuildEntriesUsesFileByFileWhenProbeEligible(t *testing.T) {
	oldData := []byte("old-inner-archive-bytes")
	newData := []byte("new-inner-archive-bytes-changed")

	oldEntries := []zipformat.ZipEntry{entryAt("nested.zip", 0, oldData, zipformat.Stored, 1, int64(len(oldData)))}
	newEntries := []zipformat.ZipEntry{entryAt("nested.zip", 0, newData, zipformat.Stored, 2, int64(len(newData)))}

	in := PlanInputs{
		OldSource:          bytesource.NewMemorySource(oldData),
		NewSource:          bytesource.NewMemorySource(newData),
		SupportsFileByFile: true,
		Probe: func(ctx context.Context, p Pair) (FileTypeProbe, error) {
			return FileTypeProbe{NamesLookLikeArchives: true, BothParseAsZip: true}, nil
		},
	}

	out, err := BuildEntries(context.Background(), oldEntries, newEntries, in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, FormatFileByFile, out[0].DeltaFormat)
	assert.Equal(t, DeltaExplainFileType, out[0].DeltaFormatExplanation)
}

func TestBuildEntriesSkipsProbeWhenCRCMatches(t *testing.T) {
	data := []byte("identical-bytes-on-both-sides")

	oldEntries := []zipformat.ZipEntry{entryAt("same.zip", 0, data, zipformat.Stored, 77, int64(len(data)))}
	newEntries := []zipformat.ZipEntry{entryAt("same.zip", 0, data, zipformat.Stored, 77, int64(len(data)))}

	probeCalled := false
	in := PlanInputs{
		OldSource:          bytesource.NewMemorySource(data),
		NewSource:          bytesource.NewMemorySource(data),
		SupportsFileByFile: true,
		Probe: func(ctx context.Context, p Pair) (FileTypeProbe, error) {
			probeCalled = true
			return FileTypeProbe{}, nil
		},
	}

	out, err := BuildEntries(context.Background(), oldEntries, newEntries, in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, probeCalled, "CRC-identical pairs must not be probed")
	assert.Equal(t, DeltaExplainUnchanged, out[0].DeltaFormatExplanation)
}

func TestBuildEntriesRespectsCancellation(t *testing.T) {
	oldEntries := []zipformat.ZipEntry{entryAt("a.txt", 0, []byte("x"), zipformat.Stored, 1, 1)}
	newEntries := []zipformat.ZipEntry{entryAt("a.txt", 0, []byte("x"), zipformat.Stored, 1, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := PlanInputs{
		OldSource: bytesource.NewMemorySource([]byte("x")),
		NewSource: bytesource.NewMemorySource([]byte("x")),
	}

	_, err := BuildEntries(ctx, oldEntries, newEntries, in)
	assert.Error(t, err)
}
