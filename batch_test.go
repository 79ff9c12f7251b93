package zipdelta

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crdzbird/zipdelta/internal/bytesource"
)

func buildBatchArchive(t *testing.T, name, content string, method uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGenerateBatchReportsIndependentResults(t *testing.T) {
	goodOld := buildBatchArchive(t, "a.txt", "old content here", zip.Store)
	goodNew := buildBatchArchive(t, "a.txt", "new content here, slightly longer", zip.Store)

	jobs := []Job{
		{Label: "ok-1", Old: bytesource.NewMemorySource(goodOld), New: bytesource.NewMemorySource(goodNew), Out: &bytes.Buffer{}},
		{Label: "broken", Old: bytesource.NewMemorySource([]byte("not a zip")), New: bytesource.NewMemorySource(goodNew), Out: &bytes.Buffer{}},
		{Label: "ok-2", Old: bytesource.NewMemorySource(goodOld), New: bytesource.NewMemorySource(goodNew), Out: &bytes.Buffer{}},
	}

	results := GenerateBatch(context.Background(), jobs, 2, DefaultOptions())
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok-1", results[0].Label)

	assert.Error(t, results[1].Err)
	assert.Equal(t, "broken", results[1].Label)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, "ok-2", results[2].Label)
}

func TestGenerateBatchDefaultsConcurrencyWhenNonPositive(t *testing.T) {
	data := buildBatchArchive(t, "a.txt", "x", zip.Store)
	jobs := []Job{
		{Label: "only", Old: bytesource.NewMemorySource(data), New: bytesource.NewMemorySource(data), Out: &bytes.Buffer{}},
	}

	results := GenerateBatch(context.Background(), jobs, 0, DefaultOptions())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestGenerateBatchEmptyJobsReturnsEmptyResults(t *testing.T) {
	results := GenerateBatch(context.Background(), nil, 3, DefaultOptions())
	assert.Empty(t, results)
}
