package prediff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crdzbird/zipdelta/internal/zipformat"
)

func newEntryOfSize(size int64) PreDiffPlanEntry {
	return PreDiffPlanEntry{
		NewEntry:            zipformat.ZipEntry{UncompressedSize: size},
		UncompressionOption: UncompressNew,
	}
}

func oldEntryOfSize(size, compressed int64) PreDiffPlanEntry {
	return PreDiffPlanEntry{
		OldEntry: zipformat.ZipEntry{
			UncompressedSize:    size,
			CompressedDataRange: zipformat.Range{Length: compressed},
		},
		UncompressionOption: UncompressOld,
	}
}

func TestTotalRecompressionLimiterKeepsLargestThatFit(t *testing.T) {
	entries := []PreDiffPlanEntry{
		newEntryOfSize(100 * 1024),
		newEntryOfSize(200 * 1024),
		newEntryOfSize(300 * 1024),
		newEntryOfSize(400 * 1024),
	}
	limiter := TotalRecompressionLimiter(600 * 1024)
	out := RunModifiers(entries, limiter)

	// Greedy by descending size: 400 KiB taken first (running=400K),
	// 300 KiB doesn't fit (700K > 600K) so it's demoted, 200 KiB fits
	// (600K), 100 KiB doesn't fit (700K > 600K) so it's demoted too.
	assert.Equal(t, UncompressNeither, out[0].UncompressionOption, "100 KiB entry should be demoted")
	assert.Equal(t, UncompressNew, out[1].UncompressionOption, "200 KiB entry should be kept")
	assert.Equal(t, UncompressNeither, out[2].UncompressionOption, "300 KiB entry should be demoted")
	assert.Equal(t, UncompressNew, out[3].UncompressionOption, "400 KiB entry should be kept")
}

func TestTotalRecompressionLimiterZeroDisables(t *testing.T) {
	entries := []PreDiffPlanEntry{newEntryOfSize(10 * 1024 * 1024)}
	out := RunModifiers(entries, TotalRecompressionLimiter(0))
	assert.Equal(t, UncompressNew, out[0].UncompressionOption)
}

func TestDeltaFriendlyOldBlobSizeLimiterDemotesOverBudget(t *testing.T) {
	entries := []PreDiffPlanEntry{
		oldEntryOfSize(1000, 100), // extra = 900
		oldEntryOfSize(500, 400),  // extra = 100
	}
	limiter := DeltaFriendlyOldBlobSizeLimiter(950, 0)
	out := RunModifiers(entries, limiter)

	var demoted, kept int
	for _, e := range out {
		if e.UncompressionOption == UncompressNeither {
			demoted++
			assert.Equal(t, ExplainResourceConstrained, e.UncompressionExplanation)
		} else {
			kept++
		}
	}
	assert.Equal(t, 1, demoted)
	assert.Equal(t, 1, kept)
}

func TestDemoteSetsBothDecisionsToResourceConstrained(t *testing.T) {
	e := demote(PreDiffPlanEntry{UncompressionOption: UncompressBoth, DeltaFormat: FormatFileByFile})
	assert.Equal(t, UncompressNeither, e.UncompressionOption)
	assert.Equal(t, ExplainResourceConstrained, e.UncompressionExplanation)
	assert.Equal(t, FormatBSDiff, e.DeltaFormat)
	assert.Equal(t, DeltaExplainResourceConstrained, e.DeltaFormatExplanation)
}
