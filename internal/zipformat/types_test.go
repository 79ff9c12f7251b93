package zipformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeEndAndOverlaps(t *testing.T) {
	a := Range{Offset: 10, Length: 5}
	assert.Equal(t, int64(15), a.End())

	b := Range{Offset: 14, Length: 5}
	assert.True(t, a.Overlaps(b))

	c := Range{Offset: 15, Length: 5}
	assert.False(t, a.Overlaps(c))
}

func TestRangeLessOrdersByOffsetThenLength(t *testing.T) {
	a := Range{Offset: 0, Length: 5}
	b := Range{Offset: 0, Length: 10}
	c := Range{Offset: 1, Length: 1}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.Less(c))
}

func TestEntryKeyUsesRawBytesNotUTF8Interpretation(t *testing.T) {
	nameA := NewEntryKey([]byte{0xff, 0xfe, 0x00})
	nameB := NewEntryKey([]byte{0xff, 0xfe, 0x00})
	nameC := NewEntryKey([]byte{0xff, 0xfe, 0x01})

	assert.Equal(t, nameA, nameB)
	assert.NotEqual(t, nameA, nameC)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, nameA.Bytes())
}

func TestSortByLocalOffset(t *testing.T) {
	entries := []ZipEntry{
		{LocalEntryRange: Range{Offset: 300}},
		{LocalEntryRange: Range{Offset: 10}},
		{LocalEntryRange: Range{Offset: 150}},
	}
	SortByLocalOffset(entries)
	assert.Equal(t, int64(10), entries[0].LocalEntryRange.Offset)
	assert.Equal(t, int64(150), entries[1].LocalEntryRange.Offset)
	assert.Equal(t, int64(300), entries[2].LocalEntryRange.Offset)
}
