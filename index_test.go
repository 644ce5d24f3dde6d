package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexTablePushLookup(t *testing.T) {
	idx := &IndexTable{EditRateNumerator: 24, EditRateDenominator: 1}
	idx.PushIndexEntry(IndexEntry{StreamOffset: 0})
	idx.PushIndexEntry(IndexEntry{StreamOffset: 1024})
	idx.PushIndexEntry(IndexEntry{StreamOffset: 2048})

	assert.Equal(t, 3, idx.GetDuration())

	e, err := idx.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), e.StreamOffset)
}

func TestIndexTableLookupOutOfRange(t *testing.T) {
	idx := &IndexTable{}
	idx.PushIndexEntry(IndexEntry{StreamOffset: 0})

	_, err := idx.Lookup(5)
	assert.True(t, Is(err, RANGE))

	_, err = idx.Lookup(-1)
	assert.True(t, Is(err, RANGE))
}

func TestIndexTableEncodeDecodeRoundTrip(t *testing.T) {
	idx := &IndexTable{EditRateNumerator: 24000, EditRateDenominator: 1001}
	for _, off := range []uint64{0, 512, 1280, 4096} {
		idx.PushIndexEntry(IndexEntry{StreamOffset: off})
	}
	id, err := NewUUID()
	require.NoError(t, err)

	value := idx.encode(id, 1, 1)
	got, err := decodeIndexTableValue(value)
	require.NoError(t, err)

	assert.Equal(t, idx.EditRateNumerator, got.EditRateNumerator)
	assert.Equal(t, idx.EditRateDenominator, got.EditRateDenominator)
	require.Len(t, got.Entries, len(idx.Entries))
	for i, e := range idx.Entries {
		assert.Equal(t, e.StreamOffset, got.Entries[i].StreamOffset)
	}
}

func TestIndexTableStrictlyAscendingOffsets(t *testing.T) {
	idx := &IndexTable{}
	offsets := []uint64{0, 100, 250, 9000}
	for _, off := range offsets {
		idx.PushIndexEntry(IndexEntry{StreamOffset: off})
	}
	for i := 1; i < len(idx.Entries); i++ {
		assert.Greater(t, idx.Entries[i].StreamOffset, idx.Entries[i-1].StreamOffset)
	}
}
