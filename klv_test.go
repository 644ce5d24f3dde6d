package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBERShortForm(t *testing.T) {
	buf, ok := writeBER(nil, 0x42, 1)
	require.True(t, ok)
	assert.Equal(t, []byte{0x42}, buf)
}

func TestWriteBERLongFormFixedWidth(t *testing.T) {
	buf, ok := writeBER(nil, 24, 8)
	require.True(t, ok)
	assert.Equal(t, []byte{0x87, 0, 0, 0, 0, 0, 0, 0, 24}, buf)
}

func TestWriteBERRejectsOversizedValue(t *testing.T) {
	_, ok := writeBER(nil, 0x100, 2)
	assert.False(t, ok)
}

func TestBERLengthRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x7f, 0x80, 0xff, 0x10000, 0xfffffff, 1 << 40} {
		width := bestBERWidth(v)
		buf, ok := writeBER(nil, v, width)
		require.True(t, ok, "value %d", v)

		got, consumed, ok := berLength(buf)
		require.True(t, ok, "value %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), consumed)
	}
}

func TestBestBERWidthMinimal(t *testing.T) {
	assert.Equal(t, 1, bestBERWidth(0))
	assert.Equal(t, 1, bestBERWidth(0x7f))
	assert.Equal(t, 2, bestBERWidth(0x80))
	assert.Equal(t, 2, bestBERWidth(0xff))
	assert.Equal(t, 3, bestBERWidth(0x100))
}

func TestWriteKLVReadKLVRoundTrip(t *testing.T) {
	f := newMemFile()
	key := ul(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	value := []byte("some KLV value payload")

	require.NoError(t, writeKLV(f, key, value))
	require.NoError(t, f.Seek(0))

	gotKey, gotValue, err := readKLV(f)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
	assert.Equal(t, value, gotValue)
}

func TestReadTestBER(t *testing.T) {
	cursor, _ := writeBER(nil, 16, 5)
	cursor = append(cursor, make([]byte, 16)...)
	ok := readTestBER(&cursor, 16)
	assert.True(t, ok)
	assert.Len(t, cursor, 16)
}

func TestReadTestBERRejectsMismatch(t *testing.T) {
	cursor, _ := writeBER(nil, 8, 5)
	ok := readTestBER(&cursor, 16)
	assert.False(t, ok)
}
