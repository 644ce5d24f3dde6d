package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeIABFrameRoundTrip(t *testing.T) {
	preamble := []byte{0xaa, 0xbb, 0xcc}
	frame := []byte("an opaque IAB access unit")

	buf := EncodeIABFrame(preamble, frame)
	gotPreamble, gotFrame, err := DecodeIABFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, preamble, gotPreamble)
	assert.Equal(t, frame, gotFrame)
}

func TestEncodeDecodeIABFrameEmptyPreamble(t *testing.T) {
	buf := EncodeIABFrame(nil, []byte("frame only"))
	preamble, frame, err := DecodeIABFrame(buf)
	require.NoError(t, err)
	assert.Empty(t, preamble)
	assert.Equal(t, []byte("frame only"), frame)
}

func TestDecodeIABFrameRejectsTruncatedHeader(t *testing.T) {
	_, _, err := DecodeIABFrame([]byte{0x01, 0x00})
	assert.True(t, Is(err, FORMAT))
}

func TestReadFrameBufferMatchesEncode(t *testing.T) {
	f := newMemFile()
	want := EncodeIABFrame([]byte{1, 2, 3}, []byte("frame body"))
	_, err := f.Write(want)
	require.NoError(t, err)
	require.NoError(t, f.Seek(0))

	got, err := readFrameBuffer(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
