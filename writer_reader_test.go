package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDescriptor() IABEssenceDescriptorInfo {
	return IABEssenceDescriptorInfo{
		EditRate:         Rational{24, 1},
		SampleRate:       Rational{48000, 1},
		ChannelCount:     16,
		QuantizationBits: 24,
	}
}

func newTestSoundfield() IABSoundfieldLabelSubDescriptor {
	return IABSoundfieldLabelSubDescriptor{
		MCATagName:   "IAB",
		MCATagSymbol: "IAB",
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})

	info := WriterInfo{CompanyName: "Cinelabs", ProductName: "iabmxf"}
	require.NoError(t, w.OpenWrite(info, newTestDescriptor(), newTestSoundfield()))

	frames := [][]byte{
		EncodeIABFrame([]byte{0x01}, []byte("frame zero payload")),
		EncodeIABFrame([]byte{0x02}, []byte("frame one payload, a bit longer")),
		EncodeIABFrame(nil, []byte("frame two payload")),
	}
	for _, frame := range frames {
		require.NoError(t, w.WriteFrame(frame))
	}

	require.NoError(t, w.FinalizeClip())

	metadataPayload := []byte(`{"title":"test clip"}`)
	require.NoError(t, w.WriteMetadata("application/json", "en", metadataPayload))

	require.NoError(t, w.FinalizeMxf())
	require.NoError(t, w.Close())

	r := NewReader(f, nopLogger{})
	require.NoError(t, r.OpenRead())

	count, err := r.GetFrameCount()
	require.NoError(t, err)
	assert.Equal(t, len(frames), count)

	for i, want := range frames {
		got, err := r.ReadFrame(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "frame %d", i)
	}

	// re-reading the same frame should come from the one-frame cache, not
	// another file read; verify it still returns the identical bytes.
	cached, err := r.ReadFrame(len(frames) - 1)
	require.NoError(t, err)
	assert.Equal(t, frames[len(frames)-1], cached)

	meta, err := r.ReadMetadata(2)
	require.NoError(t, err)
	assert.Equal(t, metadataPayload, meta)

	assert.NotNil(t, r.Metadata().GetByType(ULIABEssenceDescriptor))
	assert.NotNil(t, r.Metadata().GetByType(ULIABSoundfieldLabelSubDescriptor))
	assert.NotNil(t, r.Metadata().GetByType(ULTimelineTrack))

	require.NoError(t, r.Close())
}

func TestWriterReaderRoundTripBodyPartitioned(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})

	info := WriterInfo{CompanyName: "Cinelabs", ProductName: "iabmxf", BodyPartitioned: true}
	require.NoError(t, w.OpenWrite(info, newTestDescriptor(), newTestSoundfield()))

	frames := [][]byte{
		EncodeIABFrame([]byte{0x01}, []byte("frame zero payload")),
		EncodeIABFrame([]byte{0x02}, []byte("frame one payload, a bit longer")),
	}
	for _, frame := range frames {
		require.NoError(t, w.WriteFrame(frame))
	}
	require.NoError(t, w.FinalizeClip())
	require.NoError(t, w.WriteMetadata("application/json", "en", []byte(`{"title":"body-partitioned"}`)))
	require.NoError(t, w.FinalizeMxf())
	require.NoError(t, w.Close())

	r := NewReader(f, nopLogger{})
	require.NoError(t, r.OpenRead())

	count, err := r.GetFrameCount()
	require.NoError(t, err)
	assert.Equal(t, len(frames), count)

	for i, want := range frames {
		got, err := r.ReadFrame(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "frame %d", i)
	}

	require.NoError(t, r.Close())
}

func TestReaderFindsEssenceInThreePairRIP(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})

	// a body-partitioned clip with no generic-stream metadata produces the
	// exact three-pair RIP (header, body, footer) spec.md describes, distinct
	// from the coincidental three-entry RIP a WriteMetadata call can produce
	// on the single-partition layout.
	info := WriterInfo{BodyPartitioned: true}
	require.NoError(t, w.OpenWrite(info, newTestDescriptor(), newTestSoundfield()))
	require.NoError(t, w.WriteFrame(EncodeIABFrame(nil, []byte("only frame"))))
	require.NoError(t, w.FinalizeClip())
	require.NoError(t, w.FinalizeMxf())
	require.NoError(t, w.Close())

	r := NewReader(f, nopLogger{})
	require.NoError(t, r.OpenRead())

	rip, err := r.readTrailingRIP()
	require.NoError(t, err)
	require.Len(t, rip.Entries, 3)
	assert.Equal(t, essenceBodySID, rip.Entries[1].BodySID)

	got, err := r.ReadFrame(0)
	require.NoError(t, err)
	assert.Equal(t, EncodeIABFrame(nil, []byte("only frame")), got)

	require.NoError(t, r.Close())
}

func TestReaderRejectsOutOfRangeFrame(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})
	require.NoError(t, w.OpenWrite(WriterInfo{}, newTestDescriptor(), newTestSoundfield()))
	require.NoError(t, w.WriteFrame(EncodeIABFrame(nil, []byte("only frame"))))
	require.NoError(t, w.FinalizeClip())
	require.NoError(t, w.FinalizeMxf())

	r := NewReader(f, nopLogger{})
	require.NoError(t, r.OpenRead())

	_, err := r.ReadFrame(5)
	assert.True(t, Is(err, RANGE))
}

func TestWriterStateMachineRejectsMisuse(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})

	// WriteFrame before OpenWrite.
	err := w.WriteFrame([]byte("too soon"))
	assert.True(t, Is(err, STATE))

	require.NoError(t, w.OpenWrite(WriterInfo{}, newTestDescriptor(), newTestSoundfield()))

	// OpenWrite twice in a row.
	err = w.OpenWrite(WriterInfo{}, newTestDescriptor(), newTestSoundfield())
	assert.True(t, Is(err, STATE))

	// WriteMetadata before the clip is finalized.
	err = w.WriteMetadata("text/plain", "en", []byte("x"))
	assert.True(t, Is(err, STATE))

	require.NoError(t, w.WriteFrame(EncodeIABFrame(nil, []byte("one frame"))))
	require.NoError(t, w.FinalizeClip())

	// FinalizeClip a second time without writing more frames.
	err = w.FinalizeClip()
	assert.True(t, Is(err, STATE))

	require.NoError(t, w.FinalizeMxf())

	// After FinalizeMxf, the Writer has reset to BEGIN.
	err = w.FinalizeMxf()
	assert.True(t, Is(err, STATE))
}

func TestWriterWithoutFramesStillFinalizes(t *testing.T) {
	f := newMemFile()
	w := NewWriter(f, nopLogger{})
	require.NoError(t, w.OpenWrite(WriterInfo{}, newTestDescriptor(), newTestSoundfield()))
	require.NoError(t, w.FinalizeClip())
	require.NoError(t, w.FinalizeMxf())

	r := NewReader(f, nopLogger{})
	require.NoError(t, r.OpenRead())
	count, err := r.GetFrameCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
