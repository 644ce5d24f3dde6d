package iabmxf

import "encoding/binary"

// IndexEntry records one frame's position within the clip's KLV value.
// StreamOffset is relative to the first byte after the reserved 24-byte
// clip KL (see Writer.OpenWrite) — the offset basis the writer
// and reader must agree on exactly.
type IndexEntry struct {
	StreamOffset uint64
}

// IndexTable is the in-memory sequence an IAB Writer accumulates as it
// streams frames, and an IAB Reader loads once from the footer partition.
// Entries are appended strictly in frame-number order, which is what makes
// Lookup a plain slice index rather than a search.
type IndexTable struct {
	EditRateNumerator, EditRateDenominator int32
	Entries                                []IndexEntry
}

// PushIndexEntry appends the next entry; callers are responsible for the
// ascending-stream-offset invariant (WriteFrame/index.go do not themselves
// need to re-check it: the writer state machine only ever advances
// forward).
func (t *IndexTable) PushIndexEntry(e IndexEntry) {
	t.Entries = append(t.Entries, e)
}

// GetDuration is the number of frames indexed.
func (t *IndexTable) GetDuration() int { return len(t.Entries) }

// Lookup returns the index entry for frameNumber, or a RANGE Result if it
// is outside [0, duration).
func (t *IndexTable) Lookup(frameNumber int) (IndexEntry, error) {
	if frameNumber < 0 || frameNumber >= len(t.Entries) {
		return IndexEntry{}, errRange
	}
	return t.Entries[frameNumber], nil
}

// indexEntrySize is the fixed per-entry width: an 11-byte entry per the
// spec's "fixed entry size = 11 or the minimum needed" guidance — temporal
// offset (1) + key-frame offset (1) + flags (1) + stream offset (8).
const indexEntrySize = 11

// encode serializes the index table segment's KLV value: InstanceUID,
// IndexEditRate, IndexStartPosition, IndexDuration, EditUnitByteCount,
// IndexSID, BodySID, SliceCount, PosTableCount, then the index entry batch.
func (t *IndexTable) encode(instanceUID UUID, indexSID, bodySID uint32) []byte {
	buf := make([]byte, 0, 64+len(t.Entries)*indexEntrySize)
	buf = append(buf, instanceUID[:]...)

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(t.EditRateNumerator))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(t.EditRateDenominator))
	buf = append(buf, hdr[:]...)

	var misc [8 + 8 + 4 + 4 + 4 + 1 + 1]byte
	binary.BigEndian.PutUint64(misc[0:8], 0) // IndexStartPosition
	binary.BigEndian.PutUint64(misc[8:16], uint64(len(t.Entries)))
	binary.BigEndian.PutUint32(misc[16:20], 0) // EditUnitByteCount: variable-size entries
	binary.BigEndian.PutUint32(misc[20:24], indexSID)
	binary.BigEndian.PutUint32(misc[24:28], bodySID)
	misc[28] = 0 // SliceCount
	misc[29] = 0 // PosTableCount
	buf = append(buf, misc[:]...)

	var batchHdr [8]byte
	binary.BigEndian.PutUint32(batchHdr[0:4], uint32(len(t.Entries)))
	binary.BigEndian.PutUint32(batchHdr[4:8], indexEntrySize)
	buf = append(buf, batchHdr[:]...)

	for _, e := range t.Entries {
		var entry [indexEntrySize]byte
		entry[0] = 0 // TemporalOffset
		entry[1] = 0 // KeyFrameOffset
		entry[2] = 0 // Flags
		binary.BigEndian.PutUint64(entry[3:11], e.StreamOffset)
		buf = append(buf, entry[:]...)
	}
	return buf
}

func decodeIndexTableValue(bs []byte) (*IndexTable, error) {
	if len(bs) < 16+8+30+8 {
		return nil, newResult(FORMAT, "index table segment value too short")
	}
	t := &IndexTable{
		EditRateNumerator:   int32(binary.BigEndian.Uint32(bs[16:20])),
		EditRateDenominator: int32(binary.BigEndian.Uint32(bs[20:24])),
	}
	duration := binary.BigEndian.Uint64(bs[32:40])
	rest := bs[54:]
	if len(rest) < 8 {
		return t, nil
	}
	n := int(binary.BigEndian.Uint32(rest[0:4]))
	width := int(binary.BigEndian.Uint32(rest[4:8]))
	rest = rest[8:]
	for i := 0; i < n && len(rest) >= width; i++ {
		offset := binary.BigEndian.Uint64(rest[3:11])
		t.Entries = append(t.Entries, IndexEntry{StreamOffset: offset})
		rest = rest[width:]
	}
	if uint64(len(t.Entries)) != duration {
		return t, newResult(FORMAT, "index table declared duration %d but carried %d entries", duration, len(t.Entries))
	}
	return t, nil
}
