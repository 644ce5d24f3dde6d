package iabmxf

import (
	"bytes"
	"encoding/binary"
)

// PartitionKind distinguishes the header, body and footer partition packs,
// carried in key byte 13 of the partition-pack UL. Generic-stream
// partitions are written with the body kind.
type PartitionKind int

const (
	KindHeader PartitionKind = 2
	KindBody   PartitionKind = 3
	KindFooter PartitionKind = 4
)

// Partition is the structured record a header/body/footer/generic-stream
// partition pack decodes into.
type Partition struct {
	Kind              PartitionKind
	MajorVersion      uint16
	MinorVersion      uint16
	KAGSize           uint32
	ThisPartition     uint64
	PreviousPartition uint64
	FooterPartition   uint64
	HeaderByteCount   uint64
	IndexByteCount    uint64
	IndexSID          uint32
	BodyOffset        uint64
	BodySID           uint32
	OperationalPattern UL
	EssenceContainers  []UL
}

func partitionUL(kind PartitionKind) UL {
	u := ulPartitionPrefixUL()
	u[13] = byte(kind)
	u[14] = 0x01 // closed, complete: the only combination this writer ever emits
	return u
}

func ulPartitionPrefixUL() UL {
	var u UL
	copy(u[:13], ulPartitionPrefix[:])
	return u
}

// encodeValue serializes the partition pack value (not including the KLV key
// and length) per the fixed 64-byte header plus the OP UL and the
// essence-container batch.
func (p *Partition) encodeValue() []byte {
	buf := make([]byte, 64)
	binary.BigEndian.PutUint16(buf[0:2], p.MajorVersion)
	binary.BigEndian.PutUint16(buf[2:4], p.MinorVersion)
	binary.BigEndian.PutUint32(buf[4:8], p.KAGSize)
	binary.BigEndian.PutUint64(buf[8:16], p.ThisPartition)
	binary.BigEndian.PutUint64(buf[16:24], p.PreviousPartition)
	binary.BigEndian.PutUint64(buf[24:32], p.FooterPartition)
	binary.BigEndian.PutUint64(buf[32:40], p.HeaderByteCount)
	binary.BigEndian.PutUint64(buf[40:48], p.IndexByteCount)
	binary.BigEndian.PutUint32(buf[48:52], p.IndexSID)
	binary.BigEndian.PutUint64(buf[52:60], p.BodyOffset)
	binary.BigEndian.PutUint32(buf[60:64], p.BodySID)

	buf = append(buf, p.OperationalPattern[:]...)

	// essence container batch: 4-byte count, 4-byte element width (16), then
	// the ULs themselves, the MXF Batch convention.
	var cbuf [8]byte
	binary.BigEndian.PutUint32(cbuf[0:4], uint32(len(p.EssenceContainers)))
	binary.BigEndian.PutUint32(cbuf[4:8], KeyLen)
	buf = append(buf, cbuf[:]...)
	for _, ec := range p.EssenceContainers {
		buf = append(buf, ec[:]...)
	}
	return buf
}

// decodePartitionValue parses bs (the partition pack's KLV value) into p.
// It requires at least the fixed 64-byte header.
func decodePartitionValue(bs []byte) (*Partition, error) {
	if len(bs) < 64 {
		return nil, newResult(FORMAT, "partition pack value too short: %d bytes", len(bs))
	}
	p := &Partition{
		MajorVersion:      binary.BigEndian.Uint16(bs[0:2]),
		MinorVersion:      binary.BigEndian.Uint16(bs[2:4]),
		KAGSize:           binary.BigEndian.Uint32(bs[4:8]),
		ThisPartition:     binary.BigEndian.Uint64(bs[8:16]),
		PreviousPartition: binary.BigEndian.Uint64(bs[16:24]),
		FooterPartition:   binary.BigEndian.Uint64(bs[24:32]),
		HeaderByteCount:   binary.BigEndian.Uint64(bs[32:40]),
		IndexByteCount:    binary.BigEndian.Uint64(bs[40:48]),
		IndexSID:          binary.BigEndian.Uint32(bs[48:52]),
		BodyOffset:        binary.BigEndian.Uint64(bs[52:60]),
		BodySID:           binary.BigEndian.Uint32(bs[60:64]),
	}
	rest := bs[64:]
	if len(rest) >= KeyLen {
		copy(p.OperationalPattern[:], rest[:KeyLen])
		rest = rest[KeyLen:]
	}
	if len(rest) >= 8 {
		n := int(binary.BigEndian.Uint32(rest[0:4]))
		width := int(binary.BigEndian.Uint32(rest[4:8]))
		rest = rest[8:]
		for i := 0; i < n && len(rest) >= width; i++ {
			var u UL
			copy(u[:], rest[:width])
			p.EssenceContainers = append(p.EssenceContainers, u)
			rest = rest[width:]
		}
	}
	return p, nil
}

// RIPEntry is one (BodySID, byte offset) pair of a Random Index Pack.
type RIPEntry struct {
	BodySID    uint32
	ByteOffset uint64
}

// RIP is the trailer listing every partition's start, in file order.
type RIP struct {
	Entries []RIPEntry
}

// encode serializes the RIP's KLV value: packed (ui32,ui64) pairs followed
// by a 4-byte trailing length of the whole pack (key+length+value), used by
// readers to locate the RIP by seeking from end-of-file.
func (r *RIP) encode() []byte {
	valueLen := len(r.Entries)*12 + 4
	buf := make([]byte, 0, valueLen)
	for _, e := range r.Entries {
		var pair [12]byte
		binary.BigEndian.PutUint32(pair[0:4], e.BodySID)
		binary.BigEndian.PutUint64(pair[4:12], e.ByteOffset)
		buf = append(buf, pair[:]...)
	}
	// the pack's total size, as writeKLV will frame it with a minimal BER length
	packLen := KeyLen + bestBERWidth(uint64(valueLen)) + valueLen
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], uint32(packLen))
	return append(buf, trailer[:]...)
}

func decodeRIPValue(bs []byte) (*RIP, error) {
	if len(bs)%12 != 0 {
		return nil, newResult(FORMAT, "RIP value length %d not a multiple of 12", len(bs))
	}
	rip := &RIP{}
	for i := 0; i+12 <= len(bs); i += 12 {
		rip.Entries = append(rip.Entries, RIPEntry{
			BodySID:    binary.BigEndian.Uint32(bs[i : i+4]),
			ByteOffset: binary.BigEndian.Uint64(bs[i+4 : i+12]),
		})
	}
	return rip, nil
}

func isFillItem(key UL) bool { return bytes.Equal(key[:], ULFillItem[:]) }
