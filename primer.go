package iabmxf

import (
	"encoding/binary"
	"sort"
)

// primer maps 2-byte local tags to the 16-byte ULs they stand for inside a
// partition's Primer Pack, and back. Local tags are assigned on first use
// in allocation order starting at 0x0001.
type primer struct {
	tagToUL map[uint16]UL
	ulToTag map[UL]uint16
	next    uint16
}

func newPrimer() *primer {
	return &primer{tagToUL: map[uint16]UL{}, ulToTag: map[UL]uint16{}, next: 1}
}

func (p *primer) tagFor(u UL) uint16 {
	if t, ok := p.ulToTag[u]; ok {
		return t
	}
	t := p.next
	p.next++
	p.tagToUL[t] = u
	p.ulToTag[u] = t
	return t
}

func (p *primer) ulFor(tag uint16) (UL, bool) {
	u, ok := p.tagToUL[tag]
	return u, ok
}

// encode serializes the primer pack's value: a Batch of (tag, UL) pairs,
// sorted by tag for determinism.
func (p *primer) encode() []byte {
	tags := make([]uint16, 0, len(p.tagToUL))
	for t := range p.tagToUL {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(tags)))
	binary.BigEndian.PutUint32(buf[4:8], 18) // 2-byte tag + 16-byte UL
	for _, t := range tags {
		var entry [18]byte
		binary.BigEndian.PutUint16(entry[0:2], t)
		u := p.tagToUL[t]
		copy(entry[2:], u[:])
		buf = append(buf, entry[:]...)
	}
	return buf
}

func decodePrimerValue(bs []byte) (*primer, error) {
	if len(bs) < 8 {
		return nil, newResult(FORMAT, "primer pack value too short")
	}
	n := int(binary.BigEndian.Uint32(bs[0:4]))
	width := int(binary.BigEndian.Uint32(bs[4:8]))
	if width != 18 {
		return nil, newResult(FORMAT, "unexpected primer entry width %d", width)
	}
	p := newPrimer()
	rest := bs[8:]
	for i := 0; i < n && len(rest) >= width; i++ {
		tag := binary.BigEndian.Uint16(rest[0:2])
		var u UL
		copy(u[:], rest[2:18])
		p.tagToUL[tag] = u
		p.ulToTag[u] = tag
		if tag >= p.next {
			p.next = tag + 1
		}
		rest = rest[width:]
	}
	return p, nil
}

// localSet is one (tag, value) entry of a Set employing 2-byte local-tag
// encoding and a 2-byte length, the MXF local-set convention.
type localSet struct {
	Tag   uint16
	Value []byte
}

func encodeLocalSets(sets []localSet) []byte {
	buf := make([]byte, 0, len(sets)*8)
	for _, s := range sets {
		var hdr [4]byte
		binary.BigEndian.PutUint16(hdr[0:2], s.Tag)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(s.Value)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, s.Value...)
	}
	return buf
}

func decodeLocalSets(bs []byte) []localSet {
	var out []localSet
	for len(bs) >= 4 {
		tag := binary.BigEndian.Uint16(bs[0:2])
		l := int(binary.BigEndian.Uint16(bs[2:4]))
		if len(bs) < 4+l {
			break
		}
		out = append(out, localSet{Tag: tag, Value: bs[4 : 4+l]})
		bs = bs[4+l:]
	}
	return out
}
