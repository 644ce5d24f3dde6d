package iabmxf

import "encoding/binary"

// An IAB frame written into a clip is two self-delimiting TL units back to
// back: a preamble (IA bitstream-level frame header) and the frame payload
// itself. The container's index table stores only each frame's starting
// stream offset, so ReadFrame has to recover the frame's length by parsing
// these TLs rather than by subtracting consecutive offsets.
const (
	tlTagPreamble byte = 0x01
	tlTagFrame    byte = 0x02
	tlHeaderSize       = 5 // 1-byte tag + 4-byte big-endian length
)

// EncodeIABFrame concatenates a preamble and a frame payload into the
// buffer WriteFrame expects: preamble-TL, preamble, frame-TL, frame.
func EncodeIABFrame(preamble, frame []byte) []byte {
	buf := make([]byte, 0, 2*tlHeaderSize+len(preamble)+len(frame))
	buf = appendTL(buf, tlTagPreamble, preamble)
	buf = appendTL(buf, tlTagFrame, frame)
	return buf
}

func appendTL(buf []byte, tag byte, payload []byte) []byte {
	var hdr [tlHeaderSize]byte
	hdr[0] = tag
	binary.BigEndian.PutUint32(hdr[1:5], uint32(len(payload)))
	buf = append(buf, hdr[:]...)
	return append(buf, payload...)
}

// DecodeIABFrame splits a buffer produced by EncodeIABFrame (or read back
// by ReadFrame) into its preamble and frame payload.
func DecodeIABFrame(buf []byte) (preamble, frame []byte, err error) {
	preamble, rest, err := readTL(buf, tlTagPreamble)
	if err != nil {
		return nil, nil, err
	}
	frame, _, err = readTL(rest, tlTagFrame)
	if err != nil {
		return nil, nil, err
	}
	return preamble, frame, nil
}

func readTL(buf []byte, wantTag byte) (payload, rest []byte, err error) {
	if len(buf) < tlHeaderSize {
		return nil, nil, newResult(FORMAT, "IAB frame: truncated TL header")
	}
	if buf[0] != wantTag {
		return nil, nil, newResult(FORMAT, "IAB frame: expected TL tag 0x%02x, got 0x%02x", wantTag, buf[0])
	}
	n := binary.BigEndian.Uint32(buf[1:5])
	buf = buf[tlHeaderSize:]
	if uint64(len(buf)) < uint64(n) {
		return nil, nil, newResult(FORMAT, "IAB frame: TL payload truncated")
	}
	return buf[:n], buf[n:], nil
}

// readFrameBuffer reads one complete preamble-TL+frame-TL unit starting at
// f's current position, returning the exact bytes EncodeIABFrame produced
// for it (so callers can round-trip through DecodeIABFrame).
func readFrameBuffer(f File) ([]byte, error) {
	var hdr [tlHeaderSize]byte
	if err := readFull(f, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != tlTagPreamble {
		return nil, newResult(FORMAT, "IAB frame: expected preamble TL, got tag 0x%02x", hdr[0])
	}
	preambleLen := binary.BigEndian.Uint32(hdr[1:5])
	preamble := make([]byte, preambleLen)
	if err := readFull(f, preamble); err != nil {
		return nil, err
	}

	var fhdr [tlHeaderSize]byte
	if err := readFull(f, fhdr[:]); err != nil {
		return nil, err
	}
	if fhdr[0] != tlTagFrame {
		return nil, newResult(FORMAT, "IAB frame: expected frame TL, got tag 0x%02x", fhdr[0])
	}
	frameLen := binary.BigEndian.Uint32(fhdr[1:5])
	frame := make([]byte, frameLen)
	if err := readFull(f, frame); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 2*tlHeaderSize+len(preamble)+len(frame))
	buf = append(buf, hdr[:]...)
	buf = append(buf, preamble...)
	buf = append(buf, fhdr[:]...)
	buf = append(buf, frame...)
	return buf, nil
}

// readFull reads exactly len(p) bytes from f, the File-interface analogue
// of io.ReadFull.
func readFull(f File, p []byte) error {
	read := 0
	for read < len(p) {
		n, err := f.Read(p[read:])
		if n > 0 {
			read += n
		}
		if err != nil {
			return newResult(READFAIL, "short read: %v", err)
		}
		if n == 0 {
			return newResult(READFAIL, "short read: no progress")
		}
	}
	return nil
}
