package iabmxf

import (
	"bytes"
	"crypto/rand"
	"fmt"
)

// KeyLen is the fixed width of an MXF Key (Universal Label) and of an
// InstanceUID/UUID.
const KeyLen = 16

// UL is a 16-byte Universal Label, the key half of an MXF KLV triplet.
type UL [KeyLen]byte

func (u UL) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x.%02x%02x%02x%02x.%02x%02x%02x%02x.%02x%02x%02x%02x",
		u[0], u[1], u[2], u[3], u[4], u[5], u[6], u[7],
		u[8], u[9], u[10], u[11], u[12], u[13], u[14], u[15])
}

// Equal is exact 16-byte equality.
func (u UL) Equal(o UL) bool { return u == o }

// EqualEssenceFamily compares two ULs ignoring byte 15 (the "stream
// number" byte), since a file may legitimately carry a different stream
// number than the one the caller constructed.
func (u UL) EqualEssenceFamily(o UL) bool {
	return bytes.Equal(u[:15], o[:15])
}

// UUID is a 16-byte unique identifier, used for InstanceUID, package IDs,
// and the cryptographic ContextID.
type UUID [KeyLen]byte

func (id UUID) String() string { return UL(id).String() }

// NewUUID generates a UUID from a cryptographically-seeded random source.
func NewUUID() (UUID, error) {
	var id UUID
	if _, err := rand.Read(id[:]); err != nil {
		return UUID{}, err
	}
	return id, nil
}

// MDDEntry is a registry entry: a symbolic name paired with its 16-byte UL.
type MDDEntry struct {
	Name string
	UL   UL
}

func ul(bs ...byte) UL {
	var u UL
	copy(u[:], bs)
	return u
}

// Well-known Universal Labels used by the partition, primer, index, and
// essence-container layers.
var (
	ULFillItem = ul(0x06, 0x0e, 0x2b, 0x34, 0x01, 0x01, 0x01, 0x02,
		0x03, 0x01, 0x02, 0x10, 0x01, 0x00, 0x00, 0x00)

	// partition-kind ULs differ only in byte 13 (kind) and byte 14 (closed/complete)
	ulPartitionPrefix = [13]byte{0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
		0x0d, 0x01, 0x02, 0x01, 0x01}

	ULPrimerPack = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
		0x0d, 0x01, 0x02, 0x01, 0x01, 0x05, 0x01, 0x00)

	ULIndexTableSegment = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01,
		0x0d, 0x01, 0x02, 0x01, 0x01, 0x10, 0x01, 0x00)

	ULRandomIndexPack = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
		0x0d, 0x01, 0x02, 0x01, 0x01, 0x11, 0x01, 0x00)

	ULOPAtom       = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01, 0x0d, 0x01, 0x02, 0x01, 0x10, 0x00, 0x00, 0x00)
	ULInteropOPAtom = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01, 0x0d, 0x01, 0x02, 0x01, 0x01, 0x00, 0x00, 0x00)

	// IMF_IABEssenceClipWrappedElement, before Writer.OpenWrite forces
	// bytes 13 and 15.
	ULIABEssenceClipWrappedElement = ul(0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x01, 0x01,
		0x0d, 0x01, 0x03, 0x01, 0x20, 0x01, 0x01, 0x00)

	ULIABEssenceClipWrappedContainer = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01,
		0x0d, 0x01, 0x03, 0x01, 0x02, 0x20, 0x01, 0x01)

	ULImmersiveAudioCoding = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x0d,
		0x04, 0x02, 0x02, 0x03, 0x04, 0x01, 0x00, 0x00)

	ULIABSoundfield = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x0d,
		0x03, 0x02, 0x02, 0x10, 0x04, 0x01, 0x00, 0x00)

	ULSoundDataDef = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01,
		0x03, 0x02, 0x02, 0x01, 0x01, 0x00, 0x00, 0x00)

	ULDescriptiveMetaDataDef = ul(0x06, 0x0e, 0x2b, 0x34, 0x04, 0x01, 0x01, 0x01,
		0x03, 0x02, 0x02, 0x01, 0x04, 0x00, 0x00, 0x00)

	ULTextBasedFramework = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x01, 0x01, 0x09,
		0x0d, 0x01, 0x04, 0x01, 0x03, 0x11, 0x00, 0x00)

	ULGenericStreamPartition = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x05, 0x01, 0x01,
		0x0d, 0x01, 0x02, 0x01, 0x01, 0x03, 0x01, 0x00)

	ULGenericStreamDataElement = ul(0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x01, 0x01,
		0x0d, 0x01, 0x03, 0x01, 0x00, 0x00, 0x00, 0x00)

	// Encrypted essence triplet keys (MXF SMPTE and Interop variants); byte
	// 15 is the stream number and is ignored on comparison.
	ULCryptEssence = ul(0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x01, 0x01,
		0x0d, 0x01, 0x03, 0x01, 0x02, 0x7e, 0x01, 0x00)
	ULInteropCryptEssence = ul(0x06, 0x0e, 0x2b, 0x34, 0x01, 0x02, 0x01, 0x01,
		0x0d, 0x01, 0x03, 0x01, 0x02, 0x0c, 0x01, 0x00)
)

// isPartitionPack reports whether key is one of the four partition-kind
// ULs (header=0x02, body=0x03, footer=0x04, generic-stream body variants).
func isPartitionPack(key UL) bool {
	return bytes.Equal(key[:13], ulPartitionPrefix[:]) && key[13] >= 2 && key[13] <= 4
}
