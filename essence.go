package iabmxf

import (
	"crypto/subtle"
	"encoding/binary"
)

// IntegrityPack is the trailing structure appended inside an encrypted
// essence triplet: the essence UL, the frame number, and an HMAC over the
// triplet's authenticated preimage. Verification recomputes the MAC over
// the same preimage and compares under constant time.
type IntegrityPack struct {
	EssenceUL   UL
	FrameNumber uint64
	MAC         [HMACSize]byte
}

// integrityPackSize is the encoded width: 16-byte UL + 8-byte frame number
// + 20-byte MAC.
const integrityPackSize = KeyLen + 8 + HMACSize

func (p *IntegrityPack) encode() []byte {
	buf := make([]byte, integrityPackSize)
	copy(buf[0:16], p.EssenceUL[:])
	binary.BigEndian.PutUint64(buf[16:24], p.FrameNumber)
	copy(buf[24:44], p.MAC[:])
	return buf
}

func decodeIntegrityPack(bs []byte) (*IntegrityPack, error) {
	if len(bs) < integrityPackSize {
		return nil, newResult(FORMAT, "integrity pack truncated")
	}
	p := &IntegrityPack{FrameNumber: binary.BigEndian.Uint64(bs[16:24])}
	copy(p.EssenceUL[:], bs[0:16])
	copy(p.MAC[:], bs[24:44])
	return p, nil
}

// buildIntegrityPack computes the MAC over essenceUL || frameNumber ||
// plaintext and returns the encoded pack.
func buildIntegrityPack(hmac *HMACContext, essenceUL UL, frameNumber uint64, plaintext []byte) (*IntegrityPack, error) {
	hmac.Reset()
	var frameBuf [8]byte
	binary.BigEndian.PutUint64(frameBuf[:], frameNumber)
	if err := hmac.Update(essenceUL[:]); err != nil {
		return nil, err
	}
	if err := hmac.Update(frameBuf[:]); err != nil {
		return nil, err
	}
	if err := hmac.Update(plaintext); err != nil {
		return nil, err
	}
	if err := hmac.Finalize(); err != nil {
		return nil, err
	}
	p := &IntegrityPack{EssenceUL: essenceUL, FrameNumber: frameNumber}
	if err := hmac.GetHMACValue(p.MAC[:]); err != nil {
		return nil, err
	}
	return p, nil
}

// verifyIntegrityPack recomputes the MAC over the same preimage and
// compares it against pack in constant time.
func verifyIntegrityPack(hmac *HMACContext, pack *IntegrityPack, plaintext []byte) error {
	computed, err := buildIntegrityPack(hmac, pack.EssenceUL, pack.FrameNumber, plaintext)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(computed.MAC[:], pack.MAC[:]) == 1 {
		return nil
	}
	return errHMACFail
}

// EncryptedTriplet is the outer KLV value wrapping an encrypted essence
// payload: len(UUID)*UUID, len(u64)*plaintext_offset, len(UL)*essence_UL,
// len(u64)*source_length, len(esv)*encrypted_source_value, and an optional
// trailing integrity pack.
type EncryptedTriplet struct {
	ContextID       UUID
	PlaintextOffset uint64
	EssenceUL       UL
	SourceLength    uint64
	EncryptedValue  []byte
	Integrity       *IntegrityPack
}

// encode serializes the triplet's value using 5-byte long-form BER length
// prefixes (marker 0x84 plus four value bytes) before each field, the
// encrypted source value included.
func (t *EncryptedTriplet) encode() ([]byte, error) {
	var buf []byte
	var ok bool

	buf, ok = writeBER(buf, KeyLen, 5)
	if !ok {
		return nil, newResult(FAIL, "encode triplet: context id length")
	}
	buf = append(buf, t.ContextID[:]...)

	buf, ok = writeBER(buf, 8, 5)
	if !ok {
		return nil, newResult(FAIL, "encode triplet: plaintext offset length")
	}
	var pofs [8]byte
	binary.BigEndian.PutUint64(pofs[:], t.PlaintextOffset)
	buf = append(buf, pofs[:]...)

	buf, ok = writeBER(buf, KeyLen, 5)
	if !ok {
		return nil, newResult(FAIL, "encode triplet: essence UL length")
	}
	buf = append(buf, t.EssenceUL[:]...)

	buf, ok = writeBER(buf, 8, 5)
	if !ok {
		return nil, newResult(FAIL, "encode triplet: source length field")
	}
	var slen [8]byte
	binary.BigEndian.PutUint64(slen[:], t.SourceLength)
	buf = append(buf, slen[:]...)

	buf, ok = writeBER(buf, uint64(len(t.EncryptedValue)), 5)
	if !ok {
		return nil, newResult(FAIL, "encode triplet: ESV length")
	}
	buf = append(buf, t.EncryptedValue...)

	if t.Integrity != nil {
		buf = append(buf, t.Integrity.encode()...)
	}
	return buf, nil
}

// decodeEncryptedTriplet parses bs (an encrypted essence KLV's value) into
// an EncryptedTriplet, using readTestBER to assert each fixed field's
// declared length before consuming it.
func decodeEncryptedTriplet(bs []byte, expectIntegrity bool) (*EncryptedTriplet, error) {
	cursor := bs
	t := &EncryptedTriplet{}

	if !readTestBER(&cursor, KeyLen) || len(cursor) < KeyLen {
		return nil, newResult(FORMAT, "encrypted triplet: bad context id length")
	}
	copy(t.ContextID[:], cursor[:KeyLen])
	cursor = cursor[KeyLen:]

	if !readTestBER(&cursor, 8) || len(cursor) < 8 {
		return nil, newResult(FORMAT, "encrypted triplet: bad plaintext offset length")
	}
	t.PlaintextOffset = binary.BigEndian.Uint64(cursor[:8])
	cursor = cursor[8:]

	if !readTestBER(&cursor, KeyLen) || len(cursor) < KeyLen {
		return nil, newResult(FORMAT, "encrypted triplet: bad essence UL length")
	}
	copy(t.EssenceUL[:], cursor[:KeyLen])
	cursor = cursor[KeyLen:]

	if !readTestBER(&cursor, 8) || len(cursor) < 8 {
		return nil, newResult(FORMAT, "encrypted triplet: bad source length field")
	}
	t.SourceLength = binary.BigEndian.Uint64(cursor[:8])
	cursor = cursor[8:]

	esvLen, width, ok := berLength(cursor)
	if !ok {
		return nil, newResult(FORMAT, "encrypted triplet: bad ESV length")
	}
	cursor = cursor[width:]
	if uint64(len(cursor)) < esvLen {
		return nil, newResult(FORMAT, "encrypted triplet: ESV truncated")
	}
	t.EncryptedValue = cursor[:esvLen]
	cursor = cursor[esvLen:]

	if expectIntegrity {
		pack, err := decodeIntegrityPack(cursor)
		if err != nil {
			return nil, err
		}
		t.Integrity = pack
	}
	return t, nil
}

// EncryptFrame builds a complete encrypted essence triplet for one frame of
// plaintext. Reader.ReadFrame reads only preamble-TL/frame-TL units, so a
// clip carrying protected essence stores the triplet as the frame payload
// of EncodeIABFrame before Writer.WriteFrame. Bytes before
// plaintextOffset are left unencrypted (e.g. an unprotected frame header);
// the remainder is zero-padded up to a 16-byte boundary before CBC
// encryption, since EncryptBlock only operates on exact block multiples.
// If hmac is non-nil an integrity pack authenticating essenceUL, frame
// number, and the full plaintext is appended.
func EncryptFrame(enc *AESEncContext, hmac *HMACContext, contextID UUID, essenceUL UL, frameNumber uint64, plaintext []byte, plaintextOffset int) ([]byte, error) {
	if plaintextOffset < 0 || plaintextOffset > len(plaintext) {
		return nil, newResult(FAIL, "EncryptFrame: plaintextOffset %d out of range", plaintextOffset)
	}
	clear := plaintext[:plaintextOffset]
	toEncrypt := plaintext[plaintextOffset:]
	padded := padToBlock(toEncrypt)

	ct := make([]byte, len(padded))
	if err := enc.EncryptBlock(padded, ct, len(padded)); err != nil {
		return nil, err
	}

	esv := make([]byte, 0, len(clear)+len(ct))
	esv = append(esv, clear...)
	esv = append(esv, ct...)

	t := &EncryptedTriplet{
		ContextID:       contextID,
		PlaintextOffset: uint64(plaintextOffset),
		EssenceUL:       essenceUL,
		SourceLength:    uint64(len(plaintext)),
		EncryptedValue:  esv,
	}
	if hmac != nil {
		pack, err := buildIntegrityPack(hmac, essenceUL, frameNumber, plaintext)
		if err != nil {
			return nil, err
		}
		t.Integrity = pack
	}
	return t.encode()
}

// DecryptFrame inverts EncryptFrame: it parses the triplet, decrypts the
// encrypted tail, and (if hmac is non-nil) verifies the integrity pack
// against the recovered plaintext.
func DecryptFrame(dec *AESDecContext, hmac *HMACContext, bs []byte) ([]byte, error) {
	t, err := decodeEncryptedTriplet(bs, hmac != nil)
	if err != nil {
		return nil, err
	}
	plaintextOffset := int(t.PlaintextOffset)
	if plaintextOffset > len(t.EncryptedValue) {
		return nil, newResult(FORMAT, "decrypted frame: plaintext offset exceeds ESV length")
	}
	clear := t.EncryptedValue[:plaintextOffset]
	ct := t.EncryptedValue[plaintextOffset:]
	if len(ct)%CBCBlockSize != 0 {
		return nil, newResult(FORMAT, "decrypted frame: ciphertext not block-aligned")
	}

	pt := make([]byte, len(ct))
	if len(ct) > 0 {
		if err := dec.DecryptBlock(ct, pt, len(ct)); err != nil {
			return nil, err
		}
	}

	full := append(append([]byte{}, clear...), pt...)
	if uint64(len(full)) < t.SourceLength {
		return nil, newResult(FORMAT, "decrypted frame: shorter than declared source length")
	}
	plaintext := full[:t.SourceLength]

	if hmac != nil && t.Integrity != nil {
		if err := verifyIntegrityPack(hmac, t.Integrity, plaintext); err != nil {
			return nil, err
		}
	}
	return plaintext, nil
}

func padToBlock(b []byte) []byte {
	rem := len(b) % CBCBlockSize
	if rem == 0 {
		return b
	}
	return append(append([]byte{}, b...), make([]byte, CBCBlockSize-rem)...)
}
