package iabmxf

import (
	"crypto/aes"
	"crypto/sha1"
	"crypto/subtle"
	"math/big"
)

// CBCBlockSize is the AES block size used throughout this package's CBC
// primitives. AES-128 is the only key size the IAB essence profile uses.
const CBCBlockSize = 16

// AESEncContext is a CBC encryption context: an AES-128 key schedule plus a
// mutable 16-byte IV that advances with every block.
type AESEncContext struct {
	block cipher128
	iv    [CBCBlockSize]byte
}

// AESDecContext is the decryption counterpart.
type AESDecContext struct {
	block cipher128
	iv    [CBCBlockSize]byte
}

// cipher128 is the subset of crypto/aes's block-cipher interface this
// package depends on; tests can swap in a fake to exercise error paths
// without hand-rolling AES.
type cipher128 interface {
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
}

// InitKey initializes the encryption key schedule. Returns CRYPT_INIT on
// key-schedule failure, INIT if already initialized.
func (c *AESEncContext) InitKey(key [16]byte) error {
	if c.block != nil {
		return newResult(INIT, "encryption context already initialized")
	}
	b, err := aes.NewCipher(key[:])
	if err != nil {
		return newResult(CRYPTINIT, "AES key schedule: %v", err)
	}
	c.block = b
	return nil
}

// SetIVec sets the 16-byte CBC initialization vector; may be called any
// number of times for a given key.
func (c *AESEncContext) SetIVec(iv [16]byte) error {
	if c.block == nil {
		return errInit
	}
	c.iv = iv
	return nil
}

// GetIVec retrieves the current IV.
func (c *AESEncContext) GetIVec() ([16]byte, error) {
	if c.block == nil {
		return [16]byte{}, errInit
	}
	return c.iv, nil
}

// EncryptBlock encrypts blockSize bytes of pt into ct in place, CBC-style:
// for each 16-byte block, out = AES_ECB(pt XOR iv); iv = out. blockSize
// must be a positive multiple of CBCBlockSize.
func (c *AESEncContext) EncryptBlock(pt, ct []byte, blockSize int) error {
	if c.block == nil {
		return errInit
	}
	if blockSize <= 0 || blockSize%CBCBlockSize != 0 || len(pt) < blockSize || len(ct) < blockSize {
		return newResult(FAIL, "EncryptBlock: invalid block size %d", blockSize)
	}
	var tmp [CBCBlockSize]byte
	for off := 0; off < blockSize; off += CBCBlockSize {
		for i := 0; i < CBCBlockSize; i++ {
			tmp[i] = pt[off+i] ^ c.iv[i]
		}
		c.block.Encrypt(c.iv[:], tmp[:])
		copy(ct[off:off+CBCBlockSize], c.iv[:])
	}
	return nil
}

// InitKey initializes the decryption key schedule.
func (c *AESDecContext) InitKey(key [16]byte) error {
	if c.block != nil {
		return newResult(INIT, "decryption context already initialized")
	}
	b, err := aes.NewCipher(key[:])
	if err != nil {
		return newResult(CRYPTINIT, "AES key schedule: %v", err)
	}
	c.block = b
	return nil
}

// SetIVec sets the 16-byte CBC initialization vector.
func (c *AESDecContext) SetIVec(iv [16]byte) error {
	if c.block == nil {
		return errInit
	}
	c.iv = iv
	return nil
}

// DecryptBlock decrypts blockSize bytes of ct into pt in place: tmp =
// AES_ECB_DEC(ct); out = tmp XOR iv; iv advances to the just-consumed
// ciphertext block.
func (c *AESDecContext) DecryptBlock(ct, pt []byte, blockSize int) error {
	if c.block == nil {
		return errInit
	}
	if blockSize <= 0 || blockSize%CBCBlockSize != 0 || len(ct) < blockSize || len(pt) < blockSize {
		return newResult(FAIL, "DecryptBlock: invalid block size %d", blockSize)
	}
	var tmp [CBCBlockSize]byte
	var nextIV [CBCBlockSize]byte
	for off := 0; off < blockSize; off += CBCBlockSize {
		copy(nextIV[:], ct[off:off+CBCBlockSize])
		c.block.Decrypt(tmp[:], ct[off:off+CBCBlockSize])
		for i := 0; i < CBCBlockSize; i++ {
			pt[off+i] = tmp[i] ^ c.iv[i]
		}
		c.iv = nextIV
	}
	return nil
}

// LabelSet identifies which of the two key-derivation procedures an
// HMACContext should use.
type LabelSet int

const (
	LabelSetUnknown LabelSet = iota
	LabelSetInterop
	LabelSetSMPTE
)

// HMACSize is the width of the HMAC-SHA1-like digest this package produces.
const HMACSize = sha1.Size

var (
	ipadByte = byte(0x36)
	opadByte = byte(0x5c)

	// fips186Seed is the fixed 20-byte "t" constant from FIPS 186-2 Sec.
	// 3.1 as modified by Change 1.
	fips186Seed = [sha1.Size]byte{
		0x67, 0x45, 0x23, 0x01, 0xef, 0xcd, 0xab, 0x89,
		0x98, 0xba, 0xdc, 0xfe, 0x10, 0x32, 0x54, 0x76,
		0xc3, 0xd2, 0xe1, 0xf0,
	}

	// interopKeyNonce is the fixed constant XORed^Wappended to the raw key
	// for the MXF-Interop MIC key derivation (SMPTE 429.6 Sec. 7.10).
	interopKeyNonce = [16]byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
	}
)

var twoPow160 = new(big.Int).Lsh(big.NewInt(1), 160)

// DeriveSMPTEKey implements the standards-track MIC key derivation: two
// rounds of SHA-1 seeded with fips186Seed, with big-integer addition modulo
// 2^160 carried out exactly (no 128-bit shortcut, which would silently
// drop the carry).
func DeriveSMPTEKey(key [16]byte) [16]byte {
	// Round 1: x0 = SHA1(t || key); xkey1 = (key + 1 + x0) mod 2^160.
	h0 := sha1.New()
	h0.Write(fips186Seed[:])
	h0.Write(key[:])
	x0 := h0.Sum(nil)

	xkey := new(big.Int).SetBytes(key[:])
	xkey.Add(xkey, big.NewInt(1))
	xkey.Add(xkey, new(big.Int).SetBytes(x0))
	xkey.Mod(xkey, twoPow160)

	xkeyBytes := make([]byte, sha1.Size)
	xkey.FillBytes(xkeyBytes)

	// Round 2: x1 = SHA1(t || xkey1); output = first 16 bytes of x1.
	h1 := sha1.New()
	h1.Write(fips186Seed[:])
	h1.Write(xkeyBytes)
	x1 := h1.Sum(nil)

	var out [16]byte
	copy(out[:], x1[:16])
	return out
}

// DeriveInteropKey implements the MXF-Interop MIC key derivation:
// MICKey = trunc(SHA1(key || key_nonce)).
func DeriveInteropKey(key [16]byte) [16]byte {
	h := sha1.New()
	h.Write(key[:])
	h.Write(interopKeyNonce[:])
	sum := h.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

// HMACContext is the HMAC-SHA1-like integrity context: Init -> Update* ->
// Finalize -> Read. Using Update after Finalize, or reading before
// Finalize, returns INIT.
type HMACContext struct {
	key     [16]byte
	inner   interface{ Write([]byte) (int, error) }
	final   bool
	digest  [HMACSize]byte
}

// InitKey derives the MIC key per setType and resets the context to accept
// Update calls.
func (h *HMACContext) InitKey(key [16]byte, setType LabelSet) error {
	switch setType {
	case LabelSetInterop:
		h.key = DeriveInteropKey(key)
	case LabelSetSMPTE:
		h.key = DeriveSMPTEKey(key)
	default:
		return errInit
	}
	h.reset()
	return nil
}

func (h *HMACContext) reset() {
	h.final = false
	h.digest = [HMACSize]byte{}
	sha := sha1.New()
	var xorBuf [16]byte
	for i := range xorBuf {
		xorBuf[i] = h.key[i] ^ ipadByte
	}
	sha.Write(xorBuf[:])
	h.inner = sha
}

// Reset clears accumulated Update data without re-deriving the key.
func (h *HMACContext) Reset() { h.reset() }

// Update feeds more of the authenticated preimage into the running hash.
// Returns INIT if called after Finalize.
func (h *HMACContext) Update(buf []byte) error {
	if h.inner == nil || h.final {
		return errInit
	}
	h.inner.Write(buf)
	return nil
}

// Finalize completes the inner hash and wraps it with the outer
// H(K XOR opad, inner) pass.
func (h *HMACContext) Finalize() error {
	if h.inner == nil || h.final {
		return errInit
	}
	innerSum := h.inner.(interface{ Sum([]byte) []byte }).Sum(nil)

	outer := sha1.New()
	var xorBuf [16]byte
	for i := range xorBuf {
		xorBuf[i] = h.key[i] ^ opadByte
	}
	outer.Write(xorBuf[:])
	outer.Write(innerSum)
	copy(h.digest[:], outer.Sum(nil))
	h.final = true
	return nil
}

// GetHMACValue copies the finalized digest into buf (must be HMACSize
// bytes). Returns INIT if not yet finalized.
func (h *HMACContext) GetHMACValue(buf []byte) error {
	if !h.final {
		return errInit
	}
	copy(buf, h.digest[:])
	return nil
}

// TestHMACValue compares buf against the finalized digest in constant
// time. Returns HMACFAIL on mismatch, INIT if not yet finalized.
func (h *HMACContext) TestHMACValue(buf []byte) error {
	if !h.final {
		return errInit
	}
	if subtle.ConstantTimeCompare(buf, h.digest[:]) != 1 {
		return errHMACFail
	}
	return nil
}
