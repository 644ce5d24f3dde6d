package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() [16]byte {
	return [16]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0xfe, 0xdc, 0xba, 0x98, 0x76, 0x54, 0x32, 0x10}
}

func TestAESCBCRoundTrip(t *testing.T) {
	key := testKey()
	var iv [16]byte
	for i := range iv {
		iv[i] = byte(i)
	}
	plaintext := []byte("0123456789abcdef0123456789abcdef0123456789abcdef") // 48 bytes
	padded := padToBlock(plaintext)

	var enc AESEncContext
	require.NoError(t, enc.InitKey(key))
	require.NoError(t, enc.SetIVec(iv))
	ct := make([]byte, len(padded))
	require.NoError(t, enc.EncryptBlock(padded, ct, len(padded)))

	var dec AESDecContext
	require.NoError(t, dec.InitKey(key))
	require.NoError(t, dec.SetIVec(iv))
	pt := make([]byte, len(ct))
	require.NoError(t, dec.DecryptBlock(ct, pt, len(ct)))

	assert.Equal(t, padded, pt)
	assert.NotEqual(t, padded, ct, "ciphertext should not equal plaintext")
}

func TestAESEncContextRequiresInit(t *testing.T) {
	var enc AESEncContext
	err := enc.SetIVec([16]byte{})
	assert.True(t, Is(err, INIT))
}

func TestAESEncContextDoubleInit(t *testing.T) {
	var enc AESEncContext
	require.NoError(t, enc.InitKey(testKey()))
	err := enc.InitKey(testKey())
	assert.True(t, Is(err, INIT))
}

func TestEncryptBlockRejectsNonMultipleOf16(t *testing.T) {
	var enc AESEncContext
	require.NoError(t, enc.InitKey(testKey()))
	err := enc.EncryptBlock(make([]byte, 20), make([]byte, 20), 20)
	assert.True(t, Is(err, FAIL))
}

func TestDeriveKeysAreDeterministicAndDistinct(t *testing.T) {
	key := testKey()
	smpte1 := DeriveSMPTEKey(key)
	smpte2 := DeriveSMPTEKey(key)
	assert.Equal(t, smpte1, smpte2)

	interop1 := DeriveInteropKey(key)
	interop2 := DeriveInteropKey(key)
	assert.Equal(t, interop1, interop2)

	assert.NotEqual(t, smpte1, interop1, "the two key derivations must diverge for the same raw key")
}

func TestHMACContextRoundTrip(t *testing.T) {
	var h HMACContext
	require.NoError(t, h.InitKey(testKey(), LabelSetSMPTE))
	require.NoError(t, h.Update([]byte("essence frame payload")))
	require.NoError(t, h.Finalize())

	var digest [HMACSize]byte
	require.NoError(t, h.GetHMACValue(digest[:]))
	assert.NoError(t, h.TestHMACValue(digest[:]))

	tampered := digest
	tampered[0] ^= 0xff
	assert.True(t, Is(h.TestHMACValue(tampered[:]), HMACFAIL))
}

func TestHMACContextUpdateAfterFinalizeFails(t *testing.T) {
	var h HMACContext
	require.NoError(t, h.InitKey(testKey(), LabelSetInterop))
	require.NoError(t, h.Finalize())
	err := h.Update([]byte("too late"))
	assert.True(t, Is(err, INIT))
}

func TestHMACContextResetAllowsReuse(t *testing.T) {
	var h HMACContext
	require.NoError(t, h.InitKey(testKey(), LabelSetSMPTE))
	require.NoError(t, h.Update([]byte("first message")))
	require.NoError(t, h.Finalize())
	var first [HMACSize]byte
	require.NoError(t, h.GetHMACValue(first[:]))

	h.Reset()
	require.NoError(t, h.Update([]byte("second message")))
	require.NoError(t, h.Finalize())
	var second [HMACSize]byte
	require.NoError(t, h.GetHMACValue(second[:]))

	assert.NotEqual(t, first, second)
}
