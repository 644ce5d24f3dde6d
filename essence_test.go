package iabmxf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptFrameRoundTrip(t *testing.T) {
	key := testKey()
	contextID, err := NewUUID()
	require.NoError(t, err)

	var enc AESEncContext
	require.NoError(t, enc.InitKey(key))
	var iv [16]byte
	require.NoError(t, enc.SetIVec(iv))

	var hmac HMACContext
	require.NoError(t, hmac.InitKey(key, LabelSetSMPTE))

	plaintext := []byte("an IAB frame payload that isn't block-aligned")
	wire, err := EncryptFrame(&enc, &hmac, contextID, ULIABEssenceClipWrappedElement, 7, plaintext, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, wire)

	var dec AESDecContext
	require.NoError(t, dec.InitKey(key))
	require.NoError(t, dec.SetIVec(iv))
	var hmac2 HMACContext
	require.NoError(t, hmac2.InitKey(key, LabelSetSMPTE))

	got, err := DecryptFrame(&dec, &hmac2, wire)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptFrameWithPlaintextOffset(t *testing.T) {
	key := testKey()
	contextID, err := NewUUID()
	require.NoError(t, err)

	var enc AESEncContext
	require.NoError(t, enc.InitKey(key))
	var iv [16]byte
	require.NoError(t, enc.SetIVec(iv))

	plaintext := append([]byte("CLEARHDR"), []byte("the rest of the frame gets encrypted")...)
	wire, err := EncryptFrame(&enc, nil, contextID, ULIABEssenceClipWrappedElement, 0, plaintext, 8)
	require.NoError(t, err)

	var dec AESDecContext
	require.NoError(t, dec.InitKey(key))
	require.NoError(t, dec.SetIVec(iv))
	got, err := DecryptFrame(&dec, nil, wire)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptFrameDetectsTamperedIntegrityPack(t *testing.T) {
	key := testKey()
	contextID, err := NewUUID()
	require.NoError(t, err)

	var enc AESEncContext
	require.NoError(t, enc.InitKey(key))
	var iv [16]byte
	require.NoError(t, enc.SetIVec(iv))
	var hmac HMACContext
	require.NoError(t, hmac.InitKey(key, LabelSetInterop))

	wire, err := EncryptFrame(&enc, &hmac, contextID, ULIABEssenceClipWrappedElement, 3, []byte("payload"), 0)
	require.NoError(t, err)

	// flip a bit inside the ciphertext, which should invalidate the MAC.
	wire[len(wire)-integrityPackSize-1] ^= 0x01

	var dec AESDecContext
	require.NoError(t, dec.InitKey(key))
	require.NoError(t, dec.SetIVec(iv))
	var hmac2 HMACContext
	require.NoError(t, hmac2.InitKey(key, LabelSetInterop))

	_, err = DecryptFrame(&dec, &hmac2, wire)
	assert.True(t, Is(err, HMACFAIL))
}

func TestIntegrityPackEncodeDecode(t *testing.T) {
	p := &IntegrityPack{EssenceUL: ULIABEssenceClipWrappedElement, FrameNumber: 42}
	for i := range p.MAC {
		p.MAC[i] = byte(i)
	}
	buf := p.encode()
	assert.Len(t, buf, integrityPackSize)

	got, err := decodeIntegrityPack(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}
