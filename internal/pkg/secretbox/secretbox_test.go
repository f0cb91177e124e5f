package secretbox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestNew_KeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestSealOpen(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"), "row-1")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "JBSWY3DPEHPK3PXP")

	plain, err := box.Open(sealed, "row-1")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", string(plain))

	again, err := box.Seal(plain, "row-1")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestOpen_Failures(t *testing.T) {
	box, err := New(testKey())
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("secret"), "row-1")
	require.NoError(t, err)

	_, err = box.Open(sealed, "row-2")
	assert.ErrorIs(t, err, ErrOpen)

	tampered := append([]byte{}, sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = box.Open(tampered, "row-1")
	assert.ErrorIs(t, err, ErrOpen)

	_, err = box.Open(sealed[:10], "row-1")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = box.Seal(nil, "row-1")
	assert.ErrorIs(t, err, ErrEmpty)
}
