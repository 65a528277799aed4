package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func TestCipherOpensWhatItSeals(t *testing.T) {
	c, err := NewCipherFromBase64(testKey)
	require.NoError(t, err)

	sealed, err := c.Seal("shpat_abc123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "shpat")

	again, err := c.Seal("shpat_abc123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "shpat_abc123", plain)
}

func TestCipherRejectsTampering(t *testing.T) {
	c, err := NewCipherFromBase64(testKey)
	require.NoError(t, err)
	sealed, err := c.Seal("secret")
	require.NoError(t, err)

	raw, _ := base64.RawURLEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	_, err = c.Open(base64.RawURLEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = c.Open("AA")
	assert.Error(t, err)
}

func TestNewCipherValidatesKey(t *testing.T) {
	_, err := NewCipherFromBase64(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
	_, err = NewCipherFromBase64("%%%")
	assert.Error(t, err)
}
