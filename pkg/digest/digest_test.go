package digest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestAlgorithm_KnownVectors(t *testing.T) {
	tests := []struct {
		algo Algorithm
		in   string
		want string
	}{
		{SHA1, "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{SHA1, "hello", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{SHA256, "hello", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{BLAKE3, "", "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo)+"/"+tt.in, func(t *testing.T) {
			got := tt.algo.Sum([]byte(tt.in))
			assert.Equal(t, tt.want, got.String())
			assert.True(t, tt.algo.Matches(got))
		})
	}
}

func TestAlgorithm_HexLen(t *testing.T) {
	assert.Equal(t, 40, SHA1.HexLen())
	assert.Equal(t, 64, SHA256.HexLen())
	assert.Equal(t, 64, BLAKE3.HexLen())
}

func TestSumReader_MatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("minecraft"), 10000)

	for _, algo := range []Algorithm{SHA1, SHA256, BLAKE3} {
		h, n, err := algo.SumReader(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)
		assert.Equal(t, algo.Sum(data), h, "stream and buffer digests must agree for %s", algo)
	}
}

func TestSumReader_ReadError(t *testing.T) {
	_, _, err := SHA1.SumReader(brokenReader{})
	assert.ErrorContains(t, err, "disk on fire")
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA1, a)

	a, err = ParseAlgorithm(" BLAKE3 ")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, a)

	_, err = ParseAlgorithm("md5")
	assert.ErrorContains(t, err, "unsupported digest algorithm")
}

func TestSum_UsesDefault(t *testing.T) {
	assert.Equal(t, SHA1.Sum([]byte("x")), Sum([]byte("x")))
}
