package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTextRoundTrip(t *testing.T) {
	original := strings.Repeat("extracted lecture text with plenty of repetition ", 100)

	compressed, algorithm, err := CompressText(original)
	require.NoError(t, err)
	assert.Equal(t, CompressionBrotli, algorithm)
	assert.Less(t, len(compressed), len(original))

	restored, err := DecompressText(compressed, algorithm)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestCompressTextSmallPayloadSkipsCompression(t *testing.T) {
	original := "short note"

	compressed, algorithm, err := CompressText(original)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, algorithm)
	assert.Equal(t, original, string(compressed))
}

func TestCompressDataGzipRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("gzip payload ", 200))

	compressed, err := CompressData(original, CompressionGzip)
	require.NoError(t, err)

	restored, err := DecompressData(compressed, CompressionGzip)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestCompressDataUnsupportedAlgorithm(t *testing.T) {
	_, err := CompressData([]byte("data"), CompressionAlgorithm("zstd"))
	assert.Error(t, err)

	_, err = DecompressData([]byte("data"), CompressionAlgorithm("zstd"))
	assert.Error(t, err)
}

func TestCompressDataEmptyInput(t *testing.T) {
	out, err := CompressData(nil, CompressionBrotli)
	require.NoError(t, err)
	assert.Empty(t, out)
}
