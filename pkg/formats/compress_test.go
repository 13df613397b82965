package formats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("meshlet terrain "), 4096)

	for _, level := range []int{0, 1, 3, DefaultCompressionLevel} {
		compressed, err := Compress(data, level)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data), "level %d did not shrink repetitive input", level)

		out, err := Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestDecompressTruncated(t *testing.T) {
	compressed, err := Compress(bytes.Repeat([]byte{1, 2, 3, 4}, 1024), DefaultCompressionLevel)
	require.NoError(t, err)

	_, err = Decompress(compressed[:len(compressed)/2])
	assert.ErrorIs(t, err, ErrDecompress)
}
