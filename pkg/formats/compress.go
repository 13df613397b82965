package formats

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel favours artifact size over encode time: artifacts
// are compressed once per build and decompressed on every load.
const DefaultCompressionLevel = 19

// maxDecodedSize caps decompressed artifact size.
const maxDecodedSize = 1 << 30

// ErrDecompress is returned for corrupt or non-zstd artifact bytes.
var ErrDecompress = errors.New("terrain decompression failed")

// zstd decoders are safe for concurrent DecodeAll calls.
var sharedDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
})

// Compress compresses data with zstd at the given level (1-22, zstd scale).
func Compress(data []byte, level int) ([]byte, error) {
	if level <= 0 {
		level = DefaultCompressionLevel
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses a zstd stream produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecompress)
	}

	dec, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	return out, nil
}
