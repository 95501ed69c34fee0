package storage

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression identifies how a payload is stored at rest. Values are
// persisted in warm rows and cold envelopes.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// errIncompressible is returned when compressed output would not be
// smaller than the input; the caller stores the payload uncompressed.
var errIncompressible = errors.New("data is incompressible")

// zstd encoder and decoder are safe for concurrent use
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies algorithm to data, falling back to CompressionNone
// when the result would not shrink.
func compress(data []byte, algorithm Compression) ([]byte, Compression, error) {
	var (
		out []byte
		err error
	)
	switch algorithm {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		out, err = compressLZ4(data)
	case CompressionZstd:
		out, err = compressZstd(data)
	default:
		return nil, "", fmt.Errorf("unsupported compression: %q", algorithm)
	}

	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, "", err
	}
	return out, algorithm, nil
}

// decompress reverses compress. rawSize must match the original length.
func decompress(payload []byte, algorithm Compression, rawSize int) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		if len(payload) != rawSize {
			return nil, fmt.Errorf("%w: size %d does not match expected %d", ErrCorrupted, len(payload), rawSize)
		}
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload, rawSize)
	case CompressionZstd:
		return decompressZstd(payload, rawSize)
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrCorrupted, algorithm)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	destination := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, rawSize int) ([]byte, error) {
	destination := make([]byte, rawSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4 decompress: %v", ErrCorrupted, err)
	}
	if read != rawSize {
		return nil, fmt.Errorf("%w: lz4 decompress: got %d bytes, expected %d", ErrCorrupted, read, rawSize)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, rawSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, rawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decompress: %v", ErrCorrupted, err)
	}
	if len(result) != rawSize {
		return nil, fmt.Errorf("%w: zstd decompress: got %d bytes, expected %d", ErrCorrupted, len(result), rawSize)
	}
	return result, nil
}

// checksum returns the BLAKE3-256 digest of data
func checksum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}
