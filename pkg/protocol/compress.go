package protocol

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a length-prefixed chunk body.
// The values travel on the wire.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 is block-mode LZ4: fast, modest ratio.
	CompressionLZ4 Compression = 1
	// CompressionZstd suits the text-heavy scene and result files best.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configured compression name. Empty means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("protocol: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("protocol: zstd decoder initialization failed: " + err.Error())
	}
}

// compressChunk returns the compressed body, or ok=false when compression does not pay.
func compressChunk(data []byte, c Compression) ([]byte, bool) {
	switch c {
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, false
		}
		return compressed, true
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		// n == 0 means incompressible.
		if err != nil || n == 0 || n >= len(data) {
			return nil, false
		}
		return dst[:n], true
	default:
		return nil, false
	}
}

func decompressChunk(compressed []byte, c Compression, size int) ([]byte, error) {
	if size <= 0 || size > MaxMessageSize {
		return nil, fmt.Errorf("uncompressed size %d out of range", size)
	}
	switch c {
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(compressed, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}
