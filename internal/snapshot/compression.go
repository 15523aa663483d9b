package snapshot

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor implements one artifact compression algorithm.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
}

// NewCompressor returns the compressor for the given algorithm.
func NewCompressor(algorithm CompressionType) (Compressor, error) {
	switch algorithm {
	case CompressionTypeNone:
		return noneCompressor{}, nil
	case CompressionTypeGzip:
		return gzipCompressor{}, nil
	case CompressionTypeLZ4:
		return lz4Compressor{}, nil
	case CompressionTypeZstd:
		return zstdCompressor{}, nil
	default:
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte, level int) ([]byte, error) { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error)          { return data, nil }
func (noneCompressor) Algorithm() CompressionType                      { return CompressionTypeNone }

type gzipCompressor struct{}

func (gzipCompressor) Compress(data []byte, level int) ([]byte, error) {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, NewCompressionError("failed to create gzip writer", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, NewCompressionError("gzip compression failed", err)
	}
	if err := writer.Close(); err != nil {
		return nil, NewCompressionError("gzip compression failed", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewCompressionError("failed to create gzip reader", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCompressionError("gzip decompression failed", err)
	}
	return decompressed, nil
}

func (gzipCompressor) Algorithm() CompressionType { return CompressionTypeGzip }

type lz4Compressor struct{}

func (lz4Compressor) Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, NewCompressionError("lz4 compression failed", err)
	}
	if err := writer.Close(); err != nil {
		return nil, NewCompressionError("lz4 compression failed", err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCompressionError("lz4 decompression failed", err)
	}
	return decompressed, nil
}

func (lz4Compressor) Algorithm() CompressionType { return CompressionTypeLZ4 }

type zstdCompressor struct{}

func (zstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	encoderLevel := zstd.EncoderLevelFromZstd(level)
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, NewCompressionError("failed to create zstd encoder", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func (zstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, NewCompressionError("failed to create zstd decoder", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, NewCompressionError("zstd decompression failed", err)
	}
	return decompressed, nil
}

func (zstdCompressor) Algorithm() CompressionType { return CompressionTypeZstd }
