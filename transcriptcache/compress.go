// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package transcriptcache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a stored transcript body is compressed.
// The numeric values are written to the encoding column; changing them
// makes existing databases unreadable.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
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
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the configuration spelling of a compression.
// The empty string means zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("transcriptcache: unknown compression %q", name)
	}
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transcriptcache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("transcriptcache: zstd decoder initialization failed: " + err.Error())
	}
}

var errIncompressible = errors.New("incompressible")

// compress returns data compressed with c. When c cannot shrink data
// the body is stored uncompressed and the returned Compression says so.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	var (
		compressed []byte
		err        error
	)
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZstd:
		compressed, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("transcriptcache: unsupported compression %s", c)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, c, nil
}

// decompress reverses compress. rawSize must be the exact length of
// the original data.
func decompress(body []byte, c Compression, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(body) != rawSize {
			return nil, fmt.Errorf("transcriptcache: stored body is %d bytes, expected %d", len(body), rawSize)
		}
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, rawSize)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("transcriptcache: lz4 decompress: %w", err)
		}
		if read != rawSize {
			return nil, fmt.Errorf("transcriptcache: lz4 decompress: got %d bytes, expected %d", read, rawSize)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("transcriptcache: zstd decompress: %w", err)
		}
		if len(result) != rawSize {
			return nil, fmt.Errorf("transcriptcache: zstd decompress: got %d bytes, expected %d", len(result), rawSize)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("transcriptcache: unsupported compression %s", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("transcriptcache: lz4 compress: %w", err)
	}
	// Zero means lz4 found nothing to compress.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}
