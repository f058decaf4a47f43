// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package historystore

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names stored in the response_encoding column. An empty
// encoding means the body is stored as-is.
const (
	EncodingNone = "none"
	EncodingZstd = "zstd"
	EncodingLZ4  = "lz4"
)

// compressThreshold is the body size at which compression is attempted.
const compressThreshold = 4 << 10

// errIncompressible reports that the compressed form is no smaller
// than the input. The body is then stored raw.
var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("historystore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("historystore: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBody returns the stored form of body and its encoding. Bodies
// below the threshold, or that do not shrink, are returned unchanged
// with an empty encoding.
func encodeBody(body []byte, codec string) ([]byte, string, error) {
	if len(body) < compressThreshold {
		return body, "", nil
	}

	var (
		compressed []byte
		err        error
	)
	switch codec {
	case EncodingZstd:
		compressed, err = compressZstd(body)
	case EncodingLZ4:
		compressed, err = compressLZ4(body)
	case EncodingNone, "":
		return body, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported body codec %q", codec)
	}

	if errors.Is(err, errIncompressible) {
		return body, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return compressed, codec, nil
}

// decodeBody reverses encodeBody. size is the uncompressed length.
func decodeBody(stored []byte, encoding string, size int) ([]byte, error) {
	switch encoding {
	case "":
		return stored, nil
	case EncodingZstd:
		return decompressZstd(stored, size)
	case EncodingLZ4:
		return decompressLZ4(stored, size)
	default:
		return nil, fmt.Errorf("unsupported body encoding %q", encoding)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}
