// Package bake embeds signed credentials into PNG images and reads them back.
//
// A baked badge is an ordinary PNG with one extra iTXt chunk placed directly
// after IHDR. Every other chunk is copied through byte for byte.
package bake

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/capiscio/openbadges/pkg/badge"
)

// Signature is the eight-byte PNG file signature.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Chunk types used by the embedder.
const (
	TypeIHDR = "IHDR"
	TypeIEND = "IEND"
	TypeITXt = "iTXt"
	TypeTEXt = "tEXt"
)

// Chunk is a single PNG chunk. CRC is the stored checksum over type and data.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32
}

// NewChunk builds a chunk and computes its CRC.
func NewChunk(typ string, data []byte) Chunk {
	return Chunk{Type: typ, Data: data, CRC: checksum(typ, data)}
}

func checksum(typ string, data []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte(typ))
	_, _ = h.Write(data)
	return h.Sum32()
}

// ParseChunks validates the PNG signature and splits src into chunks.
// IHDR must come first, IEND must terminate the stream and every CRC must match.
func ParseChunks(src []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(src, Signature) {
		return nil, badge.NewError(badge.ErrCodeImageFormat, "not a PNG file: bad signature")
	}

	var chunks []Chunk
	rest := src[len(Signature):]
	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, badge.NewError(badge.ErrCodeImageFormat, "truncated chunk header")
		}
		length := binary.BigEndian.Uint32(rest[:4])
		typ := string(rest[4:8])
		if uint64(length)+12 > uint64(len(rest)) {
			return nil, badge.Errorf(badge.ErrCodeImageFormat, "truncated %s chunk", typ)
		}
		data := rest[8 : 8+length]
		crc := binary.BigEndian.Uint32(rest[8+length : 12+length])
		if checksum(typ, data) != crc {
			return nil, badge.Errorf(badge.ErrCodeImageFormat, "CRC mismatch in %s chunk", typ)
		}
		if len(chunks) == 0 && typ != TypeIHDR {
			return nil, badge.Errorf(badge.ErrCodeImageFormat, "first chunk is %s, expected IHDR", typ)
		}

		chunks = append(chunks, Chunk{Type: typ, Data: data, CRC: crc})
		rest = rest[12+length:]
		if typ == TypeIEND {
			break
		}
	}

	if len(chunks) == 0 {
		return nil, badge.NewError(badge.ErrCodeImageFormat, "PNG has no chunks")
	}
	if chunks[len(chunks)-1].Type != TypeIEND {
		return nil, badge.NewError(badge.ErrCodeImageFormat, "PNG is missing IEND")
	}
	// Serialize could not reproduce anything after IEND.
	if len(rest) > 0 {
		return nil, badge.Errorf(badge.ErrCodeImageFormat, "%d trailing bytes after IEND", len(rest))
	}
	return chunks, nil
}

// Serialize writes the signature followed by every chunk.
func Serialize(chunks []Chunk) []byte {
	size := len(Signature)
	for _, c := range chunks {
		size += 12 + len(c.Data)
	}

	out := make([]byte, 0, size)
	out = append(out, Signature...)
	for _, c := range chunks {
		out = binary.BigEndian.AppendUint32(out, uint32(len(c.Data)))
		out = append(out, c.Type...)
		out = append(out, c.Data...)
		out = binary.BigEndian.AppendUint32(out, c.CRC)
	}
	return out
}
