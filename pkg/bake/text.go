package bake

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/capiscio/openbadges/pkg/badge"
)

// Keywords used by the Open Badges baking conventions.
const (
	KeywordOB2 = "openbadges"
	KeywordOB3 = "openbadgecredential"
)

// ITXt builds an uncompressed international text chunk with empty language
// tag and translated keyword.
func ITXt(keyword, text string) (Chunk, error) {
	if err := checkKeyword(keyword); err != nil {
		return Chunk{}, err
	}
	if !utf8.ValidString(text) {
		return Chunk{}, badge.NewError(badge.ErrCodeImageFormat, "iTXt text is not valid UTF-8")
	}

	var buf bytes.Buffer
	buf.WriteString(keyword)
	buf.WriteByte(0) // keyword terminator
	buf.WriteByte(0) // compression flag
	buf.WriteByte(0) // compression method
	buf.WriteByte(0) // empty language tag
	buf.WriteByte(0) // empty translated keyword
	buf.WriteString(text)
	return NewChunk(TypeITXt, buf.Bytes()), nil
}

// checkKeyword enforces the PNG keyword rules: 1-79 Latin-1 printable bytes.
func checkKeyword(keyword string) error {
	if len(keyword) == 0 || len(keyword) > 79 {
		return badge.Errorf(badge.ErrCodeImageFormat, "invalid keyword length %d", len(keyword))
	}
	for i := 0; i < len(keyword); i++ {
		if c := keyword[i]; c < 32 || c > 126 {
			return badge.Errorf(badge.ErrCodeImageFormat, "invalid keyword byte 0x%02x", c)
		}
	}
	return nil
}

// decodeText returns the keyword and text of an iTXt or tEXt chunk.
// Compressed iTXt chunks are reported with compressed=true.
func decodeText(c Chunk) (keyword, text string, compressed bool, err error) {
	kw, rest, ok := bytes.Cut(c.Data, []byte{0})
	if !ok {
		return "", "", false, fmt.Errorf("%s chunk has no keyword terminator", c.Type)
	}

	switch c.Type {
	case TypeTEXt:
		return string(kw), string(rest), false, nil
	case TypeITXt:
		if len(rest) < 2 {
			return "", "", false, fmt.Errorf("iTXt chunk is truncated")
		}
		compressed = rest[0] != 0
		rest = rest[2:]
		// language tag, then translated keyword
		for i := 0; i < 2; i++ {
			_, after, found := bytes.Cut(rest, []byte{0})
			if !found {
				return "", "", false, fmt.Errorf("iTXt chunk is truncated")
			}
			rest = after
		}
		return string(kw), string(rest), compressed, nil
	default:
		return "", "", false, fmt.Errorf("%s is not a text chunk", c.Type)
	}
}
