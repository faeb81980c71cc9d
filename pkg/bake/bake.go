package bake

import (
	"bytes"

	"github.com/capiscio/openbadges/pkg/badge"
)

// Embed returns a copy of src with payload stored in an iTXt chunk under
// keyword, placed directly after IHDR. Existing text chunks with the same
// keyword are dropped so re-baking replaces rather than duplicates.
func Embed(src []byte, keyword, payload string) ([]byte, error) {
	chunks, err := ParseChunks(src)
	if err != nil {
		return nil, err
	}
	text, err := ITXt(keyword, payload)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(chunks)+1)
	out = append(out, chunks[0], text)
	for _, c := range chunks[1:] {
		if isTextFor(c, keyword) {
			continue
		}
		out = append(out, c)
	}
	return Serialize(out), nil
}

// Extract returns the text stored under keyword in an iTXt or tEXt chunk.
func Extract(src []byte, keyword string) (string, error) {
	chunks, err := ParseChunks(src)
	if err != nil {
		return "", err
	}
	for _, c := range chunks {
		if c.Type != TypeITXt && c.Type != TypeTEXt {
			continue
		}
		// Other tools' chunks are skipped without being decoded.
		if kw, _, ok := bytes.Cut(c.Data, []byte{0}); !ok || string(kw) != keyword {
			continue
		}
		_, text, compressed, err := decodeText(c)
		if err != nil {
			return "", badge.WrapError(badge.ErrCodeImageFormat, "malformed "+keyword+" chunk", err)
		}
		if compressed {
			return "", badge.Errorf(badge.ErrCodeImageFormat, "compressed %s chunk is not supported", keyword)
		}
		return text, nil
	}
	return "", badge.Errorf(badge.ErrCodeImageFormat, "no %q text chunk found", keyword)
}

// ExtractAny tries each keyword in order and reports which one matched.
func ExtractAny(src []byte, keywords ...string) (keyword, text string, err error) {
	if _, err := ParseChunks(src); err != nil {
		return "", "", err
	}
	for _, kw := range keywords {
		if text, err := Extract(src, kw); err == nil {
			return kw, text, nil
		}
	}
	return "", "", badge.Errorf(badge.ErrCodeImageFormat, "image carries none of %v", keywords)
}

func isTextFor(c Chunk, keyword string) bool {
	if c.Type != TypeITXt && c.Type != TypeTEXt {
		return false
	}
	kw, _, _, err := decodeText(c)
	return err == nil && kw == keyword
}
