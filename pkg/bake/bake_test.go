package bake

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func chunksOfType(chunks []Chunk, typ string) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func TestParseChunks_RoundTrip(t *testing.T) {
	src := samplePNG(t)
	chunks, err := ParseChunks(src)
	require.NoError(t, err)
	assert.Equal(t, TypeIHDR, chunks[0].Type)
	assert.Equal(t, TypeIEND, chunks[len(chunks)-1].Type)
	assert.Equal(t, src, Serialize(chunks))
}

func TestEmbedExtract_RoundTrip(t *testing.T) {
	src := samplePNG(t)
	payload := "eyJhbGciOiJSUzI1NiJ9.eyJhIjoxfQ.c2ln"

	baked, err := Embed(src, KeywordOB3, payload)
	require.NoError(t, err)

	got, err := Extract(baked, KeywordOB3)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	chunks, err := ParseChunks(baked)
	require.NoError(t, err)
	assert.Equal(t, TypeIHDR, chunks[0].Type)
	assert.Equal(t, TypeITXt, chunks[1].Type)
}

func TestEmbed_PreservesImageData(t *testing.T) {
	src := samplePNG(t)
	baked, err := Embed(src, KeywordOB2, "payload")
	require.NoError(t, err)

	before, err := ParseChunks(src)
	require.NoError(t, err)
	after, err := ParseChunks(baked)
	require.NoError(t, err)
	assert.Equal(t, chunksOfType(before, "IDAT"), chunksOfType(after, "IDAT"))
	assert.Len(t, after, len(before)+1)

	decoded, err := png.Decode(bytes.NewReader(baked))
	require.NoError(t, err)
	original, err := png.Decode(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, original.Bounds(), decoded.Bounds())
	assert.Equal(t, original.At(2, 2), decoded.At(2, 2))
}

func TestEmbed_ReplacesExistingKeyword(t *testing.T) {
	src := samplePNG(t)
	first, err := Embed(src, KeywordOB3, "first")
	require.NoError(t, err)
	second, err := Embed(first, KeywordOB3, "second")
	require.NoError(t, err)

	chunks, err := ParseChunks(second)
	require.NoError(t, err)
	assert.Len(t, chunksOfType(chunks, TypeITXt), 1)

	got, err := Extract(second, KeywordOB3)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestEmbed_KeepsOtherKeywords(t *testing.T) {
	src := samplePNG(t)
	ob2, err := Embed(src, KeywordOB2, "assertion")
	require.NoError(t, err)
	both, err := Embed(ob2, KeywordOB3, "credential")
	require.NoError(t, err)

	kw, text, err := ExtractAny(both, KeywordOB3, KeywordOB2)
	require.NoError(t, err)
	assert.Equal(t, KeywordOB3, kw)
	assert.Equal(t, "credential", text)

	text, err = Extract(both, KeywordOB2)
	require.NoError(t, err)
	assert.Equal(t, "assertion", text)
}

func TestExtract_TEXt(t *testing.T) {
	chunks, err := ParseChunks(samplePNG(t))
	require.NoError(t, err)
	legacy := NewChunk(TypeTEXt, []byte(KeywordOB2+"\x00legacy"))
	withText := append([]Chunk{chunks[0], legacy}, chunks[1:]...)

	got, err := Extract(Serialize(withText), KeywordOB2)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)
}

func TestITXt_Layout(t *testing.T) {
	c, err := ITXt("openbadgecredential", "héllo")
	require.NoError(t, err)
	assert.Equal(t, TypeITXt, c.Type)
	assert.Equal(t, []byte("openbadgecredential\x00\x00\x00\x00\x00héllo"), c.Data)
	assert.Equal(t, checksum(TypeITXt, c.Data), c.CRC)
}

func TestITXt_InvalidKeyword(t *testing.T) {
	_, err := ITXt("", "x")
	assert.Error(t, err)
	_, err = ITXt(strings.Repeat("k", 80), "x")
	assert.Error(t, err)
	_, err = ITXt("bad\x00kw", "x")
	assert.Error(t, err)
}

func TestParseChunks_Invalid(t *testing.T) {
	src := samplePNG(t)

	corrupted := append([]byte(nil), src...)
	corrupted[len(Signature)+10] ^= 0xff // inside IHDR data

	noIHDR, err := ParseChunks(src)
	require.NoError(t, err)
	swapped := Serialize(append([]Chunk{noIHDR[1]}, noIHDR[0]))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}},
		{"signature only", Signature},
		{"truncated", src[:len(src)-6]},
		{"crc mismatch", corrupted},
		{"ihdr not first", swapped},
		{"missing iend", src[:len(src)-12]},
		{"trailing bytes", append(append([]byte(nil), src...), 0, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChunks(tt.data)
			require.Error(t, err)
			assert.Equal(t, badge.ErrCodeImageFormat, badge.GetErrorCode(err))
		})
	}
}

func TestExtract_Missing(t *testing.T) {
	_, err := Extract(samplePNG(t), KeywordOB3)
	require.Error(t, err)
	assert.ErrorIs(t, err, badge.ErrImageFormat)

	_, _, err = ExtractAny(samplePNG(t), KeywordOB3, KeywordOB2)
	assert.Error(t, err)
}

func TestExtract_SkipsMalformedForeignChunks(t *testing.T) {
	baked, err := Embed(samplePNG(t), KeywordOB3, "header.payload.sig")
	require.NoError(t, err)
	chunks, err := ParseChunks(baked)
	require.NoError(t, err)

	// An iTXt chunk cut short after its keyword, written by some other tool.
	foreign := NewChunk(TypeITXt, []byte("Comment\x00"))
	withForeign := append([]Chunk{chunks[0], foreign}, chunks[1:]...)
	src := Serialize(withForeign)

	text, err := Extract(src, KeywordOB3)
	require.NoError(t, err)
	assert.Equal(t, "header.payload.sig", text)

	// The same damage under the requested keyword is still an error.
	broken := Serialize(append([]Chunk{chunks[0], NewChunk(TypeITXt, []byte(KeywordOB2+"\x00"))}, chunks[1:]...))
	_, err = Extract(broken, KeywordOB2)
	assert.Equal(t, badge.ErrCodeImageFormat, badge.GetErrorCode(err))
}
