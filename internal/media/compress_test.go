package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 251), G: uint8(y % 241), B: uint8((x + y) % 239), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressBoundsLargeImage(t *testing.T) {
	data := encodePNG(t, 900, 300)

	out, mime := Compress(data, "image/png", 400)
	require.Equal(t, "image/jpeg", mime)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 400)
	assert.LessOrEqual(t, img.Bounds().Dy(), 400)
}

func TestCompressPreservesAspectRatio(t *testing.T) {
	data := encodePNG(t, 800, 200)

	out, _ := Compress(data, "image/png", 400)
	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestCompressPassesThroughNonImages(t *testing.T) {
	data := []byte("%PDF-1.4 not an image")
	out, mime := Compress(data, "application/pdf", 400)
	assert.Equal(t, data, out)
	assert.Equal(t, "application/pdf", mime)
}

func TestCompressFallsBackOnUndecodableImage(t *testing.T) {
	data := []byte("claims to be png but is not")
	out, mime := Compress(data, "image/png", 400)
	assert.Equal(t, data, out)
	assert.Equal(t, "image/png", mime)
}
