package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
)

// PNG encodes a solid w x h image.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, solid(w, h))
	return buf.Bytes()
}

// JPEG encodes a solid w x h image.
func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, solid(w, h), nil)
	return buf.Bytes()
}

// GIF encodes a solid w x h image.
func GIF(w, h int) []byte {
	var buf bytes.Buffer
	_ = gif.Encode(&buf, solid(w, h), nil)
	return buf.Bytes()
}

// ForgedPNG returns a tiny PNG whose IHDR claims w x h. The header checksum
// is valid, so only a full decode would notice the missing pixel data.
func ForgedPNG(w, h uint32) []byte {
	raw := PNG(1, 1)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ...
	binary.BigEndian.PutUint32(raw[16:20], w)
	binary.BigEndian.PutUint32(raw[20:24], h)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

// DataURL wraps raw bytes in a base64 data URL with the given MIME type.
func DataURL(mime string, raw []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: 200, G: 80, B: 40, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
