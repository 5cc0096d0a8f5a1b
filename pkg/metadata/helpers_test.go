package metadata

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// newTestImage はテスト用の 8x6 のグラデーション画像を指定形式でエンコードします。
func newTestImage(t testing.TB, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 40), 128, 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}
	if err != nil {
		t.Fatalf("failed to encode %s: %v", format, err)
	}
	return buf.Bytes()
}

// withPNGChunks は PNG のチャンクを filter で取捨し、extra を IHDR の直後に追加します。
func withPNGChunks(t testing.TB, data []byte, filter func(pngChunk) bool, extra ...pngChunk) []byte {
	t.Helper()
	chunks, err := splitPNG(data)
	if err != nil {
		t.Fatalf("splitPNG: %v", err)
	}

	out := []pngChunk{chunks[0]}
	out = append(out, extra...)
	for _, c := range chunks[1:] {
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return joinPNG(out)
}

// withJPEGEXIF は JPEG に任意の TIFF ブロックを APP1 として書き込みます。
func withJPEGEXIF(t testing.TB, data []byte, tiff []byte) []byte {
	t.Helper()
	out, err := writeJPEGEXIF(data, tiff)
	if err != nil {
		t.Fatalf("writeJPEGEXIF: %v", err)
	}
	return out
}

// countChunks は指定した種類のチャンク数を返します。
func countChunks(t testing.TB, data []byte, typ string) int {
	t.Helper()
	chunks, err := splitPNG(data)
	if err != nil {
		t.Fatalf("splitPNG: %v", err)
	}
	n := 0
	for _, c := range chunks {
		if c.typ == typ {
			n++
		}
	}
	return n
}

// countEXIFSegments は Exif APP1 セグメント数を返します。
func countEXIFSegments(t testing.TB, data []byte) int {
	t.Helper()
	segments, _, err := splitJPEG(data)
	if err != nil {
		t.Fatalf("splitJPEG: %v", err)
	}
	n := 0
	for _, s := range segments {
		if s.isEXIF() {
			n++
		}
	}
	return n
}

// newWebPWithEXIF は VP8X ヘッダーと EXIF チャンクだけを持つ WebP を組み立てます。
func newWebPWithEXIF(width, height int, tiff []byte) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")

	vp8x := make([]byte, 10)
	vp8x[0] = 1 << 3 // EXIF flag
	w, h := uint32(width-1), uint32(height-1)
	vp8x[4], vp8x[5], vp8x[6] = byte(w), byte(w>>8), byte(w>>16)
	vp8x[7], vp8x[8], vp8x[9] = byte(h), byte(h>>8), byte(h>>16)
	writeRIFFChunk(&body, "VP8X", vp8x)
	writeRIFFChunk(&body, "EXIF", tiff)

	var out bytes.Buffer
	out.WriteString("RIFF")
	out.Write(binary.LittleEndian.AppendUint32(nil, uint32(body.Len())))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeRIFFChunk(buf *bytes.Buffer, fourCC string, data []byte) {
	buf.WriteString(fourCC)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(data))))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}
