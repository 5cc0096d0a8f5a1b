package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/shouni/nanobanana-studio/pkg/domain"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1

	// APP1 のペイロード上限（長さフィールド 2 バイトを除く）
	maxSegmentPayload = 0xFFFF - 2
)

var errNoEXIF = fmt.Errorf("%w: EXIF ブロックがありません", errFieldAbsent)

type jpegSegment struct {
	marker byte
	// data は長さフィールドを含まないペイロードです。スタンドアロンマーカーでは nil です。
	data []byte
}

func (s jpegSegment) isEXIF() bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.data, exifHeader)
}

// splitJPEG は SOS までのマーカーセグメントと、SOS 以降の残りのバイト列に分割します。
func splitJPEG(b []byte) ([]jpegSegment, []byte, error) {
	if len(b) < 4 || b[0] != 0xFF || b[1] != markerSOI {
		return nil, nil, fmt.Errorf("JPEG の SOI マーカーがありません")
	}

	var segments []jpegSegment
	pos := 2
	for pos < len(b) {
		if b[pos] != 0xFF {
			return nil, nil, fmt.Errorf("オフセット %d にマーカーがありません", pos)
		}
		// フィルバイトを読み飛ばす
		for pos+1 < len(b) && b[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(b) {
			break
		}
		marker := b[pos+1]

		switch {
		case marker == markerSOS || marker == markerEOI:
			return segments, b[pos:], nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			segments = append(segments, jpegSegment{marker: marker})
			pos += 2
			continue
		}

		if pos+4 > len(b) {
			return nil, nil, fmt.Errorf("セグメント長が読み取れません (marker 0x%02X)", marker)
		}
		length := int(binary.BigEndian.Uint16(b[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(b) {
			return nil, nil, fmt.Errorf("セグメント長が不正です (marker 0x%02X, length %d)", marker, length)
		}
		segments = append(segments, jpegSegment{marker: marker, data: b[pos+4 : pos+2+length]})
		pos += 2 + length
	}
	return nil, nil, fmt.Errorf("JPEG の SOS マーカーが見つかりません")
}

// joinJPEG はセグメントと残りのバイト列から新しい JPEG を組み立てます。
func joinJPEG(segments []jpegSegment, rest []byte) []byte {
	size := 2 + len(rest)
	for _, s := range segments {
		size += 4 + len(s.data)
	}

	out := make([]byte, 0, size)
	out = append(out, 0xFF, markerSOI)
	for _, s := range segments {
		out = append(out, 0xFF, s.marker)
		if s.data == nil {
			continue
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(s.data)+2))
		out = append(out, s.data...)
	}
	return append(out, rest...)
}

// readJPEGEXIF は最初の Exif APP1 セグメントの TIFF ブロックを返します。
func readJPEGEXIF(b []byte) ([]byte, error) {
	segments, _, err := splitJPEG(b)
	if err != nil {
		return nil, err
	}
	for _, s := range segments {
		if s.isEXIF() {
			return s.data[len(exifHeader):], nil
		}
	}
	return nil, errNoEXIF
}

// writeJPEGEXIF は既存の Exif APP1 を取り除き、新しい APP1 を SOI（と APP0）の直後に挿入します。
func writeJPEGEXIF(b []byte, tiff []byte) ([]byte, error) {
	payload := make([]byte, 0, len(exifHeader)+len(tiff))
	payload = append(payload, exifHeader...)
	payload = append(payload, tiff...)
	if len(payload) > maxSegmentPayload {
		return nil, fmt.Errorf("%w: EXIF ブロックが APP1 の上限を超えています (%d bytes)", domain.ErrMetadataTooLarge, len(payload))
	}

	segments, rest, err := splitJPEG(b)
	if err != nil {
		return nil, err
	}

	kept := make([]jpegSegment, 0, len(segments)+1)
	for _, s := range segments {
		if !s.isEXIF() {
			kept = append(kept, s)
		}
	}

	insertAt := 0
	for insertAt < len(kept) && kept[insertAt].marker == markerAPP0 {
		insertAt++
	}
	app1 := jpegSegment{marker: markerAPP1, data: payload}
	kept = append(kept[:insertAt], append([]jpegSegment{app1}, kept[insertAt:]...)...)

	return joinJPEG(kept, rest), nil
}
