package metadata

import (
	"encoding/binary"
	"fmt"
)

// readWebPEXIF は WebP (RIFF) コンテナの EXIF チャンクを返します。
func readWebPEXIF(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		return nil, fmt.Errorf("WebP の RIFF ヘッダーがありません")
	}

	pos := 12
	for pos+8 <= len(b) {
		fourCC := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		start := pos + 8
		if size < 0 || start+size > len(b) {
			return nil, fmt.Errorf("チャンク %q が途中で切れています", fourCC)
		}
		if fourCC == "EXIF" {
			return b[start : start+size], nil
		}
		pos = start + size + size%2
	}
	return nil, errNoEXIF
}
