package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	chunkIHDR = "IHDR"
	chunkIEND = "IEND"
	chunkEXIF = "eXIf"
	chunkTEXT = "tEXt"
	chunkZTXT = "zTXt"
	chunkITXT = "iTXt"

	// 圧縮テキストの展開上限
	maxInflatedText = 16 << 20
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

type pngChunk struct {
	typ  string
	data []byte
}

func (c pngChunk) isText() bool {
	return c.typ == chunkTEXT || c.typ == chunkZTXT || c.typ == chunkITXT
}

// splitPNG は PNG をチャンク列に分割します。IEND 以降のバイト列は無視します。
func splitPNG(b []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(b, pngSignature) {
		return nil, fmt.Errorf("PNG シグネチャがありません")
	}

	var chunks []pngChunk
	pos := len(pngSignature)
	for {
		if pos+8 > len(b) {
			return nil, fmt.Errorf("IEND チャンクが見つかりません")
		}
		length := uint64(binary.BigEndian.Uint32(b[pos : pos+4]))
		typ := string(b[pos+4 : pos+8])
		end := uint64(pos) + 8 + length + 4
		if end > uint64(len(b)) {
			return nil, fmt.Errorf("チャンク %q が途中で切れています", typ)
		}
		chunks = append(chunks, pngChunk{typ: typ, data: b[pos+8 : uint64(pos)+8+length]})
		pos = int(end)
		if typ == chunkIEND {
			return chunks, nil
		}
	}
}

// joinPNG はチャンク列から PNG を組み立て、CRC を再計算します。
func joinPNG(chunks []pngChunk) []byte {
	size := len(pngSignature)
	for _, c := range chunks {
		size += 12 + len(c.data)
	}

	out := make([]byte, 0, size)
	out = append(out, pngSignature...)
	for _, c := range chunks {
		out = binary.BigEndian.AppendUint32(out, uint32(len(c.data)))
		out = append(out, c.typ...)
		out = append(out, c.data...)

		crc := crc32.NewIEEE()
		crc.Write([]byte(c.typ))
		crc.Write(c.data)
		out = binary.BigEndian.AppendUint32(out, crc.Sum32())
	}
	return out
}

// textChunk はテキストエントリをチャンクに変換します。
// NUL を含まない ASCII は tEXt、それ以外は UTF-8 の iTXt で書き込みます。
func textChunk(e TextEntry) pngChunk {
	if isPlainASCII(e.Value) {
		data := make([]byte, 0, len(e.Key)+1+len(e.Value))
		data = append(data, e.Key...)
		data = append(data, 0)
		data = append(data, e.Value...)
		return pngChunk{typ: chunkTEXT, data: data}
	}

	// keyword \0 compression flag, compression method, language tag \0, translated keyword \0, text
	data := make([]byte, 0, len(e.Key)+5+len(e.Value))
	data = append(data, e.Key...)
	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, e.Value...)
	return pngChunk{typ: chunkITXT, data: data}
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// textKeyword はテキストチャンクのキーワードだけを読み取ります。
func textKeyword(c pngChunk) string {
	if i := bytes.IndexByte(c.data, 0); i >= 0 {
		return string(c.data[:i])
	}
	return ""
}

// parseTextChunk は tEXt / zTXt / iTXt をデコードします。
func parseTextChunk(c pngChunk) (TextEntry, error) {
	sep := bytes.IndexByte(c.data, 0)
	if sep < 0 {
		return TextEntry{}, fmt.Errorf("%s チャンクにキーワード区切りがありません", c.typ)
	}
	key, body := string(c.data[:sep]), c.data[sep+1:]

	switch c.typ {
	case chunkTEXT:
		value, err := decodeLatin1(body)
		return TextEntry{Key: key, Value: value}, err

	case chunkZTXT:
		if len(body) < 1 {
			return TextEntry{}, fmt.Errorf("zTXt チャンクが短すぎます")
		}
		inflated, err := inflate(body[1:])
		if err != nil {
			return TextEntry{}, err
		}
		value, err := decodeLatin1(inflated)
		return TextEntry{Key: key, Value: value}, err

	case chunkITXT:
		if len(body) < 2 {
			return TextEntry{}, fmt.Errorf("iTXt チャンクが短すぎます")
		}
		compressed := body[0] == 1
		rest := body[2:]
		// language tag と translated keyword を読み飛ばす
		for i := 0; i < 2; i++ {
			j := bytes.IndexByte(rest, 0)
			if j < 0 {
				return TextEntry{}, fmt.Errorf("iTXt チャンクのヘッダーが不正です")
			}
			rest = rest[j+1:]
		}
		if compressed {
			inflated, err := inflate(rest)
			if err != nil {
				return TextEntry{}, err
			}
			rest = inflated
		}
		return TextEntry{Key: key, Value: string(rest)}, nil
	}
	return TextEntry{}, fmt.Errorf("テキストチャンクではありません: %s", c.typ)
}

// decodeLatin1 は tEXt の値をデコードします。
// 仕様上は Latin-1 ですが、UTF-8 を書き込むツールが多いため有効な UTF-8 はそのまま扱います。
func decodeLatin1(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("Latin-1 のデコードに失敗しました: %w", err)
	}
	return string(decoded), nil
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("圧縮テキストの展開に失敗しました: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxInflatedText))
	if err != nil {
		return nil, fmt.Errorf("圧縮テキストの展開に失敗しました: %w", err)
	}
	return out, nil
}

// pngMetadata は PNG から EXIF ブロックとテキストエントリを読み出します。
// 個々のテキストチャンクの解析失敗は無視されます。
type pngMetadata struct {
	exif      []byte
	texts     []TextEntry
	textFails int
}

func readPNGMetadata(b []byte) (*pngMetadata, error) {
	chunks, err := splitPNG(b)
	if err != nil {
		return nil, err
	}

	md := &pngMetadata{}
	for _, c := range chunks {
		switch {
		case c.typ == chunkEXIF && md.exif == nil:
			md.exif = c.data
		case c.isText():
			entry, err := parseTextChunk(c)
			if err != nil {
				md.textFails++
				continue
			}
			md.texts = append(md.texts, entry)
		}
	}
	return md, nil
}

// writePNGMetadata は既存の eXIf と同じキーのテキストチャンクを取り除き、
// 新しい eXIf とテキストチャンクを IHDR の直後に挿入します。
func writePNGMetadata(b []byte, tiff []byte, entries []TextEntry) ([]byte, error) {
	chunks, err := splitPNG(b)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].typ != chunkIHDR {
		return nil, fmt.Errorf("先頭チャンクが IHDR ではありません")
	}

	replaced := make(map[string]bool, len(entries))
	for _, e := range entries {
		replaced[e.Key] = true
	}

	inserted := make([]pngChunk, 0, len(entries)+1)
	inserted = append(inserted, pngChunk{typ: chunkEXIF, data: tiff})
	for _, e := range entries {
		inserted = append(inserted, textChunk(e))
	}

	out := make([]pngChunk, 0, len(chunks)+len(inserted))
	out = append(out, chunks[0])
	out = append(out, inserted...)
	for _, c := range chunks[1:] {
		if c.typ == chunkEXIF {
			continue
		}
		if c.isText() && replaced[textKeyword(c)] {
			continue
		}
		out = append(out, c)
	}
	return joinPNG(out), nil
}
