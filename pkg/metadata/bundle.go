package metadata

import (
	"encoding/binary"
)

// PNG のテキストエントリのキー
const (
	TextKeyParameters  = "parameters"
	TextKeyDescription = "description"
)

// TextEntry は PNG のプレーンテキストのキーと値です。
type TextEntry struct {
	Key   string
	Value string
}

// Bundle はプロンプトを書き込むメタデータ一式です。
// 構造化メタデータ（EXIF）の 3 フィールドすべてに同じプロンプトを書き込み、
// PNG の場合はさらにテキストエントリ 2 件を追加します。
type Bundle struct {
	Prompt string
	// Orientation は元画像から引き継ぐ向き情報です。0 の場合は書き込みません。
	Orientation uint16
}

// NewBundle はプロンプトから Bundle を作成します。
func NewBundle(prompt string) Bundle {
	return Bundle{Prompt: prompt}
}

// EXIF は ImageDescription / XPComment / UserComment を含む TIFF ブロックを返します。
func (b Bundle) EXIF() ([]byte, error) {
	description := append([]byte(b.Prompt), 0)

	xp, err := encodeXPComment(b.Prompt)
	if err != nil {
		return nil, err
	}

	comment := make([]byte, 0, len(userCommentASCII)+len(b.Prompt))
	comment = append(comment, userCommentASCII...)
	comment = append(comment, b.Prompt...)

	ifd0 := []ifdEntry{
		{tag: tagImageDescription, typ: typeASCII, count: uint32(len(description)), value: description},
		{tag: tagXPComment, typ: typeByte, count: uint32(len(xp)), value: xp},
	}
	if b.Orientation != 0 {
		ifd0 = append(ifd0, ifdEntry{
			tag: tagOrientation, typ: typeShort, count: 1,
			value: binary.LittleEndian.AppendUint16(nil, b.Orientation),
		})
	}
	exifIFD := []ifdEntry{
		{tag: tagUserComment, typ: typeUndefined, count: uint32(len(comment)), value: comment},
	}

	return encodeTIFF(ifd0, exifIFD), nil
}

// TextEntries は PNG に書き込むテキストエントリを返します。
func (b Bundle) TextEntries() []TextEntry {
	return []TextEntry{
		{Key: TextKeyParameters, Value: b.Prompt},
		{Key: TextKeyDescription, Value: b.Prompt},
	}
}
