package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// EXIF タグ番号
const (
	tagImageDescription = 0x010E
	tagOrientation      = 0x0112
	tagExifIFDPointer   = 0x8769
	tagUserComment      = 0x9286
	tagXPComment        = 0x9C9C
)

// TIFF フィールド型
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
	typeSLong     = 9
	typeSRational = 10
)

var (
	exifHeader = []byte("Exif\x00\x00")

	// UserComment の文字コード識別子（8バイト固定）
	userCommentASCII     = []byte("ASCII\x00\x00\x00")
	userCommentUnicode   = []byte("UNICODE\x00")
	userCommentJIS       = []byte("JIS\x00\x00\x00\x00\x00")
	userCommentUndefined = make([]byte, 8)

	errFieldAbsent = errors.New("field absent")
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

// encodeXPComment は Windows の XPComment 形式（UTF-16LE, NUL 終端）に変換します。
func encodeXPComment(s string) ([]byte, error) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("XPComment のエンコードに失敗しました: %w", err)
	}
	return append(encoded, 0, 0), nil
}

// encodeTIFF は IFD0 と Exif IFD からリトルエンディアンの TIFF ブロックを組み立てます。
// exifIFD が空でなければ IFD0 に ExifIFDPointer を追加します。
func encodeTIFF(ifd0, exifIFD []ifdEntry) []byte {
	order := binary.LittleEndian

	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, ifdEntry{tag: tagExifIFDPointer, typ: typeLong, count: 1, value: make([]byte, 4)})
	}
	sortEntries(ifd0)
	sortEntries(exifIFD)

	ifd0Offset := uint32(8)
	exifOffset := ifd0Offset + ifdSize(ifd0)
	if len(exifIFD) > 0 {
		for i := range ifd0 {
			if ifd0[i].tag == tagExifIFDPointer {
				order.PutUint32(ifd0[i].value, exifOffset)
			}
		}
	}

	buf := new(bytes.Buffer)
	buf.WriteString("II")
	buf.Write(order.AppendUint16(nil, 42))
	buf.Write(order.AppendUint32(nil, ifd0Offset))
	writeIFD(buf, order, ifd0, ifd0Offset)
	if len(exifIFD) > 0 {
		writeIFD(buf, order, exifIFD, exifOffset)
	}
	return buf.Bytes()
}

func sortEntries(entries []ifdEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
}

// ifdSize はエントリ表とデータ領域を合わせた IFD のバイト数です。
func ifdSize(entries []ifdEntry) uint32 {
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.value) > 4 {
			size += uint32(len(e.value) + len(e.value)%2)
		}
	}
	return size
}

func writeIFD(buf *bytes.Buffer, order binary.AppendByteOrder, entries []ifdEntry, offset uint32) {
	dataOffset := offset + uint32(2+12*len(entries)+4)
	var data bytes.Buffer

	buf.Write(order.AppendUint16(nil, uint16(len(entries))))
	for _, e := range entries {
		buf.Write(order.AppendUint16(nil, e.tag))
		buf.Write(order.AppendUint16(nil, e.typ))
		buf.Write(order.AppendUint32(nil, e.count))
		if len(e.value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.value)
			buf.Write(inline)
			continue
		}
		buf.Write(order.AppendUint32(nil, dataOffset+uint32(data.Len())))
		data.Write(e.value)
		if len(e.value)%2 == 1 {
			data.WriteByte(0)
		}
	}
	// 次の IFD は無し
	buf.Write(order.AppendUint32(nil, 0))
	buf.Write(data.Bytes())
}

type exifField struct {
	typ   uint16
	value []byte
}

// exifData は IFD0 と Exif IFD のフィールドをまとめたものです。
type exifData struct {
	order  binary.ByteOrder
	fields map[uint16]exifField
}

// parseEXIF は TIFF 形式の EXIF ブロックを解析します。先頭の "Exif\0\0" は任意です。
func parseEXIF(b []byte) (*exifData, error) {
	b = bytes.TrimPrefix(b, exifHeader)
	if len(b) < 8 {
		return nil, fmt.Errorf("EXIF ブロックが短すぎます (%d bytes)", len(b))
	}

	var order binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("不明なバイトオーダーです: %q", b[:2])
	}
	if order.Uint16(b[2:4]) != 42 {
		return nil, fmt.Errorf("TIFF マジックナンバーが不正です")
	}

	e := &exifData{order: order, fields: make(map[uint16]exifField)}
	if err := e.readIFD(b, order.Uint32(b[4:8])); err != nil {
		return nil, err
	}

	if ptr, ok := e.fields[tagExifIFDPointer]; ok && len(ptr.value) >= 4 {
		// Exif IFD が壊れていても IFD0 の情報は使えるため、エラーは無視します。
		_ = e.readIFD(b, order.Uint32(ptr.value[:4]))
	}
	return e, nil
}

func (e *exifData) readIFD(b []byte, offset uint32) error {
	if uint64(offset)+2 > uint64(len(b)) {
		return fmt.Errorf("IFD オフセットが範囲外です: %d", offset)
	}
	n := int(e.order.Uint16(b[offset:]))
	start := int(offset) + 2
	if start+12*n > len(b) {
		return fmt.Errorf("IFD エントリが範囲外です")
	}

	for i := 0; i < n; i++ {
		entry := b[start+12*i : start+12*(i+1)]
		tag := e.order.Uint16(entry[0:2])
		typ := e.order.Uint16(entry[2:4])
		count := e.order.Uint32(entry[4:8])

		unit := typeSize(typ)
		if unit == 0 {
			continue
		}
		size := uint64(unit) * uint64(count)
		var value []byte
		if size <= 4 {
			value = entry[8 : 8+size]
		} else {
			off := uint64(e.order.Uint32(entry[8:12]))
			if off+size > uint64(len(b)) {
				continue
			}
			value = b[off : off+size]
		}
		if _, exists := e.fields[tag]; !exists {
			e.fields[tag] = exifField{typ: typ, value: value}
		}
	}
	return nil
}

func typeSize(typ uint16) int {
	switch typ {
	case typeByte, typeASCII, typeUndefined:
		return 1
	case typeShort:
		return 2
	case typeLong, typeSLong:
		return 4
	case typeRational, typeSRational:
		return 8
	}
	return 0
}

func (e *exifData) field(tag uint16) (exifField, error) {
	f, ok := e.fields[tag]
	if !ok {
		return exifField{}, errFieldAbsent
	}
	return f, nil
}

// imageDescription は ImageDescription を文字列として返します。
func (e *exifData) imageDescription() (string, error) {
	f, err := e.field(tagImageDescription)
	if err != nil {
		return "", err
	}
	return trimTerminator(string(f.value)), nil
}

// xpComment は XPComment を返します。バイナリの場合は UTF-16LE としてデコードし末尾の NUL パディングを除去します。
func (e *exifData) xpComment() (string, error) {
	f, err := e.field(tagXPComment)
	if err != nil {
		return "", err
	}
	if f.typ == typeASCII {
		return trimTerminator(string(f.value)), nil
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(f.value)
	if err != nil {
		return "", fmt.Errorf("XPComment のデコードに失敗しました: %w", err)
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}

// userComment は UserComment を返します。バイナリの場合は 8 バイトの文字コードヘッダーを除去し、
// 本文は書かれたとおりに返します。
func (e *exifData) userComment() (string, error) {
	f, err := e.field(tagUserComment)
	if err != nil {
		return "", err
	}
	if f.typ == typeASCII || len(f.value) < 8 {
		return trimTerminator(string(f.value)), nil
	}

	header, body := f.value[:8], f.value[8:]
	switch {
	case bytes.Equal(header, userCommentASCII),
		bytes.Equal(header, userCommentUndefined),
		bytes.Equal(header, userCommentJIS):
		return string(body), nil
	case bytes.Equal(header, userCommentUnicode):
		endian := unicode.LittleEndian
		if e.order == binary.BigEndian {
			endian = unicode.BigEndian
		}
		decoded, err := unicode.UTF16(endian, unicode.UseBOM).NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("UserComment のデコードに失敗しました: %w", err)
		}
		return string(decoded), nil
	default:
		return trimTerminator(string(f.value)), nil
	}
}

// orientation は Orientation タグの値を返します。存在しない場合は 0 です。
func (e *exifData) orientation() uint16 {
	f, err := e.field(tagOrientation)
	if err != nil || f.typ != typeShort || len(f.value) < 2 {
		return 0
	}
	return e.order.Uint16(f.value[:2])
}

// trimTerminator は ASCII フィールドの終端 NUL を 1 つだけ取り除きます。
// 値そのものに含まれる NUL は残します。
func trimTerminator(s string) string {
	return strings.TrimSuffix(s, "\x00")
}
