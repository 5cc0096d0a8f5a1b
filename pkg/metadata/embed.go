package metadata

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shouni/nanobanana-studio/pkg/domain"
	"github.com/shouni/nanobanana-studio/pkg/imgutil"
)

// Format はメタデータを書き込めるコンテナの種類です。
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// MimeType は Format の代表的な MIME タイプを返します。
func (f Format) MimeType() string {
	return "image/" + string(f)
}

// Extension はダウンロード時のファイル拡張子を返します。
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// FormatFromMimeType は MIME タイプから書き込み先の Format を判定します。
// JPEG 系と PNG 以外は domain.ErrUnsupportedImageFormat です。
func FormatFromMimeType(mimeType string) (Format, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG, nil
	case "image/png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedImageFormat, mimeType)
}

// Embed はプロンプトを画像メタデータに埋め込んだ新しいバッファを返します。
// 入力バッファは変更されません。コンテナが要求された形式と異なる場合は再エンコードします。
func Embed(data []byte, prompt string, mimeType string) ([]byte, error) {
	format, err := FormatFromMimeType(mimeType)
	if err != nil {
		return nil, err
	}

	source, err := toContainer(data, format)
	if err != nil {
		return nil, encodingError(err)
	}

	bundle := NewBundle(prompt)
	bundle.Orientation = existingOrientation(source, format)

	tiff, err := bundle.EXIF()
	if err != nil {
		return nil, encodingError(err)
	}

	var out []byte
	switch format {
	case FormatJPEG:
		out, err = writeJPEGEXIF(source, tiff)
	case FormatPNG:
		// PNG は EXIF を読むツールとテキストチャンクを読むツールが混在するため両方に書き込む
		out, err = writePNGMetadata(source, tiff, bundle.TextEntries())
	}
	if err != nil {
		return nil, encodingError(err)
	}
	return out, nil
}

// toContainer は必要に応じて画像を目的のコンテナへ変換します。
func toContainer(data []byte, format Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	if mimetype.Detect(data).Is(format.MimeType()) {
		return data, nil
	}

	switch format {
	case FormatJPEG:
		return imgutil.CompressToJPEG(data, imgutil.DefaultJPEGQuality)
	default:
		return imgutil.ToPNG(data)
	}
}

// existingOrientation は元画像の Orientation を読み出します。読めない場合は 0 です。
func existingOrientation(data []byte, format Format) uint16 {
	var (
		tiff []byte
		err  error
	)
	switch format {
	case FormatJPEG:
		tiff, err = readJPEGEXIF(data)
	case FormatPNG:
		var md *pngMetadata
		if md, err = readPNGMetadata(data); err == nil {
			tiff = md.exif
		}
	}
	if err != nil || tiff == nil {
		return 0
	}

	parsed, err := parseEXIF(tiff)
	if err != nil {
		return 0
	}
	return parsed.orientation()
}

func encodingError(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrMetadataEncoding, cause)
}
