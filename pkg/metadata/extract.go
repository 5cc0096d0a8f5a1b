package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/shouni/nanobanana-studio/pkg/domain"
	_ "golang.org/x/image/webp"
)

// lookup はプロンプト候補となるメタデータフィールド 1 件の読み取りです。
// エラーはすべて「フィールドなし」として扱われ、次の候補へ進みます。
type lookup struct {
	field string
	read  func() (string, error)
}

// sources は画像から読み出した生のメタデータです。
type sources struct {
	exif    *exifData
	exifErr error
	texts   []TextEntry
}

// Extract は画像からプロンプトを取り出します。
// コンテナ自体を解析できない場合のみ domain.ErrImageDecoding を返し、
// 個々のフィールドの解析失敗は無視します。
func Extract(data []byte) (domain.ExtractedPrompt, error) {
	_, format, err := decodeConfig(data)
	if err != nil {
		return domain.ExtractedPrompt{}, err
	}
	return extractPrompt(data, format), nil
}

// Inspect は画像の形式・サイズと埋め込まれたプロンプトを返します。
func Inspect(data []byte) (*domain.ImageInfo, error) {
	cfg, format, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}

	prompt := extractPrompt(data, format)
	return &domain.ImageInfo{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Prompt: prompt.Text,
	}, nil
}

func decodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %w", domain.ErrImageDecoding, err)
	}
	return cfg, format, nil
}

func extractPrompt(data []byte, format string) domain.ExtractedPrompt {
	src := readSources(data, format)

	// 構造化メタデータを優先し、テキストエントリは後から試す
	lookups := []lookup{
		{"exif.ImageDescription", src.exifLookup((*exifData).imageDescription)},
		{"exif.XPComment", src.exifLookup((*exifData).xpComment)},
		{"exif.UserComment", src.exifLookup((*exifData).userComment)},
		{"text." + TextKeyParameters, src.textLookup(TextKeyParameters)},
		{"text." + TextKeyDescription, src.textLookup(TextKeyDescription)},
		// どのキーにも一致しない場合の推測。無関係なメタデータを返すことがある。
		{"text.*", src.joinedText},
	}

	for _, l := range lookups {
		text, err := l.read()
		if err != nil {
			if !errors.Is(err, errFieldAbsent) {
				slog.Debug("メタデータの読み取りに失敗したため無視します", "field", l.field, "format", format, "error", err)
			}
			continue
		}
		if text != "" {
			return domain.FoundPrompt(text)
		}
	}
	return domain.NotFound()
}

func readSources(data []byte, format string) *sources {
	src := &sources{exifErr: errFieldAbsent}

	var tiff []byte
	switch format {
	case "jpeg":
		tiff, src.exifErr = readJPEGEXIF(data)
	case "png":
		md, err := readPNGMetadata(data)
		if err != nil {
			src.exifErr = err
			break
		}
		src.texts = md.texts
		if md.textFails > 0 {
			slog.Debug("解析できないテキストチャンクを無視しました", "count", md.textFails)
		}
		if md.exif != nil {
			tiff, src.exifErr = md.exif, nil
		}
	case "webp":
		tiff, src.exifErr = readWebPEXIF(data)
	}

	if tiff != nil && src.exifErr == nil {
		src.exif, src.exifErr = parseEXIF(tiff)
	}
	return src
}

func (s *sources) exifLookup(read func(*exifData) (string, error)) func() (string, error) {
	return func() (string, error) {
		if s.exif == nil {
			return "", s.exifErr
		}
		return read(s.exif)
	}
}

func (s *sources) textLookup(key string) func() (string, error) {
	return func() (string, error) {
		for _, e := range s.texts {
			if e.Key == key {
				return e.Value, nil
			}
		}
		return "", errFieldAbsent
	}
}

func (s *sources) joinedText() (string, error) {
	if len(s.texts) == 0 {
		return "", errFieldAbsent
	}
	values := make([]string, 0, len(s.texts))
	for _, e := range s.texts {
		values = append(values, e.Value)
	}
	return strings.Join(values, "\n"), nil
}
