package adapters

import (
	"fmt"
	"strings"
)

// ProviderName はこのパッケージのアダプターが名乗るプロバイダー名です。
const ProviderName = "nanobanana"

// サポートされるアスペクト比
var supportedAspectRatios = map[string]bool{
	"1:1": true, "2:3": true, "3:2": true, "3:4": true, "4:3": true,
	"4:5": true, "5:4": true, "9:16": true, "16:9": true, "21:9": true,
}

// isPredictModel は predict エンドポイントを使うモデル（Imagen 系）かどうかを返します。
func isPredictModel(model string) bool {
	return strings.HasPrefix(model, "imagen-")
}

// resolveAspectRatio は明示されたアスペクト比を優先し、なければ幅と高さから求めます。
// 対応していない比率になる場合は空文字（モデルの既定値）を返します。
func resolveAspectRatio(aspectRatio string, width, height int) string {
	if aspectRatio != "" {
		return aspectRatio
	}
	if width <= 0 || height <= 0 {
		return ""
	}
	g := gcd(width, height)
	ratio := fmt.Sprintf("%d:%d", width/g, height/g)
	if !supportedAspectRatios[ratio] {
		return ""
	}
	return ratio
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
