package utils

import (
	"mime"
	"strings"
)

// mimeToExtMap 常见 MIME 类型到扩展名的映射
var mimeToExtMap = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/tiff":               ".tiff",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/octet-stream": ".bin",
	"text/plain":               ".txt",
	"text/csv":                 ".csv",
}

// GetSafeExtension 根据 MIME 类型返回文件扩展名
// 无法识别时返回空字符串
func GetSafeExtension(mimeType string) string {
	// 去除参数部分
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if mimeType == "" {
		return ""
	}

	if ext, ok := mimeToExtMap[mimeType]; ok {
		return ext
	}

	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
