// Package objectstore 二进制对象上传与访问地址生成。
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	apperrors "learnhub/pkg/errors"
)

// ErrNotFound 对象不存在
var ErrNotFound = fmt.Errorf("%w: 文件不存在", apperrors.ErrNotFound)

// Store 对象存储客户端
type Store interface {
	// Upload 写入对象并返回可公开访问的 URL
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// URL 返回对象的公开访问地址
	URL(key string) string
	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, key string) error
	Close() error
}

// 允许上传的图片类型及对应扩展名
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageExtension 返回图片类型的扩展名，非图片返回 false
func ImageExtension(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := imageExtensions[ct]
	return ext, ok
}

// Key 拼接对象路径，如 Key("avatars", userID, "v1.png")
func Key(parts ...string) string {
	return path.Join(parts...)
}

// contentTypeForKey 按扩展名推断 Content-Type
func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	default:
		return ""
	}
}
