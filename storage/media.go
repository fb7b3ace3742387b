package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/anoixa/mediastore/database/models"
	"github.com/anoixa/mediastore/utils"
)

var (
	ErrProviderNotFound  = errors.New("storage provider not found")
	ErrDuplicateProvider = errors.New("storage provider already registered")
	ErrItemConsumed      = errors.New("media item has already been consumed")
	ErrUnknownMediaKind  = errors.New("unknown media kind")

	errObjectNotFound = errors.New("object not found")
)

// MediaKind 媒体实体类别，同时决定路径存储的根目录
type MediaKind string

const (
	KindPicture    MediaKind = "pictures"
	KindDownload   MediaKind = "downloads"
	KindAttachment MediaKind = "attachments"
)

// MediaItem 被存储的媒体实体
type MediaItem struct {
	Entity models.MediaAware
	Kind   MediaKind
}

func PictureItem(p *models.Picture) MediaItem {
	return MediaItem{Entity: p, Kind: KindPicture}
}

func DownloadItem(d *models.Download) MediaItem {
	return MediaItem{Entity: d, Kind: KindDownload}
}

func AttachmentItem(a *models.QueuedEmailAttachment) MediaItem {
	return MediaItem{Entity: a, Kind: KindAttachment}
}

// File 媒体元数据
func (m MediaItem) File() *models.MediaFile {
	return m.Entity.File()
}

// ID 实体主键
func (m MediaItem) ID() uint {
	return m.Entity.GetID()
}

func (m MediaItem) String() string {
	return fmt.Sprintf("%s#%d", m.Kind, m.ID())
}

// PathLayout 路径存储的布局规则
// <kind>/<shard>/<0000042-0.ext>
type PathLayout struct {
	ShardLength int
}

const defaultShardLength = 4

// Path 计算实体的相对存储路径
func (l PathLayout) Path(item MediaItem) (string, error) {
	switch item.Kind {
	case KindPicture, KindDownload, KindAttachment:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMediaKind, item.Kind)
	}

	name := fmt.Sprintf("%07d-0%s", item.ID(), normalizeExtension(item.File()))

	shard := l.ShardLength
	if shard <= 0 {
		shard = defaultShardLength
	}
	if shard > len(name) {
		shard = len(name)
	}

	return path.Join(string(item.Kind), name[:shard], name), nil
}

// normalizeExtension 扩展名统一为小写且带点，缺失时从 MIME 类型推断
func normalizeExtension(file *models.MediaFile) string {
	ext := strings.ToLower(strings.TrimSpace(file.Extension))
	ext = strings.TrimLeft(ext, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		if fromMime := utils.GetSafeExtension(file.MimeType); fromMime != "" {
			return fromMime
		}
		return ".bin"
	}
	return "." + ext
}
