package models

import "time"

// MediaFile 媒体文件元数据，嵌入到所有持有二进制内容的实体中
// MediaStorageID 为数据库存储的定位符，仅当内容位于 media_storages 表中时非空
type MediaFile struct {
	MimeType       string `gorm:"size:100;not null"`
	Extension      string `gorm:"size:20"`
	Size           int64  `gorm:"not null;default:0"`
	MediaStorageID *uint  `gorm:"index"`
	UpdatedAt      time.Time
}

// HasBlob 是否引用了数据库中的二进制内容
func (f *MediaFile) HasBlob() bool {
	return f.MediaStorageID != nil && *f.MediaStorageID != 0
}

// MediaAware 持有媒体内容的实体
type MediaAware interface {
	GetID() uint
	File() *MediaFile
}

// MediaStorage 二进制内容表，仅保存原始字节
type MediaStorage struct {
	ID   uint   `gorm:"primarykey"`
	Data []byte `gorm:"not null"`
}

// TableName 指定表名
func (MediaStorage) TableName() string {
	return "media_storages"
}
