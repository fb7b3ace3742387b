package models

import (
	"time"

	"gorm.io/gorm"
)

// Download 可下载文件
type Download struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	MediaFile `gorm:"embedded"`

	Filename       string `gorm:"size:300"`
	UseDownloadURL bool
	DownloadURL    string
}

func (d *Download) GetID() uint      { return d.ID }
func (d *Download) File() *MediaFile { return &d.MediaFile }
