package models

import (
	"time"

	"gorm.io/gorm"
)

// Picture 商品图片
type Picture struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	MediaFile `gorm:"embedded"`

	SeoFilename string `gorm:"size:300"`
	IsNew       bool   `gorm:"default:true;not null"`
}

func (p *Picture) GetID() uint      { return p.ID }
func (p *Picture) File() *MediaFile { return &p.MediaFile }
