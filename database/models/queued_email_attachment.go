package models

import "time"

// QueuedEmailAttachment 待发送邮件的附件
type QueuedEmailAttachment struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	MediaFile `gorm:"embedded"`

	QueuedEmailID uint   `gorm:"index;not null"`
	Name          string `gorm:"size:450;not null"`
}

func (a *QueuedEmailAttachment) GetID() uint      { return a.ID }
func (a *QueuedEmailAttachment) File() *MediaFile { return &a.MediaFile }
