package models

import "time"

// Setting 键值配置表
type Setting struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key   string `gorm:"uniqueIndex;size:200;not null" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}
