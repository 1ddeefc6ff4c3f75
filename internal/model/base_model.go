package model

import (
	"time"
)

// BaseModel 通用主键 + 时间戳
// 注意：Store 删除是物理删除（行 + 目录 + 域名 alias 一起清），
// 所以这里不带 gorm.DeletedAt 软删除字段
type BaseModel struct {
	ID        int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
