package model

import (
	"time"
)

// GuestQuota 游客额度表（按匿名会话ID，24 小时滚动窗口）
type GuestQuota struct {
	SessionID     string    `gorm:"primaryKey;type:varchar(64)"`
	Count         int       `gorm:"not null;default:0"`
	WindowStartAt time.Time `gorm:"not null"` // 当前窗口内首次生成的时间
	LastIP        string    `gorm:"type:varchar(45)"` // 仅参考，不参与限流判定
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (GuestQuota) TableName() string {
	return "guest_quota"
}
