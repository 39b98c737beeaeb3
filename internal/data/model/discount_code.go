package model

import (
	"time"
)

// DiscountCode 折扣码表
// code 统一存大写，金额类字段单位为分
type DiscountCode struct {
	DiscountCodeID    string     `gorm:"primaryKey;type:varchar(36)"`
	Code              string     `gorm:"uniqueIndex;type:varchar(64);not null"`
	Kind              string     `gorm:"type:varchar(16);not null"` // PERCENTAGE / FIXED_AMOUNT
	Value             int64      `gorm:"not null"`                  // 百分比值或固定金额（分）
	MinOrderAmount    *int64     `gorm:""`                          // 最低消费（分），空为不限
	MaxUses           *int64     `gorm:""`                          // 全局使用上限，空为不限
	MaxUsesPerAccount *int64     `gorm:""`                          // 单账户使用上限，空为不限
	UsedCount         int64      `gorm:"not null;default:0"`
	IsActive          bool       `gorm:"not null"` // 不能带 default 标签：gorm 会跳过零值字段，停用状态写不进去
	StartsAt          *time.Time `gorm:""`
	ExpiresAt         *time.Time `gorm:""`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (DiscountCode) TableName() string {
	return "discount_code"
}
