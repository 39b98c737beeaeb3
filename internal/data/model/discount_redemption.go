package model

import (
	"time"
)

// DiscountRedemption 折扣码核销记录表
// 每次成功应用写一行，用于单账户上限判定
type DiscountRedemption struct {
	DiscountRedemptionID string    `gorm:"primaryKey;type:varchar(36)"`
	DiscountCodeID       string    `gorm:"type:varchar(36);not null;index:idx_code_account,priority:1"`
	AccountID            *string   `gorm:"type:varchar(64);index:idx_code_account,priority:2"` // 游客结账时为空
	OrderID              string    `gorm:"type:varchar(64);not null;uniqueIndex"`              // 一单只核销一次
	AppliedAmount        int64     `gorm:"not null"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (DiscountRedemption) TableName() string {
	return "discount_redemption"
}
