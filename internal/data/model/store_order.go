package model

import (
	"time"

	"gorm.io/datatypes"
)

// StoreOrder 本地订单表
// 状态机：pending → recorded → link_created → paid | abandoned
// 外部调用失败时订单停留在 pending 并带 last_error 注记，等待人工/对账处理
type StoreOrder struct {
	OrderID         string         `gorm:"primaryKey;type:varchar(64)"`
	AccountID       *string        `gorm:"type:varchar(64);index"` // 游客下单时为空
	Items           datatypes.JSON `gorm:"type:json;not null"`
	Subtotal        int64          `gorm:"not null"` // 分
	DiscountAmount  int64          `gorm:"not null;default:0"`
	Total           int64          `gorm:"not null"`
	DiscountCodeID  *string        `gorm:"type:varchar(36)"`
	Status          string         `gorm:"type:varchar(16);not null;default:'pending'"`
	IdempotencyKey  string         `gorm:"type:varchar(36);not null;uniqueIndex"` // 下单时固定，重试复用
	ExternalOrderID string         `gorm:"type:varchar(64);index"`
	PaymentLinkID   string         `gorm:"type:varchar(64)"`
	PaymentLinkURL  string         `gorm:"type:varchar(512)"`
	LastError       string         `gorm:"type:varchar(512)"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (StoreOrder) TableName() string {
	return "store_order"
}
