package model

import (
	"time"

	"gorm.io/datatypes"
)

// CreditTransaction 积分流水表（只追加，写入后不可变）
// 约束：同一账户按创建顺序累加 amount 必须等于当前 balance
type CreditTransaction struct {
	CreditTransactionID string         `gorm:"primaryKey;type:varchar(36)"`
	AccountID           string         `gorm:"type:varchar(64);not null;index:idx_account_created,priority:1"`
	Amount              int64          `gorm:"not null"` // 正数发放，负数消耗
	BalanceAfter        int64          `gorm:"not null"` // 落账后余额快照，用于审计重放
	Kind                string         `gorm:"type:varchar(32);not null"`
	Reason              string         `gorm:"type:varchar(255)"`
	Metadata            datatypes.JSON `gorm:"type:json"` // 不透明结构化负载，账本不解释其内容
	CreatedAt           time.Time      `gorm:"autoCreateTime;index:idx_account_created,priority:2"`
}

// TableName 指定表名
func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
