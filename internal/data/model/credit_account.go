package model

import (
	"time"
)

// CreditAccount 账户积分表
// balance 为可消费积分（非负），monthly/welcome 池只做账务归属记录，
// lifetime_* 仅用于审计，不参与 balance 推导
type CreditAccount struct {
	CreditAccountID    string    `gorm:"primaryKey;type:varchar(36)"`
	AccountID          string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Balance            int64     `gorm:"not null;default:0"`
	MonthlyAllocation  int64     `gorm:"not null;default:0"`
	MonthlyUsed        int64     `gorm:"not null;default:0"`
	LastMonthlyResetAt time.Time `gorm:"not null"`
	WelcomeAllocation  int64     `gorm:"not null;default:0"`
	WelcomeUsed        int64     `gorm:"not null;default:0"`
	LifetimeGranted    int64     `gorm:"not null;default:0"`
	LifetimeSpent      int64     `gorm:"not null;default:0"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CreditAccount) TableName() string {
	return "credit_account"
}
