package biz

import (
	"time"

	"credit-service/internal/conf"
)

// GuestWindow 游客限流滚动窗口长度
const GuestWindow = 24 * time.Hour

// CreditConfig 积分/促销配置
// 启动时构造一次并通过构造函数注入，不使用包级可变状态
type CreditConfig struct {
	MonthlyAllocation    int64            // 每月发放额度
	WelcomeBonus         int64            // 新用户一次性赠送额度
	DefaultCost          int64            // 未知操作默认单价
	Prices               map[string]int64 // 按操作名的单价表
	GuestDailyLimit      int              // 游客 24h 窗口内允许次数
	PurchaseBonusPerItem int64            // 每件实物赠送积分
	Location             *time.Location   // 月份边界判定时区
}

// NewCreditConfig 从启动配置创建 CreditConfig
func NewCreditConfig(c *conf.Bootstrap) *CreditConfig {
	config := &CreditConfig{
		MonthlyAllocation:    100,
		WelcomeBonus:         50,
		DefaultCost:          1,
		Prices:               make(map[string]int64),
		GuestDailyLimit:      3,
		PurchaseBonusPerItem: 5,
		Location:             time.UTC,
	}
	if c.Credit == nil {
		return config
	}
	if c.Credit.MonthlyAllocation > 0 {
		config.MonthlyAllocation = c.Credit.MonthlyAllocation
	}
	if c.Credit.WelcomeBonus > 0 {
		config.WelcomeBonus = c.Credit.WelcomeBonus
	}
	if c.Credit.DefaultCost > 0 {
		config.DefaultCost = c.Credit.DefaultCost
	}
	for k, v := range c.Credit.Prices {
		config.Prices[k] = v
	}
	if c.Credit.GuestDailyLimit > 0 {
		config.GuestDailyLimit = c.Credit.GuestDailyLimit
	}
	if c.Credit.PurchaseBonusPerItem > 0 {
		config.PurchaseBonusPerItem = c.Credit.PurchaseBonusPerItem
	}
	if c.Credit.Timezone != "" {
		if loc, err := time.LoadLocation(c.Credit.Timezone); err == nil {
			config.Location = loc
		}
	}
	return config
}

// CostFor 查询操作单价，未配置的操作按默认单价计
func (c *CreditConfig) CostFor(action string) int64 {
	if cost, ok := c.Prices[action]; ok {
		return cost
	}
	return c.DefaultCost
}
