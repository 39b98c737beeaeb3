// Package conf 定义服务的启动配置。
// 配置通过 kratos config 从 yaml 文件加载（见 cmd/*/main.go），
// 这里是手写结构体而不是 protobuf 生成代码。
package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration 支持 "5s" / "300ms" 形式的时长配置
type Duration string

// AsDuration 解析时长，解析失败返回 0
func (d Duration) AsDuration() time.Duration {
	if d == "" {
		return 0
	}
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

// UnmarshalJSON 允许 yaml 里写数字（秒）或字符串
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Duration(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Duration(fmt.Sprintf("%gs", n))
		return nil
	}
	return fmt.Errorf("invalid duration: %s", string(data))
}

// Bootstrap 启动配置根节点
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Credit  *Credit  `json:"credit"`
	Payment *Payment `json:"payment"`
	Log     *Log     `json:"log"`
}

// Server 服务器配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务器配置
type HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
}

// Database 数据库配置
type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string   `json:"addr"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
}

// Rocketmq 消息队列配置（支付结果事件）
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int      `json:"retry_times"`
}

// Credit 积分/额度配置
type Credit struct {
	// MonthlyAllocation 每月发放额度（积分）
	MonthlyAllocation int64 `json:"monthly_allocation"`
	// WelcomeBonus 新用户一次性赠送额度（积分）
	WelcomeBonus int64 `json:"welcome_bonus"`
	// DefaultCost 未配置的操作默认单价（积分）
	DefaultCost int64 `json:"default_cost"`
	// Prices 按操作名（模型名）的单价表（积分）
	Prices map[string]int64 `json:"prices"`
	// GuestDailyLimit 游客 24 小时窗口内允许的生成次数
	GuestDailyLimit int `json:"guest_daily_limit"`
	// PurchaseBonusPerItem 每购买一件实物赠送的积分
	PurchaseBonusPerItem int64 `json:"purchase_bonus_per_item"`
	// Timezone 月份边界判定所用时区（IANA 名称，默认 UTC）
	Timezone string `json:"timezone"`
}

// Payment 支付服务配置
type Payment struct {
	Endpoint string   `json:"endpoint"`
	Timeout  Duration `json:"timeout"`
}

// Log 日志配置
type Log struct {
	Level string `json:"level"`
}
