package biz

import "time"

// PaymentEvent 支付结果事件（MQ 消息体 / 回调负载）
type PaymentEvent struct {
	OrderID         string    `json:"order_id"`
	ExternalOrderID string    `json:"external_order_id"`
	Status          string    `json:"status"` // PAID / ABANDONED
	Amount          int64     `json:"amount"`
	OccurredAt      time.Time `json:"occurred_at"`
}
