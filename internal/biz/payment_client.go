package biz

import "context"

// PaymentProviderClient 外部支付服务客户端接口
// 两个调用都必须携带幂等键：同一个本地订单重试时复用同一个键，
// 支付侧保证不会重复建单
type PaymentProviderClient interface {
	CreateOrder(ctx context.Context, req *CreateExternalOrderRequest) (*CreateExternalOrderReply, error)
	CreatePaymentLink(ctx context.Context, req *CreatePaymentLinkRequest) (*CreatePaymentLinkReply, error)
}

// ExternalOrderItem 传给支付服务的行项目
type ExternalOrderItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // 分
	Quantity  int64  `json:"quantity"`
}

// CreateExternalOrderRequest 创建外部订单请求
type CreateExternalOrderRequest struct {
	OrderID        string              `json:"order_id"` // 本地订单号
	Items          []ExternalOrderItem `json:"items"`
	DiscountAmount int64               `json:"discount_amount"`
	Total          int64               `json:"total"`
	Currency       string              `json:"currency"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// CreateExternalOrderReply 创建外部订单响应
type CreateExternalOrderReply struct {
	ExternalOrderID string `json:"external_order_id"`
}

// CreatePaymentLinkRequest 创建支付链接请求
type CreatePaymentLinkRequest struct {
	ExternalOrderID string `json:"external_order_id"`
	OrderID         string `json:"order_id"`
	Total           int64  `json:"total"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// CreatePaymentLinkReply 创建支付链接响应
type CreatePaymentLinkReply struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}
