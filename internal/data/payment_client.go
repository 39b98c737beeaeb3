package data

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
)

// paymentProviderClient 外部支付服务 HTTP 客户端（实现 biz.PaymentProviderClient）
type paymentProviderClient struct {
	client *kratoshttp.Client
	log    *log.Helper
}

// NewPaymentProviderClient 创建支付服务客户端
// 未配置支付端点时返回 nil，结账编排会拒绝下单（PaymentUnavailable）
func NewPaymentProviderClient(c *conf.Bootstrap, logger log.Logger) (biz.PaymentProviderClient, error) {
	if c.Payment == nil || c.Payment.Endpoint == "" {
		log.NewHelper(logger).Warn("payment endpoint is not configured, checkout is disabled")
		return nil, nil
	}

	client, err := kratoshttp.NewClient(
		context.Background(),
		kratoshttp.WithEndpoint(c.Payment.Endpoint),
		kratoshttp.WithTimeout(c.Payment.Timeout.AsDuration()),
		kratoshttp.WithMiddleware(
			recovery.Recovery(),
		),
	)
	if err != nil {
		return nil, err
	}

	return &paymentProviderClient{
		client: client,
		log:    log.NewHelper(logger),
	}, nil
}

// CreateOrder 在支付服务创建订单
// 幂等键随请求体传递，同一本地订单重试复用同一个键
func (c *paymentProviderClient) CreateOrder(ctx context.Context, req *biz.CreateExternalOrderRequest) (*biz.CreateExternalOrderReply, error) {
	var reply biz.CreateExternalOrderReply
	if err := c.client.Invoke(ctx, "POST", "/v1/orders", req, &reply); err != nil {
		c.log.Errorf("payment CreateOrder failed: order_id=%s, error=%v", req.OrderID, err)
		return nil, err
	}
	return &reply, nil
}

// CreatePaymentLink 为外部订单创建支付链接
func (c *paymentProviderClient) CreatePaymentLink(ctx context.Context, req *biz.CreatePaymentLinkRequest) (*biz.CreatePaymentLinkReply, error) {
	var reply biz.CreatePaymentLinkReply
	if err := c.client.Invoke(ctx, "POST", "/v1/payment-links", req, &reply); err != nil {
		c.log.Errorf("payment CreatePaymentLink failed: external_order_id=%s, error=%v", req.ExternalOrderID, err)
		return nil, err
	}
	return &reply, nil
}
