package server

import (
	"context"
	"encoding/json"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费支付服务投递的支付结果事件
// 回调与 MQ 两条路径走同一个幂等处理入口，重复投递是安全的
type MQConsumerServer struct {
	c        rocketmq.PushConsumer
	checkout *biz.CheckoutUseCase
	conf     *conf.Data
	log      *log.Helper
	enabled  bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者
func NewMQConsumerServer(c *conf.Bootstrap, checkout *biz.CheckoutUseCase, logger log.Logger) *MQConsumerServer {
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(c.Data.Rocketmq.RetryTimes),
	)
	if err != nil {
		log.NewHelper(logger).Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false}
	}

	return &MQConsumerServer{
		c:        r,
		checkout: checkout,
		conf:     c.Data,
		log:      log.NewHelper(logger),
		enabled:  true,
	}
}

// Start 启动消费者
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Info("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.Topic)

	err := s.c.Subscribe(s.conf.Rocketmq.Topic, consumer.MessageSelector{}, s.handler)
	if err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.Topic, err)
		// 不返回错误，避免导致整个应用启动失败
		// 在开发环境中，RocketMQ 可能不可用
		return nil
	}

	err = s.c.Start()
	if err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		// 不返回错误，避免导致整个应用启动失败
		return nil
	}

	return nil
}

// Stop 停止消费者
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var event biz.PaymentEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal payment event failed: %v, body: %s", err, string(msg.Body))
			// 消息格式错误重试没有意义，直接丢弃
			continue
		}

		if err := s.checkout.HandlePaymentResult(ctx, &event); err != nil {
			s.log.Errorf("HandlePaymentResult failed: order_id=%s, error=%v", event.OrderID, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
