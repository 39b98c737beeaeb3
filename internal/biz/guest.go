package biz

import (
	"context"
	"time"

	"credit-service/internal/clock"
	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// GuestQuota 游客额度领域对象
type GuestQuota struct {
	SessionID     string
	Count         int
	WindowStartAt time.Time
	LastIP        string
}

// GuestQuotaDecision 一次检查并消耗的结果
type GuestQuotaDecision struct {
	Allowed   bool
	Remaining int
	ResetsAt  time.Time
}

// GuestQuotaRepo 游客额度数据层接口（定义在 biz 层）
// Consume 必须是单个原子操作：窗口判定、计数与写入在同一个事务内完成，
// 不允许拆成 check-then-record 两步
type GuestQuotaRepo interface {
	Consume(ctx context.Context, sessionID, ip string, limit int, window time.Duration, now time.Time) (*GuestQuotaDecision, error)
	GetQuota(ctx context.Context, sessionID string) (*GuestQuota, error)
}

// GuestQuotaUseCase 游客限流业务逻辑
type GuestQuotaUseCase struct {
	repo    GuestQuotaRepo
	conf    *CreditConfig
	clk     clock.Clock
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewGuestQuotaUseCase 创建游客限流 UseCase
func NewGuestQuotaUseCase(repo GuestQuotaRepo, conf *CreditConfig, clk clock.Clock, logger log.Logger) *GuestQuotaUseCase {
	return &GuestQuotaUseCase{
		repo:    repo,
		conf:    conf,
		clk:     clk,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// CheckAndConsume 检查并消耗一次游客额度
// 窗口以窗口内首次生成时间为锚点，超过 24 小时视为新窗口；
// 额度用尽时不递增计数，resets_at = window_start_at + 24h
func (uc *GuestQuotaUseCase) CheckAndConsume(ctx context.Context, sessionID, ip string) (*GuestQuotaDecision, error) {
	decision, err := uc.repo.Consume(ctx, sessionID, ip, uc.conf.GuestDailyLimit, GuestWindow, uc.clk.Now())
	if err != nil {
		uc.metrics.GuestCheckTotal.WithLabelValues(constants.CheckResultError).Inc()
		return nil, err
	}

	if decision.Allowed {
		uc.metrics.GuestCheckTotal.WithLabelValues(constants.CheckResultAllowed).Inc()
	} else {
		uc.metrics.GuestCheckTotal.WithLabelValues(constants.CheckResultDenied).Inc()
	}
	return decision, nil
}
