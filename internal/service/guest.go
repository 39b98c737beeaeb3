package service

import (
	"context"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// GuestService 游客限流对外服务
type GuestService struct {
	uc  *biz.GuestQuotaUseCase
	log *log.Helper
}

// NewGuestService 创建 GuestService
func NewGuestService(uc *biz.GuestQuotaUseCase, logger log.Logger) *GuestService {
	return &GuestService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CheckGuestQuotaRequest 游客额度检查请求
type CheckGuestQuotaRequest struct {
	SessionID string `json:"session_id"`
	IP        string `json:"ip,omitempty"` // 仅参考
}

// CheckGuestQuotaReply 游客额度检查响应
type CheckGuestQuotaReply struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// CheckQuota 检查并消耗一次游客额度（单个原子操作）
func (s *GuestService) CheckQuota(ctx context.Context, req *CheckGuestQuotaRequest) (*CheckGuestQuotaReply, error) {
	decision, err := s.uc.CheckAndConsume(ctx, req.SessionID, req.IP)
	if err != nil {
		s.log.Errorf("CheckQuota failed: %v", err)
		return nil, err
	}
	return &CheckGuestQuotaReply{
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
		ResetsAt:  decision.ResetsAt,
	}, nil
}
