package service

import (
	"context"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditService 积分账本对外服务
type CreditService struct {
	uc  *biz.CreditUseCase
	log *log.Helper
}

// NewCreditService 创建 CreditService
func NewCreditService(uc *biz.CreditUseCase, logger log.Logger) *CreditService {
	return &CreditService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CheckBalanceRequest 余额预检请求
type CheckBalanceRequest struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
}

// CheckBalanceReply 余额预检响应
type CheckBalanceReply struct {
	Sufficient bool  `json:"sufficient"`
	Balance    int64 `json:"balance"`
	Cost       int64 `json:"cost"`
}

// CheckBalance 只读余额预检（UI 在触发付费操作前调用）
func (s *CreditService) CheckBalance(ctx context.Context, req *CheckBalanceRequest) (*CheckBalanceReply, error) {
	sufficient, balance, cost, err := s.uc.CheckBalance(ctx, req.AccountID, req.Action)
	if err != nil {
		s.log.Errorf("CheckBalance failed: %v", err)
		return nil, err
	}
	return &CheckBalanceReply{
		Sufficient: sufficient,
		Balance:    balance,
		Cost:       cost,
	}, nil
}

// DeductRequest 扣减请求
type DeductRequest struct {
	AccountID string                 `json:"account_id"`
	Action    string                 `json:"action"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// DeductReply 扣减响应
type DeductReply struct {
	OK         bool  `json:"ok"`
	NewBalance int64 `json:"newBalance"`
	Cost       int64 `json:"cost"`
}

// Deduct 扣减积分，余额不足返回 409 InsufficientBalance
func (s *CreditService) Deduct(ctx context.Context, req *DeductRequest) (*DeductReply, error) {
	newBalance, cost, err := s.uc.Deduct(ctx, req.AccountID, req.Action, req.Metadata)
	if err != nil {
		return nil, err
	}
	return &DeductReply{
		OK:         true,
		NewBalance: newBalance,
		Cost:       cost,
	}, nil
}

// GrantRequest 发放请求（内部/管理端）
type GrantRequest struct {
	AccountID string                 `json:"account_id"`
	Amount    int64                  `json:"amount"`
	Kind      string                 `json:"kind"`
	Reason    string                 `json:"reason"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GrantReply 发放响应
type GrantReply struct {
	NewBalance int64 `json:"newBalance"`
}

// Grant 发放积分（内部/管理端）
func (s *CreditService) Grant(ctx context.Context, req *GrantRequest) (*GrantReply, error) {
	newBalance, err := s.uc.Grant(ctx, req.AccountID, req.Amount, req.Kind, req.Reason, req.Metadata)
	if err != nil {
		s.log.Errorf("Grant failed: %v", err)
		return nil, err
	}
	return &GrantReply{NewBalance: newBalance}, nil
}

// WelcomeBonusRequest 新用户赠送请求
type WelcomeBonusRequest struct {
	AccountID string `json:"account_id"`
}

// WelcomeBonusReply 新用户赠送响应
type WelcomeBonusReply struct {
	NewBalance int64 `json:"newBalance"`
}

// GrantWelcomeBonus 发放一次性新用户赠送，重复调用返回 409
func (s *CreditService) GrantWelcomeBonus(ctx context.Context, req *WelcomeBonusRequest) (*WelcomeBonusReply, error) {
	newBalance, err := s.uc.GrantWelcomeBonus(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	return &WelcomeBonusReply{NewBalance: newBalance}, nil
}

// GetAccountRequest 账户查询请求
type GetAccountRequest struct {
	AccountID string `json:"account_id"`
}

// GetAccountReply 账户查询响应
type GetAccountReply struct {
	AccountID          string    `json:"account_id"`
	Balance            int64     `json:"balance"`
	MonthlyAllocation  int64     `json:"monthly_allocation"`
	MonthlyUsed        int64     `json:"monthly_used"`
	LastMonthlyResetAt time.Time `json:"last_monthly_reset_at"`
	WelcomeAllocation  int64     `json:"welcome_allocation"`
	WelcomeUsed        int64     `json:"welcome_used"`
	LifetimeGranted    int64     `json:"lifetime_granted"`
	LifetimeSpent      int64     `json:"lifetime_spent"`
}

// GetAccount 获取账户（不存在则初始化，必要时先做惰性月度重置）
func (s *CreditService) GetAccount(ctx context.Context, req *GetAccountRequest) (*GetAccountReply, error) {
	account, err := s.uc.GetOrInitAccount(ctx, req.AccountID)
	if err != nil {
		s.log.Errorf("GetAccount failed: %v", err)
		return nil, err
	}
	return &GetAccountReply{
		AccountID:          account.AccountID,
		Balance:            account.Balance,
		MonthlyAllocation:  account.MonthlyAllocation,
		MonthlyUsed:        account.MonthlyUsed,
		LastMonthlyResetAt: account.LastMonthlyResetAt,
		WelcomeAllocation:  account.WelcomeAllocation,
		WelcomeUsed:        account.WelcomeUsed,
		LifetimeGranted:    account.LifetimeGranted,
		LifetimeSpent:      account.LifetimeSpent,
	}, nil
}

// ListTransactionsRequest 流水查询请求
type ListTransactionsRequest struct {
	AccountID string `json:"account_id"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// TransactionItem 流水行
type TransactionItem struct {
	ID           string                 `json:"id"`
	Amount       int64                  `json:"amount"`
	BalanceAfter int64                  `json:"balance_after"`
	Kind         string                 `json:"kind"`
	Reason       string                 `json:"reason"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ListTransactionsReply 流水查询响应
type ListTransactionsReply struct {
	Total        int64              `json:"total"`
	Transactions []*TransactionItem `json:"transactions"`
}

// ListTransactions 分页获取积分流水
func (s *CreditService) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*ListTransactionsReply, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	transactions, total, err := s.uc.ListTransactions(ctx, req.AccountID, page, pageSize)
	if err != nil {
		s.log.Errorf("ListTransactions failed: %v", err)
		return nil, err
	}

	reply := &ListTransactionsReply{
		Total:        total,
		Transactions: make([]*TransactionItem, 0, len(transactions)),
	}
	for _, t := range transactions {
		reply.Transactions = append(reply.Transactions, &TransactionItem{
			ID:           t.ID,
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			Kind:         t.Kind,
			Reason:       t.Reason,
			Metadata:     t.Metadata,
			CreatedAt:    t.CreatedAt,
		})
	}
	return reply, nil
}

// AuditRequest 审计重放请求
type AuditRequest struct {
	AccountID string `json:"account_id"`
}

// AuditReply 审计重放响应
type AuditReply struct {
	AccountID  string `json:"account_id"`
	Balance    int64  `json:"balance"`
	Replayed   int64  `json:"replayed"`
	Consistent bool   `json:"consistent"`
}

// ReplayBalance 审计重放：累加全部流水并与当前余额比对
func (s *CreditService) ReplayBalance(ctx context.Context, req *AuditRequest) (*AuditReply, error) {
	audit, err := s.uc.ReplayBalance(ctx, req.AccountID)
	if err != nil {
		s.log.Errorf("ReplayBalance failed: %v", err)
		return nil, err
	}
	return &AuditReply{
		AccountID:  audit.AccountID,
		Balance:    audit.Balance,
		Replayed:   audit.Replayed,
		Consistent: audit.Consistent,
	}, nil
}
