package service

import (
	"context"
	"errors"
	"time"

	"treasury/cmd/treasury-service/internal/biz"
	"treasury/cmd/treasury-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// TreasuryService 资金引擎对外门面。编排器进程内直接持有它，
// HTTP层只是薄封装。
type TreasuryService struct {
	registry *biz.BudgetRegistry
	ledger   *biz.TransactionLedger
	breaker  *biz.EmergencyBreaker
	scaler   *biz.PerformanceScaler
	log      *log.Helper
}

// NewTreasuryService 创建服务门面
func NewTreasuryService(
	registry *biz.BudgetRegistry,
	ledger *biz.TransactionLedger,
	breaker *biz.EmergencyBreaker,
	scaler *biz.PerformanceScaler,
	logger log.Logger,
) *TreasuryService {
	return &TreasuryService{
		registry: registry,
		ledger:   ledger,
		breaker:  breaker,
		scaler:   scaler,
		log:      log.NewHelper(log.With(logger, "module", "treasury-service")),
	}
}

// AuthorizeRequest 支出授权请求
type AuthorizeRequest struct {
	AgentID     string            `json:"agent_id" binding:"required"`
	Amount      int64             `json:"amount" binding:"required"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

// AuthorizeReply 支出授权结果
type AuthorizeReply struct {
	TransactionID string `json:"transaction_id"`
	// AuditDegraded 消费已生效但持久审计处于降级状态
	AuditDegraded bool `json:"audit_degraded,omitempty"`
}

// Authorize 授权一笔支出
func (s *TreasuryService) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeReply, error) {
	txID, err := s.registry.Authorize(ctx, req.AgentID, req.Amount, req.Description, req.Metadata)
	if errors.Is(err, domain.ErrAuditWriteDegraded) {
		return &AuthorizeReply{TransactionID: txID, AuditDegraded: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &AuthorizeReply{TransactionID: txID}, nil
}

// DepositRequest 充值请求
type DepositRequest struct {
	AgentID     string `json:"agent_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// Deposit 为代理充值
func (s *TreasuryService) Deposit(ctx context.Context, req *DepositRequest) (*AuthorizeReply, error) {
	txID, err := s.registry.Deposit(ctx, req.AgentID, req.Amount, req.Description)
	if err != nil {
		return nil, err
	}
	return &AuthorizeReply{TransactionID: txID}, nil
}

// CreateBudgetRequest 开户请求
type CreateBudgetRequest struct {
	AgentID        string `json:"agent_id" binding:"required"`
	InitialBalance int64  `json:"initial_balance"`
	DailyLimit     int64  `json:"daily_limit"`
	PerActionLimit int64  `json:"per_action_limit"`
	Timezone       string `json:"timezone"`
}

// CreateBudget 为新代理开户
func (s *TreasuryService) CreateBudget(ctx context.Context, req *CreateBudgetRequest) (*domain.AgentBudget, error) {
	budget := &domain.AgentBudget{
		AgentID:        req.AgentID,
		CurrentBalance: req.InitialBalance,
		DailyLimit:     req.DailyLimit,
		PerActionLimit: req.PerActionLimit,
		Timezone:       req.Timezone,
	}
	if err := s.registry.CreateBudget(ctx, budget); err != nil {
		return nil, err
	}
	return budget, nil
}

// SetStatusRequest 状态变更请求
type SetStatusRequest struct {
	Status domain.BudgetStatus `json:"status" binding:"required"`
	Actor  string              `json:"actor" binding:"required"`
	Reason string              `json:"reason"`
}

// SetStatus 启停代理
func (s *TreasuryService) SetStatus(ctx context.Context, agentID string, req *SetStatusRequest) error {
	return s.registry.SetStatus(ctx, agentID, req.Status, req.Actor, req.Reason)
}

// GetBudget 查询预算
func (s *TreasuryService) GetBudget(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	return s.registry.GetBudget(ctx, agentID)
}

// GetTransactions 按时间窗口查询交易
func (s *TreasuryService) GetTransactions(ctx context.Context, agentID string, from, to time.Time, limit int) ([]*domain.Transaction, error) {
	return s.ledger.GetTransactions(ctx, agentID, domain.TimeRange{From: from, To: to}, limit)
}

// GetRecentActivity 查询近期活动
func (s *TreasuryService) GetRecentActivity(ctx context.Context, agentID string, n int) ([]*domain.Transaction, error) {
	return s.ledger.RecentActivity(ctx, agentID, n)
}

// BreakerRequest 熔断操作请求
type BreakerRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
}

// Freeze 冻结全部消费
func (s *TreasuryService) Freeze(ctx context.Context, req *BreakerRequest) error {
	return s.breaker.Freeze(ctx, req.Reason, req.Actor)
}

// Unfreeze 解除冻结
func (s *TreasuryService) Unfreeze(ctx context.Context, req *BreakerRequest) error {
	return s.breaker.Unfreeze(ctx, req.Reason, req.Actor)
}

// BreakerState 查询熔断状态
func (s *TreasuryService) BreakerState(ctx context.Context) (*domain.BreakerState, error) {
	return s.breaker.State(ctx)
}

// Rescale 按ROI重算某个代理的限额
func (s *TreasuryService) Rescale(ctx context.Context, agentID string) (*biz.NewLimits, error) {
	return s.scaler.Rescale(ctx, agentID)
}

// AuditDegraded 持久审计路径是否降级
func (s *TreasuryService) AuditDegraded() bool {
	return s.ledger.Degraded()
}
