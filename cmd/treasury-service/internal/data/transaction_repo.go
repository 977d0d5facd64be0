package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"gorm.io/gorm"
)

// TransactionDO 交易数据对象。只追加：仓储不提供任何更新或删除入口。
type TransactionDO struct {
	ID           string `gorm:"primaryKey;size:100"`
	AgentID      string `gorm:"index:idx_tx_agent_ts;size:100"`
	Amount       int64
	Description  string `gorm:"size:500"`
	Outcome      string `gorm:"index;size:20"`
	DenialReason string `gorm:"size:50"`
	ROIData      string `gorm:"type:text"`
	Metadata     string `gorm:"type:text"`
	Timestamp    int64  `gorm:"index:idx_tx_agent_ts"`
}

// TableName 指定表名
func (TransactionDO) TableName() string {
	return "transactions"
}

// transactionRepo 交易仓储实现
type transactionRepo struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &transactionRepo{db: db}
}

// Append 追加交易记录
func (r *transactionRepo) Append(ctx context.Context, tx *domain.Transaction) error {
	do, err := toTransactionDO(tx)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(do).Error; err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// ListByAgent 按代理和时间窗口检索，新的在前
func (r *transactionRepo) ListByAgent(ctx context.Context, agentID string, window domain.TimeRange, limit int) ([]*domain.Transaction, error) {
	query := r.db.WithContext(ctx).
		Model(&TransactionDO{}).
		Where("agent_id = ?", agentID)

	if !window.From.IsZero() {
		query = query.Where("timestamp >= ?", window.From.UnixMilli())
	}
	if !window.To.IsZero() {
		query = query.Where("timestamp <= ?", window.To.UnixMilli())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dos []TransactionDO
	if err := query.Order("timestamp DESC").Find(&dos).Error; err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(dos))
	for i := range dos {
		tx, err := fromTransactionDO(&dos[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func toTransactionDO(tx *domain.Transaction) (*TransactionDO, error) {
	do := &TransactionDO{
		ID:           tx.ID,
		AgentID:      tx.AgentID,
		Amount:       tx.Amount,
		Description:  tx.Description,
		Outcome:      string(tx.Outcome),
		DenialReason: tx.DenialReason,
		Timestamp:    tx.Timestamp.UnixMilli(),
	}

	if tx.ROI != nil {
		raw, err := json.Marshal(tx.ROI)
		if err != nil {
			return nil, fmt.Errorf("marshal roi data: %w", err)
		}
		do.ROIData = string(raw)
	}
	if len(tx.Metadata) > 0 {
		raw, err := json.Marshal(tx.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		do.Metadata = string(raw)
	}

	return do, nil
}

func fromTransactionDO(do *TransactionDO) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:           do.ID,
		AgentID:      do.AgentID,
		Amount:       do.Amount,
		Description:  do.Description,
		Outcome:      domain.TransactionOutcome(do.Outcome),
		DenialReason: do.DenialReason,
		Timestamp:    time.UnixMilli(do.Timestamp).UTC(),
	}

	if do.ROIData != "" {
		var roi domain.ROIData
		if err := json.Unmarshal([]byte(do.ROIData), &roi); err != nil {
			return nil, fmt.Errorf("unmarshal roi data: %w", err)
		}
		tx.ROI = &roi
	}
	if do.Metadata != "" {
		if err := json.Unmarshal([]byte(do.Metadata), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return tx, nil
}
