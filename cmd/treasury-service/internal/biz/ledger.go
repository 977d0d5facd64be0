package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"treasury/cmd/treasury-service/internal/domain"
	"treasury/pkg/monitoring"
	"treasury/pkg/resilience"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// LedgerConfig 交易账本配置
type LedgerConfig struct {
	// FlushInterval 缓冲记录的后台重放周期
	FlushInterval time.Duration
	// RecentTTL 近期活动索引的保留时间
	RecentTTL time.Duration
	// RecentLimit 近期活动索引的容量
	RecentLimit int
	// DegradedThreshold 缓冲深度超过该值即视为审计降级
	DegradedThreshold int
}

// DefaultLedgerConfig 默认配置
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		FlushInterval:     2 * time.Second,
		RecentTTL:         7 * 24 * time.Hour,
		RecentLimit:       100,
		DegradedThreshold: 64,
	}
}

// TransactionLedger 不可变交易账本。每次授权尝试恰好产生一条记录；
// 持久存储不可用时记录进入本地缓冲并指数退避重放，绝不丢弃——
// 余额正确性以缓存存储为准，账本完整性以持久存储为准，两者不可混淆。
type TransactionLedger struct {
	repo   domain.TransactionRepository
	recent domain.RecentActivityIndex
	cfg    LedgerConfig
	log    *log.Helper

	// durable 熔断持久写入路径，避免存储故障时雪崩式重试
	durable *gobreaker.CircuitBreaker

	mu      sync.Mutex
	pending map[string]*domain.Transaction

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTransactionLedger 创建交易账本并启动后台重放循环
func NewTransactionLedger(repo domain.TransactionRepository, recent domain.RecentActivityIndex, cfg LedgerConfig, logger log.Logger) *TransactionLedger {
	if cfg.FlushInterval <= 0 {
		cfg = DefaultLedgerConfig()
	}

	l := &TransactionLedger{
		repo:    repo,
		recent:  recent,
		cfg:     cfg,
		log:     log.NewHelper(log.With(logger, "module", "transaction-ledger")),
		pending: make(map[string]*domain.Transaction),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	l.durable = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-durable-store",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.log.Warnf("durable store breaker %s: %s -> %s", name, from, to)
		},
	})

	go l.flushLoop()

	return l
}

// Record 追加一条交易。写入后永不修改或删除。
// 持久追加失败只会降级（缓冲+重放），不会阻塞调用方。
func (l *TransactionLedger) Record(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.AgentID == "" {
		return fmt.Errorf("ledger: invalid transaction")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	// 近期活动索引尽力而为，不影响账本完整性
	if l.recent != nil {
		if err := l.recent.Push(ctx, tx, l.cfg.RecentTTL); err != nil {
			l.log.WithContext(ctx).Warnf("recent index push failed for %s: %v", tx.ID, err)
		}
	}

	if err := l.appendDurable(ctx, tx); err != nil {
		l.buffer(tx)
		l.log.WithContext(ctx).Errorf("durable append failed for %s, buffered: %v", tx.ID, err)
	}

	return nil
}

// Degraded 持久审计路径是否处于降级状态
func (l *TransactionLedger) Degraded() bool {
	if l.durable.State() == gobreaker.StateOpen {
		return true
	}
	l.mu.Lock()
	depth := len(l.pending)
	l.mu.Unlock()
	return depth > l.cfg.DegradedThreshold
}

// GetTransactions 按时间窗口检索某个代理的交易
func (l *TransactionLedger) GetTransactions(ctx context.Context, agentID string, window domain.TimeRange, limit int) ([]*domain.Transaction, error) {
	return l.repo.ListByAgent(ctx, agentID, window, limit)
}

// RecentActivity 读取近期活动索引
func (l *TransactionLedger) RecentActivity(ctx context.Context, agentID string, n int) ([]*domain.Transaction, error) {
	if l.recent == nil {
		return nil, nil
	}
	if n <= 0 || n > l.cfg.RecentLimit {
		n = l.cfg.RecentLimit
	}
	return l.recent.Recent(ctx, agentID, n)
}

// Close 停止后台循环并做最后一次重放
func (l *TransactionLedger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
	return nil
}

func (l *TransactionLedger) appendDurable(ctx context.Context, tx *domain.Transaction) error {
	_, err := l.durable.Execute(func() (interface{}, error) {
		return nil, l.repo.Append(ctx, tx)
	})
	return err
}

func (l *TransactionLedger) buffer(tx *domain.Transaction) {
	l.mu.Lock()
	l.pending[tx.ID] = tx
	depth := len(l.pending)
	l.mu.Unlock()

	monitoring.AuditBufferDepth.Set(float64(depth))
	if depth > l.cfg.DegradedThreshold {
		monitoring.AuditDegraded.Set(1)
	}
}

func (l *TransactionLedger) flushLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.flush(context.Background())
		case <-l.stop:
			// 最后一次重放，尽量清空缓冲
			l.flush(context.Background())
			return
		}
	}
}

// flush 重放缓冲中的记录
func (l *TransactionLedger) flush(ctx context.Context) {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	batch := make([]*domain.Transaction, 0, len(l.pending))
	for _, tx := range l.pending {
		batch = append(batch, tx)
	}
	l.mu.Unlock()

	flushed := 0
	for _, tx := range batch {
		err := resilience.RetryWithBackoff(ctx, 2, 50*time.Millisecond, time.Second, func() error {
			return l.appendDurable(ctx, tx)
		})
		if err != nil {
			// 保留在缓冲中，下个周期继续
			continue
		}

		l.mu.Lock()
		delete(l.pending, tx.ID)
		l.mu.Unlock()
		flushed++
	}

	l.mu.Lock()
	depth := len(l.pending)
	l.mu.Unlock()

	monitoring.AuditBufferDepth.Set(float64(depth))
	if depth <= l.cfg.DegradedThreshold && l.durable.State() != gobreaker.StateOpen {
		monitoring.AuditDegraded.Set(0)
	}
	if flushed > 0 {
		l.log.Infof("replayed %d buffered transactions, %d remain", flushed, depth)
	}
}
