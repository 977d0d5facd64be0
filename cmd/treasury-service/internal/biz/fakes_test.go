package biz

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// 内存实现的存储端口，供业务层测试使用

var errVersionConflict = errors.New("version conflict")

type memBudgetCache struct {
	mu      sync.Mutex
	budgets map[string]*domain.AgentBudget
}

func newMemBudgetCache() *memBudgetCache {
	return &memBudgetCache{budgets: make(map[string]*domain.AgentBudget)}
}

func (c *memBudgetCache) GetBudget(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.budgets[agentID]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return b.Clone(), nil
}

func (c *memBudgetCache) SeedBudget(ctx context.Context, budget *domain.AgentBudget) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	budget.Version = 1
	c.budgets[budget.AgentID] = budget.Clone()
	return nil
}

func (c *memBudgetCache) CompareAndSwap(ctx context.Context, budget *domain.AgentBudget) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.budgets[budget.AgentID]
	if !ok {
		return domain.ErrAgentNotFound
	}
	if current.Version != budget.Version {
		return errVersionConflict
	}
	budget.Version++
	c.budgets[budget.AgentID] = budget.Clone()
	return nil
}

func (c *memBudgetCache) IsConflict(err error) bool {
	return errors.Is(err, errVersionConflict)
}

type memBudgetRepo struct {
	mu      sync.Mutex
	budgets map[string]*domain.AgentBudget
}

func newMemBudgetRepo() *memBudgetRepo {
	return &memBudgetRepo{budgets: make(map[string]*domain.AgentBudget)}
}

func (r *memBudgetRepo) Upsert(ctx context.Context, budget *domain.AgentBudget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets[budget.AgentID] = budget.Clone()
	return nil
}

func (r *memBudgetRepo) Get(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.budgets[agentID]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return b.Clone(), nil
}

func (r *memBudgetRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.budgets))
	for id, b := range r.budgets {
		if b.Status == domain.StatusActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memTxRepo struct {
	mu   sync.Mutex
	txs  []*domain.Transaction
	fail bool
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{}
}

func (r *memTxRepo) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *memTxRepo) Append(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("durable store unavailable")
	}
	clone := *tx
	r.txs = append(r.txs, &clone)
	return nil
}

func (r *memTxRepo) ListByAgent(ctx context.Context, agentID string, window domain.TimeRange, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.txs {
		if tx.AgentID != agentID {
			continue
		}
		if !window.From.IsZero() && tx.Timestamp.Before(window.From) {
			continue
		}
		if !window.To.IsZero() && tx.Timestamp.After(window.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTxRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

func (r *memTxRepo) byOutcome(outcome domain.TransactionOutcome) []*domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.txs {
		if tx.Outcome == outcome {
			out = append(out, tx)
		}
	}
	return out
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	fail   bool
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{}
}

func (r *memAuditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("audit store unavailable")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, window domain.TimeRange, limit int) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuditEvent, len(r.events))
	copy(out, r.events)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAuditRepo) byAction(action domain.AuditAction) []*domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEvent
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type memBreakerStore struct {
	mu    sync.Mutex
	state domain.BreakerState
	fail  bool
}

func newMemBreakerStore() *memBreakerStore {
	return &memBreakerStore{}
}

func (s *memBreakerStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *memBreakerStore) Get(ctx context.Context) (*domain.BreakerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("breaker store unavailable")
	}
	state := s.state
	return &state, nil
}

func (s *memBreakerStore) Set(ctx context.Context, state *domain.BreakerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("breaker store unavailable")
	}
	s.state = *state
	return nil
}

type memRecentIndex struct {
	mu    sync.Mutex
	byID  map[string][]*domain.Transaction
	limit int
}

func newMemRecentIndex() *memRecentIndex {
	return &memRecentIndex{byID: make(map[string][]*domain.Transaction), limit: 100}
}

func (i *memRecentIndex) Push(ctx context.Context, tx *domain.Transaction, ttl time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	clone := *tx
	list := append([]*domain.Transaction{&clone}, i.byID[tx.AgentID]...)
	if len(list) > i.limit {
		list = list[:i.limit]
	}
	i.byID[tx.AgentID] = list
	return nil
}

func (i *memRecentIndex) Recent(ctx context.Context, agentID string, n int) ([]*domain.Transaction, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	list := i.byID[agentID]
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	out := make([]*domain.Transaction, len(list))
	copy(out, list)
	return out, nil
}

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}
