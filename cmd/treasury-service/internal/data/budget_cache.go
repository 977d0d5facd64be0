package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"treasury/cmd/treasury-service/internal/domain"
	"treasury/pkg/cache"

	"github.com/redis/go-redis/v9"
)

// 预算哈希的字段名
const (
	fieldBalance        = "balance"
	fieldDailyLimit     = "daily_limit"
	fieldPerActionLimit = "per_action_limit"
	fieldSpentToday     = "spent_today"
	fieldLastReset      = "last_reset"
	fieldTimezone       = "timezone"
	fieldStatus         = "status"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
)

// budgetCache 预算计数器的Redis实现。每个代理一个哈希，
// 版本令牌由 pkg/cache 的CAS原语维护。余额的权威在这里，
// 因此预算键不设TTL。
type budgetCache struct {
	cache cache.VersionedCache
}

// NewBudgetCache 创建预算缓存适配器
func NewBudgetCache(client *redis.Client) domain.BudgetCache {
	return &budgetCache{
		cache: cache.NewRedisCache(client, &cache.CacheOptions{
			KeyPrefix: "treasury",
		}),
	}
}

func budgetKey(agentID string) string {
	return fmt.Sprintf("budget:%s", agentID)
}

// GetBudget 读取预算及版本号
func (c *budgetCache) GetBudget(ctx context.Context, agentID string) (*domain.AgentBudget, error) {
	fields, version, err := c.cache.GetVersioned(ctx, budgetKey(agentID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}

	budget, err := budgetFromFields(agentID, fields)
	if err != nil {
		return nil, err
	}
	budget.Version = version
	return budget, nil
}

// SeedBudget 无条件写入（开户或从持久镜像回填）
func (c *budgetCache) SeedBudget(ctx context.Context, budget *domain.AgentBudget) error {
	if err := c.cache.PutVersioned(ctx, budgetKey(budget.AgentID), budgetToFields(budget), 0); err != nil {
		return err
	}
	budget.Version = 1
	return nil
}

// CompareAndSwap 版本匹配时写入并递增版本号
func (c *budgetCache) CompareAndSwap(ctx context.Context, budget *domain.AgentBudget) error {
	err := c.cache.CompareAndSwap(ctx, budgetKey(budget.AgentID), budget.Version, budgetToFields(budget), 0)
	if err != nil {
		return err
	}
	budget.Version++
	return nil
}

// IsConflict 判断是否为版本冲突
func (c *budgetCache) IsConflict(err error) bool {
	return errors.Is(err, cache.ErrCASConflict)
}

func budgetToFields(b *domain.AgentBudget) map[string]string {
	return map[string]string{
		fieldBalance:        strconv.FormatInt(b.CurrentBalance, 10),
		fieldDailyLimit:     strconv.FormatInt(b.DailyLimit, 10),
		fieldPerActionLimit: strconv.FormatInt(b.PerActionLimit, 10),
		fieldSpentToday:     strconv.FormatInt(b.SpentToday, 10),
		fieldLastReset:      b.LastResetDate,
		fieldTimezone:       b.Timezone,
		fieldStatus:         string(b.Status),
		fieldCreatedAt:      strconv.FormatInt(b.CreatedAt.UnixMilli(), 10),
		fieldUpdatedAt:      strconv.FormatInt(b.UpdatedAt.UnixMilli(), 10),
	}
}

func budgetFromFields(agentID string, fields map[string]string) (*domain.AgentBudget, error) {
	b := &domain.AgentBudget{
		AgentID:       agentID,
		LastResetDate: fields[fieldLastReset],
		Timezone:      fields[fieldTimezone],
		Status:        domain.BudgetStatus(fields[fieldStatus]),
	}

	var err error
	parse := func(name string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			err = fmt.Errorf("malformed budget field %s for %s: %w", name, agentID, err)
		}
		return v
	}

	b.CurrentBalance = parse(fieldBalance)
	b.DailyLimit = parse(fieldDailyLimit)
	b.PerActionLimit = parse(fieldPerActionLimit)
	b.SpentToday = parse(fieldSpentToday)
	createdAt := parse(fieldCreatedAt)
	updatedAt := parse(fieldUpdatedAt)
	if err != nil {
		return nil, err
	}

	b.CreatedAt = time.UnixMilli(createdAt).UTC()
	b.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return b, nil
}
