package data

import (
	"context"
	"encoding/json"
	"fmt"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// breakerStateKey 熔断状态键。不设TTL：紧急制动不允许悄悄过期。
const breakerStateKey = "treasury:breaker:state"

// breakerStore 熔断状态的Redis实现
type breakerStore struct {
	client *redis.Client
}

// NewBreakerStore 创建熔断状态存储
func NewBreakerStore(client *redis.Client) domain.BreakerStore {
	return &breakerStore{client: client}
}

// Get 读取熔断状态，键不存在视为未冻结
func (s *breakerStore) Get(ctx context.Context) (*domain.BreakerState, error) {
	raw, err := s.client.Get(ctx, breakerStateKey).Result()
	if err == redis.Nil {
		return &domain.BreakerState{Frozen: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var state domain.BreakerState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("malformed breaker state: %w", err)
	}
	return &state, nil
}

// Set 写入熔断状态
func (s *breakerStore) Set(ctx context.Context, state *domain.BreakerState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, breakerStateKey, raw, 0).Err()
}
