package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// recentIndexCap 每个代理保留的近期活动条数
const recentIndexCap = 100

// recentIndex 近期活动索引。纯读路径加速，丢失无害。
type recentIndex struct {
	client *redis.Client
}

// NewRecentActivityIndex 创建近期活动索引
func NewRecentActivityIndex(client *redis.Client) domain.RecentActivityIndex {
	return &recentIndex{client: client}
}

func recentKey(agentID string) string {
	return fmt.Sprintf("treasury:recent:%s", agentID)
}

// Push 追加一条交易到索引头部
func (i *recentIndex) Push(ctx context.Context, tx *domain.Transaction, ttl time.Duration) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	key := recentKey(tx.AgentID)
	pipe := i.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, recentIndexCap-1)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent 读取最近n条交易
func (i *recentIndex) Recent(ctx context.Context, agentID string, n int) ([]*domain.Transaction, error) {
	if n <= 0 || n > recentIndexCap {
		n = recentIndexCap
	}

	raws, err := i.client.LRange(ctx, recentKey(agentID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(raws))
	for _, raw := range raws {
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			return nil, fmt.Errorf("malformed recent activity entry: %w", err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}
