package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecentIndexPushAndRead 新交易排在前面，按代理隔离
func TestRecentIndexPushAndRead(t *testing.T) {
	index := NewRecentActivityIndex(newTestRedis(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tx := &domain.Transaction{
			ID:        fmt.Sprintf("tx-%d", i),
			AgentID:   "agent-1",
			Amount:    -100,
			Outcome:   domain.OutcomeSuccess,
			Timestamp: time.Now().UTC(),
		}
		require.NoError(t, index.Push(ctx, tx, time.Hour))
	}
	require.NoError(t, index.Push(ctx, &domain.Transaction{
		ID: "other", AgentID: "agent-2", Amount: -1, Outcome: domain.OutcomeSuccess,
	}, time.Hour))

	txs, err := index.Recent(ctx, "agent-1", 3)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-4", txs[0].ID, "newest entry first")
	assert.Equal(t, "tx-3", txs[1].ID)

	txs, err = index.Recent(ctx, "agent-2", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "other", txs[0].ID)
}

// TestRecentIndexEmpty 没有记录时返回空集
func TestRecentIndexEmpty(t *testing.T) {
	index := NewRecentActivityIndex(newTestRedis(t))

	txs, err := index.Recent(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
