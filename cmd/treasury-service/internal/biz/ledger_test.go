package biz

import (
	"context"
	"testing"
	"time"

	"treasury/cmd/treasury-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, repo *memTxRepo, cfg LedgerConfig) (*TransactionLedger, *memRecentIndex) {
	t.Helper()
	recent := newMemRecentIndex()
	ledger := NewTransactionLedger(repo, recent, cfg, testLogger())
	t.Cleanup(func() { ledger.Close() })
	return ledger, recent
}

func debitTx(agentID string, amount int64) *domain.Transaction {
	return &domain.Transaction{
		AgentID:   agentID,
		Amount:    -amount,
		Outcome:   domain.OutcomeSuccess,
		Timestamp: time.Now().UTC(),
	}
}

// TestLedgerRecordDurable 正常路径直接落库并写近期索引
func TestLedgerRecordDurable(t *testing.T) {
	repo := newMemTxRepo()
	ledger, recent := newTestLedger(t, repo, LedgerConfig{
		FlushInterval: 20 * time.Millisecond, RecentTTL: time.Hour, RecentLimit: 100, DegradedThreshold: 64,
	})

	tx := debitTx("agent-1", 500)
	require.NoError(t, ledger.Record(context.Background(), tx))
	assert.NotEmpty(t, tx.ID, "ledger assigns an ID when missing")

	assert.Equal(t, 1, repo.count())
	assert.False(t, ledger.Degraded())

	got, err := recent.Recent(context.Background(), "agent-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tx.ID, got[0].ID)
}

// TestLedgerBuffersAndReplays 持久存储故障时缓冲，恢复后重放，不丢记录
func TestLedgerBuffersAndReplays(t *testing.T) {
	repo := newMemTxRepo()
	ledger, _ := newTestLedger(t, repo, LedgerConfig{
		FlushInterval: 100 * time.Millisecond, RecentTTL: time.Hour, RecentLimit: 100, DegradedThreshold: 64,
	})

	repo.setFail(true)
	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Record(context.Background(), debitTx("agent-1", 100)), "record never fails the caller")
	}
	assert.Equal(t, 0, repo.count())

	repo.setFail(false)
	require.Eventually(t, func() bool {
		return repo.count() == 3
	}, 3*time.Second, 20*time.Millisecond, "buffered records must be replayed")
}

// TestLedgerDegraded 缓冲深度超过阈值即降级，清空后恢复
func TestLedgerDegraded(t *testing.T) {
	repo := newMemTxRepo()
	ledger, _ := newTestLedger(t, repo, LedgerConfig{
		FlushInterval: 100 * time.Millisecond, RecentTTL: time.Hour, RecentLimit: 100, DegradedThreshold: 2,
	})

	repo.setFail(true)
	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Record(context.Background(), debitTx("agent-1", 100)))
	}
	assert.True(t, ledger.Degraded())

	repo.setFail(false)
	require.Eventually(t, func() bool {
		return !ledger.Degraded()
	}, 3*time.Second, 20*time.Millisecond)
}

// TestLedgerCloseFlushes 关闭前做最后一次重放
func TestLedgerCloseFlushes(t *testing.T) {
	repo := newMemTxRepo()
	recent := newMemRecentIndex()
	ledger := NewTransactionLedger(repo, recent, LedgerConfig{
		FlushInterval: time.Hour, // 只靠Close触发重放
		RecentTTL:     time.Hour, RecentLimit: 100, DegradedThreshold: 64,
	}, testLogger())

	repo.setFail(true)
	require.NoError(t, ledger.Record(context.Background(), debitTx("agent-1", 100)))
	repo.setFail(false)

	require.NoError(t, ledger.Close())
	assert.Equal(t, 1, repo.count())
}

// TestLedgerRejectsInvalid 无代理ID的记录直接拒绝
func TestLedgerRejectsInvalid(t *testing.T) {
	repo := newMemTxRepo()
	ledger, _ := newTestLedger(t, repo, DefaultLedgerConfig())

	assert.Error(t, ledger.Record(context.Background(), nil))
	assert.Error(t, ledger.Record(context.Background(), &domain.Transaction{}))
	assert.Equal(t, 0, repo.count())
}

// TestLedgerRecentActivityCap 近期活动读取上限
func TestLedgerRecentActivityCap(t *testing.T) {
	repo := newMemTxRepo()
	ledger, _ := newTestLedger(t, repo, LedgerConfig{
		FlushInterval: 20 * time.Millisecond, RecentTTL: time.Hour, RecentLimit: 5, DegradedThreshold: 64,
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, ledger.Record(context.Background(), debitTx("agent-1", 100)))
	}

	got, err := ledger.RecentActivity(context.Background(), "agent-1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 5, "zero limit falls back to the configured cap")

	got, err = ledger.RecentActivity(context.Background(), "agent-1", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
