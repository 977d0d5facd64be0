package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNeedsRollover 日切以代理本地时区的日界为准
func TestNeedsRollover(t *testing.T) {
	// UTC 2024-06-01 23:30，东京已是 2024-06-02
	now := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)

	utcBudget := &AgentBudget{Timezone: "UTC", LastResetDate: "2024-06-01"}
	assert.False(t, utcBudget.NeedsRollover(now))

	tokyoBudget := &AgentBudget{Timezone: "Asia/Tokyo", LastResetDate: "2024-06-01"}
	assert.True(t, tokyoBudget.NeedsRollover(now))

	tokyoBudget.SpentToday = 4000
	tokyoBudget.Rollover(now)
	assert.Equal(t, int64(0), tokyoBudget.SpentToday)
	assert.Equal(t, "2024-06-02", tokyoBudget.LastResetDate)
	assert.False(t, tokyoBudget.NeedsRollover(now))
}

// TestLocationFallback 非法或缺失时区退回UTC
func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, (&AgentBudget{}).Location())
	assert.Equal(t, time.UTC, (&AgentBudget{Timezone: "Mars/Olympus"}).Location())

	loc := (&AgentBudget{Timezone: "America/New_York"}).Location()
	assert.Equal(t, "America/New_York", loc.String())
}

// TestClone 副本独立于原件
func TestClone(t *testing.T) {
	b := &AgentBudget{AgentID: "a", CurrentBalance: 100, Version: 3}
	c := b.Clone()
	c.CurrentBalance = 50
	assert.Equal(t, int64(100), b.CurrentBalance)
	assert.Equal(t, int64(3), c.Version)
}
