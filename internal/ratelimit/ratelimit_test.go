package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/logger"
)

func TestBudgetExhaustsAndResets(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	b := newBudget("ai", 2, 24*time.Hour, func() time.Time { return now }, logger.Nop())

	require.NoError(t, b.Use())
	require.NoError(t, b.Use())
	require.False(t, b.CanUse())
	require.ErrorIs(t, b.Use(), ErrBudgetExhausted)
	require.Equal(t, 1, b.GetStats()["denied"])

	now = now.Add(25 * time.Hour)
	require.True(t, b.CanUse())
	require.NoError(t, b.Use())
	require.Equal(t, 1, b.GetStats()["used"])
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget("ai", 0, logger.Nop())
	for i := 0; i < 1000; i++ {
		require.NoError(t, b.Use())
	}
	require.True(t, b.CanUse())
}
