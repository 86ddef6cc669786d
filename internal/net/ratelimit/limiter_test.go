package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenThrottle(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.True(t, l.Allow("api.example.com"))
	assert.True(t, l.Allow("api.example.com"))
	assert.False(t, l.Allow("api.example.com"), "burst exhausted")
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)

	assert.True(t, l.Allow("a.example.com"))
	assert.True(t, l.Allow("b.example.com"), "second host has its own bucket")
	assert.False(t, l.Allow("a.example.com"))
}

func TestLimiter_SetLimitOverridesHostRate(t *testing.T) {
	l := NewLimiter(1, 1)
	l.SetLimit("fast.example.com", 100, 3)

	assert.True(t, l.Allow("fast.example.com"))
	assert.True(t, l.Allow("fast.example.com"))
	assert.True(t, l.Allow("fast.example.com"), "override burst applies")

	assert.True(t, l.Allow("default.example.com"))
	assert.False(t, l.Allow("default.example.com"), "other hosts keep the default rate")
}

func TestLimiter_TokensTrackBurstConsumption(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.InDelta(t, 2, l.Tokens("api.example.com"), 0.1, "fresh bucket holds the full burst")

	require.True(t, l.Allow("api.example.com"))
	require.True(t, l.Allow("api.example.com"))
	assert.InDelta(t, 0, l.Tokens("api.example.com"), 0.1, "burst spent")
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	require.True(t, l.Allow("slow.example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "slow.example.com")
	assert.Error(t, err)
}
