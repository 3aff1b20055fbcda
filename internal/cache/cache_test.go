package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheExpiry(t *testing.T) {
	c := New[string]()
	defer c.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "https://cdn.example.com/a.jpg", time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "https://cdn.example.com/a.jpg", got)

	now = now.Add(2 * time.Minute)
	got, ok = c.Get("k")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, 0, c.Len())
}

func TestCacheSweep(t *testing.T) {
	c := New[int]()
	defer c.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("old", 1, time.Second)
	c.Set("fresh", 2, time.Hour)

	now = now.Add(time.Minute)
	c.sweep()
	require.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	require.Equal(t, Key("unsplash", "cats"), Key("unsplash", "cats"))
	require.NotEqual(t, Key("unsplash", "cats"), Key("unsplashc", "ats"))
	require.Len(t, Key("x"), 64)
}

func TestCloseTwice(t *testing.T) {
	c := New[string]()
	c.Close()
	c.Close()
}
