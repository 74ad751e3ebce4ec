package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fundamentalsDoc struct {
	FreeCashFlow float64 `json:"free_cash_flow"`
	TotalCash    float64 `json:"total_cash"`
}

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "fundamentals:AAPL", fundamentalsDoc{FreeCashFlow: 1e9, TotalCash: 5e9}, time.Minute))

	var got fundamentalsDoc
	require.NoError(t, mc.Get(ctx, "fundamentals:AAPL", &got))
	assert.Equal(t, 1e9, got.FreeCashFlow)
	assert.Equal(t, 5e9, got.TotalCash)

	var raw string
	require.NoError(t, mc.Get(ctx, "fundamentals:AAPL", &raw))
	assert.JSONEq(t, `{"free_cash_flow":1e9,"total_cash":5e9}`, raw)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var dest string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &dest), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &dest), ErrCacheMiss)

	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyRead(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)

	var v string
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, "1", v)
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "scan:run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "scan:run-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "scan:run-1"))
	ok, err = mc.TryLock(ctx, "scan:run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMGetTypedSkipsMissesAndBadJSON(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "f:AAPL", fundamentalsDoc{TotalCash: 1}, time.Minute))
	require.NoError(t, mc.Set(ctx, "f:BAD", "not json", time.Minute))

	got, err := MGetTyped[fundamentalsDoc](ctx, mc, "f:AAPL", "f:BAD", "f:MISSING")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got["f:AAPL"].TotalCash)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "fundamentals:AAPL", GenerateKey("fundamentals", "AAPL"))
	assert.Equal(t, "analysis:AAPL:2024-01-02", GenerateKeyWithParams("analysis", "AAPL", "2024-01-02"))
	assert.Equal(t, "report:AAPL:504:latest", GenerateKeyWithParams("report", "AAPL", 504, time.Time{}))
	assert.Equal(t, "report:AAPL:504:2024-03-01T23:59:59Z",
		GenerateKeyWithParams("report", "AAPL", 504, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, "basket:AAPL,MSFT", GenerateKeyWithParams("basket", []string{"AAPL", "MSFT"}))
}

func TestMemoryCacheUnbounded(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(0))
	defer mc.Close()
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	assert.Equal(t, 3, mc.Len())
}
