package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dst any) error {
	args := m.Called(ctx, key, dst)
	return args.Error(0)
}

func (m *MockCache) Set(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type result struct {
	P float64 `json:"p"`
}

func TestKey(t *testing.T) {
	k1 := Key("friedman", "abc", 10000, uint64(2025))
	k2 := Key("friedman", "abc", 10000, uint64(2026))

	assert.True(t, strings.HasPrefix(k1, "surveyeval:friedman:abc:"))
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, Key("friedman", "abc", 10000, uint64(2025)))
}

func TestFetchMissComputesAndStores(t *testing.T) {
	ctx := context.Background()
	c := new(MockCache)
	c.On("Get", ctx, "k", mock.Anything).Return(ErrCacheMiss)
	c.On("Set", ctx, "k", result{P: 0.01}).Return(nil)

	calls := 0
	v, err := Fetch(ctx, c, nil, "k", func() (result, error) {
		calls++
		return result{P: 0.01}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.01, v.P)
	assert.Equal(t, 1, calls)
	c.AssertExpectations(t)
}

func TestFetchHitSkipsCompute(t *testing.T) {
	ctx := context.Background()
	c := new(MockCache)
	c.On("Get", ctx, "k", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(2).(*result).P = 0.5
	}).Return(nil)

	v, err := Fetch(ctx, c, nil, "k", func() (result, error) {
		t.Fatal("compute called on cache hit")
		return result{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.P)
	c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchComputeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := new(MockCache)
	c.On("Get", ctx, "k", mock.Anything).Return(ErrCacheMiss)

	boom := errors.New("boom")
	_, err := Fetch(ctx, c, nil, "k", func() (result, error) { return result{}, boom })
	assert.ErrorIs(t, err, boom)
	c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedisUnavailableDegrades(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	rc := NewRedisCache(client, nil, time.Minute)
	ctx := context.Background()

	assert.Error(t, rc.Ping(ctx))

	var dst result
	err := rc.Get(ctx, "missing", &dst)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))

	v, err := Fetch(ctx, rc, nil, "k", func() (result, error) { return result{P: 0.2}, nil })
	require.NoError(t, err)
	assert.Equal(t, 0.2, v.P)

	// The in-process layer still serves the value.
	require.NoError(t, rc.Get(ctx, "k", &dst))
	assert.Equal(t, 0.2, dst.P)
}

func TestNopCache(t *testing.T) {
	var c NopCache
	var dst result
	assert.ErrorIs(t, c.Get(context.Background(), "k", &dst), ErrCacheMiss)
	assert.NoError(t, c.Set(context.Background(), "k", dst))
}
