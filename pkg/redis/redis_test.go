package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestRateLimiter_Disabled(t *testing.T) {
	client, _ := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	limiter := NewRateLimiter(client, "test")

	cfg := PerMinute("polygon", 5)
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 5, remaining)

	// bound limiter passes straight through
	assert.NoError(t, limiter.Bind(cfg).Wait(context.Background()))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(NewFromRedis(nil), "test")

	_, found, err := cache.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.False(t, found)

	calls := 0
	data, err := cache.GetOrFetch(context.Background(), "key", TTLShort, func() ([]byte, error) {
		calls++
		return []byte(`{"ok":true}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestRateLimiter_UniqueMembers(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	var members []string
	capture := func(expected, actual []interface{}) error {
		member, ok := actual[len(actual)-1].(string)
		if !ok {
			return fmt.Errorf("member is %T", actual[len(actual)-1])
		}
		members = append(members, member)
		return nil
	}
	for i := 0; i < 2; i++ {
		mock.CustomMatch(capture).
			ExpectEvalSha(slidingWindowScript.Hash(), []string{"test:ratelimit:polygon"}, "now", "start", 5, 60000, "member").
			SetVal([]interface{}{int64(1), int64(3 - i)})
	}

	limiter := NewRateLimiter(NewFromRedis(rdb), "test")
	cfg := PerMinute("polygon", 5)
	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(context.Background(), cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	require.Len(t, members, 2)
	assert.NotEqual(t, members[0], members[1])
	for _, m := range members {
		ts, id, found := strings.Cut(m, "-")
		assert.True(t, found, m)
		assert.NotEmpty(t, ts)
		assert.NotEmpty(t, id)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetOrFetchValid(t *testing.T) {
	key := QueryKey("unusualwhales", "/api/stock/AAPL/iv-rank", "")
	fullKey := "so7ba:cache:" + key
	valid := func(b []byte) bool { return strings.HasPrefix(string(b), "{") }

	t.Run("rejected body returned but not stored", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()
		mock.ExpectGet(fullKey).RedisNil()
		mock.ExpectSet(fullKey, []byte("<html>maintenance</html>"), TTLDaily).SetVal("OK")

		cache := NewCache(NewFromRedis(rdb), "so7ba")
		data, err := cache.GetOrFetchValid(context.Background(), key, TTLDaily, func() ([]byte, error) {
			return []byte("<html>maintenance</html>"), nil
		}, valid)
		require.NoError(t, err)
		assert.Equal(t, "<html>maintenance</html>", string(data))

		// SET never issued
		assert.Error(t, mock.ExpectationsWereMet())
		mock.ClearExpect()
	})

	t.Run("accepted body stored", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()
		mock.ExpectGet(fullKey).RedisNil()
		mock.ExpectSet(fullKey, []byte(`{"data":[]}`), TTLDaily).SetVal("OK")

		cache := NewCache(NewFromRedis(rdb), "so7ba")
		_, err := cache.GetOrFetchValid(context.Background(), key, TTLDaily, func() ([]byte, error) {
			return []byte(`{"data":[]}`), nil
		}, valid)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCache_GetOrFetch(t *testing.T) {
	key := QueryKey("unusualwhales", "/api/stock/SPY/spot-exposures/strike", "")
	fullKey := "so7ba:cache:" + key
	body := []byte(`{"data":[{"strike":"500","call_gamma":"1.5"}]}`)

	tests := []struct {
		name      string
		setup     func(mock redismock.ClientMock)
		fetchErr  error
		wantCalls int
		wantErr   bool
	}{
		{
			name: "cache hit skips upstream",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(fullKey).SetVal(string(body))
			},
			wantCalls: 0,
		},
		{
			name: "cache miss fetches and stores",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(fullKey).RedisNil()
				mock.ExpectSet(fullKey, body, TTLLong).SetVal("OK")
			},
			wantCalls: 1,
		},
		{
			name: "redis error falls through to upstream",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(fullKey).SetErr(errors.New("connection refused"))
				mock.ExpectSet(fullKey, body, TTLLong).SetErr(errors.New("connection refused"))
			},
			wantCalls: 1,
		},
		{
			name: "upstream error is returned and nothing stored",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(fullKey).RedisNil()
			},
			fetchErr:  errors.New("upstream down"),
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb, mock := redismock.NewClientMock()
			defer func() { _ = rdb.Close() }()
			tt.setup(mock)

			cache := NewCache(NewFromRedis(rdb), "so7ba")
			calls := 0
			data, err := cache.GetOrFetch(context.Background(), key, TTLLong, func() ([]byte, error) {
				calls++
				if tt.fetchErr != nil {
					return nil, tt.fetchErr
				}
				return body, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, body, data)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueryKey(t *testing.T) {
	assert.Equal(t,
		"query:polygon:/v2/reference/news?limit=5&ticker=NVDA",
		QueryKey("polygon", "/v2/reference/news", "limit=5&ticker=NVDA"))
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute("polygon", 5)
	assert.Equal(t, "polygon", cfg.Key)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, time.Minute, cfg.Window)
}
