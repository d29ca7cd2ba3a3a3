package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

type countingLimiter struct {
	calls int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&l.calls, 1)
	return ctx.Err()
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"results":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	client := New(5*time.Second, logger.NewNop()).
		WithHeader("Authorization", "Bearer token").
		WithLimiter(limiter)

	tests := []struct {
		name   string
		path   string
		status int
		ok     bool
	}{
		{"success", "/ok", http.StatusOK, true},
		{"not found", "/missing", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Get(context.Background(), server.URL+tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.ok, resp.OK())
		})
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&limiter.calls))
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(50*time.Millisecond, logger.NewNop())
	_, err := client.Get(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestClient_ErrorRedactsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := New(50*time.Millisecond, logger.NewNop())
	_, err := client.Get(context.Background(), server.URL+"/v2/aggs?apiKey=pk-secret&ticker=SPY")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "pk-secret")
	assert.Contains(t, err.Error(), "/v2/aggs")
}

func TestClient_LimiterCancelled(t *testing.T) {
	client := New(time.Second, logger.NewNop()).WithLimiter(NewTokenBucket(1, 1))

	// drain the single token
	require.NoError(t, client.limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "http://127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait failed")
}

func TestNewTokenBucket(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		burst     int
		wantBurst int
		wantEvery time.Duration
	}{
		{"polygon free tier", 5, 1, 1, 12 * time.Second},
		{"fast feed", 120, 2, 2, 500 * time.Millisecond},
		{"zero burst clamps to one", 60, 0, 1, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewTokenBucket(tt.perMinute, tt.burst)
			assert.Equal(t, tt.wantBurst, l.Burst())
			every := time.Duration(float64(time.Second) / float64(l.Limit()))
			assert.InDelta(t, float64(tt.wantEvery), float64(every), float64(time.Millisecond))
		})
	}
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"1"}`))
	}))
	defer server.Close()

	client := New(time.Second, logger.NewNop())
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]int{"qty": 1})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"order_id":"1"}`, string(resp.Body))
}
