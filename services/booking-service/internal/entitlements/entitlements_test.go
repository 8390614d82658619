package entitlements

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/expertmarket/bookingengine/libs/grpcx"
	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type planChecker struct {
	mu         sync.Mutex
	allowed    map[string]bool
	calls      int
	err        error
	requestIDs []string

	// hang makes checks wait for the caller to give up.
	hang bool
}

func (p *planChecker) CanUse(ctx context.Context, providerID string, feature string) (bool, error) {
	if p.hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.requestIDs = append(p.requestIDs, httpx.RequestIDFromContext(ctx))
	if p.err != nil {
		return false, p.err
	}
	return p.allowed[providerID+"/"+feature], nil
}

func startServer(t *testing.T, impl Checker) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpcx.NewServer()
	RegisterServer(srv, impl)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestClientCanUse(t *testing.T) {
	plans := &planChecker{allowed: map[string]bool{"pro-1/booking": true}}
	addr := startServer(t, plans)

	client, err := NewClient(addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	ok, err := client.CanUse(ctx, "pro-1", "booking")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CanUse(ctx, "free-1", "booking")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.CanUse(httpx.ContextWithRequestID(ctx, "req-42"), "pro-1", "booking")
	require.NoError(t, err)

	require.Len(t, plans.requestIDs, 3)
	assert.NotEmpty(t, plans.requestIDs[0], "server mints an id when the caller has none")
	assert.Equal(t, "req-42", plans.requestIDs[2])
}

func TestClientAppliesCallTimeout(t *testing.T) {
	addr := startServer(t, &planChecker{hang: true})
	client, err := NewClient(addr, 50*time.Millisecond)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CanUse(context.Background(), "p", "booking")
	require.Error(t, err)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(errors.Unwrap(err)))
}

func TestClientErrors(t *testing.T) {
	addr := startServer(t, &planChecker{err: errors.New("billing db down")})
	client, err := NewClient(addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CanUse(context.Background(), "p", "booking")
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))

	_, err = client.CanUse(context.Background(), "", "booking")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return redis.NewStringResult("", m.readErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestCacheMemoisesDecisions(t *testing.T) {
	next := &planChecker{allowed: map[string]bool{"p1/booking": true}}
	rdb := newMemRedis()
	c := NewCache(next, rdb, 5*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.CanUse(ctx, "p1", "booking")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = c.CanUse(ctx, "p2", "booking")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 5*time.Minute, rdb.ttls["entitlements:p1:booking"])

	require.NoError(t, c.Invalidate(ctx, "p1", "booking"))
	_, err := c.CanUse(ctx, "p1", "booking")
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	next := &planChecker{err: errors.New("timeout")}
	rdb := newMemRedis()
	c := NewCache(next, rdb, time.Minute, nil)

	_, err := c.CanUse(context.Background(), "p1", "booking")
	require.Error(t, err)
	assert.Empty(t, rdb.data)
}

func TestCacheFallsThroughOnRedisFailure(t *testing.T) {
	next := &planChecker{allowed: map[string]bool{"p1/booking": true}}
	rdb := newMemRedis()
	rdb.readErr = errors.New("connection refused")
	c := NewCache(next, rdb, time.Minute, nil)

	ok, err := c.CanUse(context.Background(), "p1", "booking")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, next.calls)
}

func TestStatic(t *testing.T) {
	ok, err := Static{Allowed: true}.CanUse(context.Background(), "any", "booking")
	require.NoError(t, err)
	assert.True(t, ok)
}
