package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dkeye/voicerelay/internal/app"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPresence(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisPresence) {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := Connect(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return mr, p
}

type nopConn struct{ name string }

func (*nopConn) TrySend(core.Frame) error { return nil }
func (*nopConn) Close()                   {}

func TestRedisPresence_JoinLeave(t *testing.T) {
	mr, p := setupPresence(t, time.Hour)
	ctx := context.Background()

	p.Joined(ctx, "backend")
	p.Joined(ctx, "iphone-123")

	members, err := p.Members(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"backend", "iphone-123"}, members)
	assert.Equal(t, time.Hour, mr.TTL(DefaultKey))

	p.Left(ctx, "backend")
	members, err = p.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"iphone-123"}, members)
}

func TestRedisPresence_NoTTL(t *testing.T) {
	mr, p := setupPresence(t, 0)
	p.Joined(context.Background(), "backend")
	assert.Zero(t, mr.TTL(DefaultKey))
}

func TestRedisPresence_Reset(t *testing.T) {
	mr, p := setupPresence(t, 0)
	ctx := context.Background()
	p.Joined(ctx, "stale")

	require.NoError(t, p.Reset(ctx))
	assert.False(t, mr.Exists(DefaultKey))
}

func TestRedisPresence_FailuresAreSwallowed(t *testing.T) {
	mr, p := setupPresence(t, 0)
	mr.Close()

	assert.NotPanics(t, func() {
		p.Joined(context.Background(), "backend")
		p.Left(context.Background(), "backend")
	})
}

func TestRedisPresence_MirrorsDirectory(t *testing.T) {
	_, p := setupPresence(t, time.Minute)
	dir := app.NewDirectory(app.WithPresence(p))
	a, b := &nopConn{name: "a"}, &nopConn{name: "b"}

	require.NoError(t, dir.Join("a", a))
	require.NoError(t, dir.Join("b", b))
	dir.Leave("a", a)

	members, err := p.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}
