package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinRateLimiter(t *testing.T) {
	rl := NewJoinRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per address")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestJoinRateLimiter_ForgetsIdleAddresses(t *testing.T) {
	rl := NewJoinRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, rl.Allow(addr))
	}
	assert.Len(t, rl.history, 3)

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.Len(t, rl.history, 3, "nothing has aged out yet")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.4"))
	assert.Len(t, rl.history, 1)
	assert.Contains(t, rl.history, "10.0.0.4")
}

func TestJoinRateLimiter_Disabled(t *testing.T) {
	rl := NewJoinRateLimiter(0, time.Minute)
	assert.Nil(t, rl)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("x"))
	}
}
