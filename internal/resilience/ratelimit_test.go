package resilience

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg RateLimiterConfig) (*RateLimiter, *fakeClock) {
	rl := NewRateLimiter(cfg)
	clock := newFakeClock()
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{MaxRequests: 2, Window: 60 * time.Second})

	assert.True(t, rl.Check("alice"))
	clock.Advance(time.Second)
	assert.True(t, rl.Check("alice"))
	clock.Advance(time.Second)
	assert.False(t, rl.Check("alice"), "third request inside the window is denied")
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{MaxRequests: 2, Window: 60 * time.Second})

	assert.True(t, rl.Check("alice")) // t=0
	clock.Advance(time.Second)
	assert.True(t, rl.Check("alice")) // t=1
	clock.Advance(time.Second)
	assert.False(t, rl.Check("alice")) // t=2: t=0 and t=1 fill the window

	// t=60.5: the t=0 timestamp has slid out; t=1 and t=60.5 remain.
	clock.Advance(58500 * time.Millisecond)
	assert.True(t, rl.Check("alice"))

	// t=60.9: t=1 is still inside the window.
	clock.Advance(400 * time.Millisecond)
	assert.False(t, rl.Check("alice"))

	// t=61: a timestamp exactly one window old no longer counts.
	clock.Advance(100 * time.Millisecond)
	assert.True(t, rl.Check("alice"))
}

func TestRateLimiter_DeniedRequestNotCounted(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{MaxRequests: 1, Window: 10 * time.Second})

	assert.True(t, rl.Check("alice"))
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		assert.False(t, rl.Check("alice"))
	}

	// Denials above did not extend the quota: once the original timestamp
	// expires the key is allowed again.
	clock.Advance(5 * time.Second)
	assert.True(t, rl.Check("alice"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{MaxRequests: 1, Window: 60 * time.Second})

	assert.True(t, rl.Check("alice"))
	assert.False(t, rl.Check("alice"))
	assert.True(t, rl.Check("bob"), "exhausting alice must not affect bob")
	assert.Equal(t, 2, rl.ActiveKeys())
}

func TestRateLimiter_ConcurrentChecksRespectQuota(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{MaxRequests: 10, Window: time.Minute})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if rl.Check("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			rl.Check(fmt.Sprintf("other-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, allowed, "exactly MaxRequests checks may pass")
}
