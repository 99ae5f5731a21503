package assistant

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrCommandOnCooldown is matched by every *CooldownError.
var ErrCommandOnCooldown = errors.New("assistant: command on cooldown")

// CooldownError rejects a request made inside the cooldown window.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command on cooldown, retry in %.1fs", e.RetryAfter.Seconds())
}

func (e *CooldownError) Is(target error) bool { return target == ErrCommandOnCooldown }

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// cooldowns allows one request per key per window.
type cooldowns struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]*cooldownEntry
	now     func() time.Time
}

func newCooldowns(window time.Duration) *cooldowns {
	return &cooldowns{
		window:  window,
		entries: make(map[string]*cooldownEntry),
		now:     time.Now,
	}
}

// allow consumes the key's token or reports how long until it refills.
func (c *cooldowns) allow(key string) error {
	if c.window <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		e = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(c.window), 1)}
		c.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &CooldownError{RetryAfter: delay}
	}
	return nil
}

// prune drops limiters idle for longer than the window; they would allow the
// next request anyway.
func (c *cooldowns) prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.window)
	removed := 0
	for key, e := range c.entries {
		if e.lastSeen.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *cooldowns) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
