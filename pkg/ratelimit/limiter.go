package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a slot if so
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Pacer enforces a minimum delay between consecutive requests. It is safe
// for concurrent use; callers are served in the order they reserve a slot.
type Pacer struct {
	interval time.Duration
	next     time.Time
	mu       sync.Mutex
	now      func() time.Time
}

// NewPacer creates a pacer that spaces requests at least interval apart
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, now: time.Now}
}

// Allow claims the next slot only if it is already due
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Before(p.next) {
		return false
	}
	p.next = now.Add(p.interval)
	return true
}

// Wait reserves the next slot and sleeps until it arrives. A cancelled wait
// still holds its reservation, which only delays later callers by one interval.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears any pending reservation
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.next = time.Time{}
	p.mu.Unlock()
}

// TokenBucket implements a token bucket rate limiter that refills fully once
// per refill period.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		untilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()
		if untilRefill <= 0 {
			untilRefill = 10 * time.Millisecond
		}

		timer := time.NewTimer(untilRefill)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// Chain applies several limiters in order; a request proceeds once every one allows it.
type Chain []Limiter

// Allow reports whether all limiters allow the request. Slots already taken
// from earlier limiters are not returned when a later one refuses.
func (c Chain) Allow() bool {
	for _, l := range c {
		if !l.Allow() {
			return false
		}
	}
	return true
}

// Wait waits on each limiter in turn
func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets every limiter in the chain
func (c Chain) Reset() {
	for _, l := range c {
		l.Reset()
	}
}

// New builds the limiter used for API requests: a budget of requestsPerMinute
// plus a minimum spacing between calls.
func New(minInterval time.Duration, requestsPerMinute int) Limiter {
	var chain Chain
	if requestsPerMinute > 0 {
		chain = append(chain, NewTokenBucket(requestsPerMinute, time.Minute))
	}
	chain = append(chain, NewPacer(minInterval))
	return chain
}
