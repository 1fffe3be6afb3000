// Package ratelimit paces requests to the catalog API.
//
// Pacer enforces a minimum delay between requests shared across goroutines,
// TokenBucket caps the number of requests per refill period, and Chain
// combines them. All limiters implement Limiter:
//
//	limiter := ratelimit.New(500*time.Millisecond, 60)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled while waiting
//	}
package ratelimit
