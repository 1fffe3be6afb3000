// Package retry runs operations with a bounded attempt budget and backoff
// between attempts. Retries stop early on non-transient errors and on context
// cancellation.
package retry
