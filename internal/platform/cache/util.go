package cache

import "time"

// BoundedTTL returns ttl, shortened so the entry expires no later than next.
// A zero or past next leaves ttl unchanged.
func BoundedTTL(ttl time.Duration, now, next time.Time) time.Duration {
	if next.IsZero() || !next.After(now) {
		return ttl
	}
	if until := next.Sub(now); until < ttl {
		return until
	}
	return ttl
}
