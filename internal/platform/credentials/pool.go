// Package credentials provides the rotating API key pool shared by provider clients.
package credentials

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptyPool is returned when a pool is constructed without any usable key.
var ErrEmptyPool = errors.New("credential pool requires at least one key")

// Pool is a round-robin set of API keys with a single rotation cursor.
// All methods are safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewPool builds a pool from the given keys. Blank entries are ignored.
func NewPool(keys []string) (*Pool, error) {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{keys: clean}, nil
}

// ParseKeys splits a comma separated key list such as the TIINGO_API_KEYS variable.
func ParseKeys(s string) []string {
	return strings.Split(s, ",")
}

// Size returns the number of keys in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Current returns the active key and its index.
func (p *Pool) Current() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.cursor], p.cursor
}

// Rotate advances the cursor past the key at index from and returns the new active key.
// If another caller already rotated away from that key the cursor is left alone,
// so concurrent callers throttled on the same key advance it only once.
func (p *Pool) Rotate(from int) (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor == from {
		p.cursor = (p.cursor + 1) % len(p.keys)
	}
	return p.keys[p.cursor], p.cursor
}
