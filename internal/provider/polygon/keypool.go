package polygon

import (
	"fmt"
	"strings"
	"sync"
)

// KeySelectionStrategy defines how the next API key is chosen
type KeySelectionStrategy int

const (
	RoundRobin KeySelectionStrategy = iota // Round-robin between keys
	LeastUsed                              // Pick the key with the fewest requests
)

// ParseStrategy maps "round-robin" / "least-used" to a strategy. Unknown → RoundRobin.
func ParseStrategy(s string) KeySelectionStrategy {
	if strings.EqualFold(strings.TrimSpace(s), "least-used") {
		return LeastUsed
	}
	return RoundRobin
}

// String implements Stringer for KeySelectionStrategy
func (k KeySelectionStrategy) String() string {
	switch k {
	case RoundRobin:
		return "round-robin"
	case LeastUsed:
		return "least-used"
	default:
		return "unknown"
	}
}

// KeyPool hands out API keys across several accounts.
type KeyPool struct {
	mu       sync.Mutex
	keys     []string
	counts   []int64
	index    int
	strategy KeySelectionStrategy
}

// NewKeyPool creates a pool; empty keys are dropped.
func NewKeyPool(apiKeys []string, strategy KeySelectionStrategy) (*KeyPool, error) {
	var keys []string
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	return &KeyPool{
		keys:     keys,
		counts:   make([]int64, len(keys)),
		strategy: strategy,
	}, nil
}

// Next returns the key to use for the next request.
func (p *KeyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := 0
	switch p.strategy {
	case LeastUsed:
		for j := 1; j < len(p.keys); j++ {
			if p.counts[j] < p.counts[i] {
				i = j
			}
		}
	default:
		i = p.index
		p.index = (p.index + 1) % len(p.keys)
	}
	p.counts[i]++
	return p.keys[i]
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int { return len(p.keys) }

// Stats returns request counts per key prefix.
func (p *KeyPool) Stats() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := make(map[string]int64, len(p.keys))
	for i, k := range p.keys {
		stats[keyPrefix(k)] += p.counts[i]
	}
	return stats
}
