package number

import "sync"

// HasMemoryProbe is injected by the caller (mirrors the "HasMemory" external
// probe from spec section 5 concurrency/resource model); it defaults to
// always-true so the cache grows freely unless wired to a real probe.
type HasMemoryProbe func() bool

// BinCache is the bounded binomial-coefficient cache from spec section 4.1.
// It is process-local and never a package global by itself — callers own an
// instance (e.g. one per Interpreter) and may share a HasMemoryProbe.
type BinCache struct {
	mu         sync.Mutex
	entries    map[binKey]Number
	numChecks  uint64
	hasMemory  bool
	probe      HasMemoryProbe
}

type binKey struct {
	n, k string
}

// NewBinCache creates a cache using the given memory probe. A nil probe
// behaves as always-has-memory.
func NewBinCache(probe HasMemoryProbe) *BinCache {
	if probe == nil {
		probe = func() bool { return true }
	}
	return &BinCache{
		entries:   make(map[binKey]Number),
		hasMemory: true,
		probe:     probe,
	}
}

func (c *BinCache) get(n, k Number) (Number, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[binKey{n.String(), k.String()}]
	return v, ok
}

func (c *BinCache) put(n, k, v Number) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numChecks++
	if c.numChecks%10000 == 0 {
		c.hasMemory = c.probe()
	}
	if c.hasMemory || len(c.entries) < 10000 {
		c.entries[binKey{n.String(), k.String()}] = v
	}
}

// defaultBinCache backs the package-level Bin convenience function used by
// code that does not need a dedicated cache (tests, one-off evaluations).
var defaultBinCache = NewBinCache(nil)

// Bin computes the binomial coefficient extended to negative arguments per
// the Kronecker / Daniel Loeb convention, using the default shared cache.
func Bin(n, k Number) Number { return BinWithCache(n, k, defaultBinCache) }

// BinWithCache computes bin(n,k) using the given cache, so callers (e.g. one
// Interpreter per mining worker) can keep process-local caches instead of
// sharing global state.
func BinWithCache(nn, kk Number, cache *BinCache) Number {
	if nn.inf || kk.inf {
		return Inf()
	}
	n, k := nn, kk
	sign := One

	if n.Less(Zero) {
		if !k.Less(Zero) {
			if k.Odd() {
				sign = MinusOne
			}
			n = Sub(k, Add(n, One))
		} else if !n.Less(k) {
			if Sub(n, k).Odd() {
				sign = MinusOne
			}
			nOld := n
			n = Sub(Zero, Add(k, One))
			k = Sub(nOld, k)
		} else {
			return Zero
		}
	}
	if k.Less(Zero) || n.Less(k) {
		return Zero
	}
	if n.Less(Mul(k, Two)) {
		k = Sub(n, k)
	}
	if k.NumUsedWords() > 1 {
		return Inf()
	}

	if v, ok := cache.get(n, k); ok {
		return v
	}

	r := One
	l := k.AsInt64()
	for i := int64(0); i < l; i++ {
		r = Mul(r, Sub(n, FromInt64(i)))
		r = Div(r, FromInt64(i+1))
		if r.IsInf() {
			break
		}
	}
	r = Mul(sign, r)
	cache.put(n, k, r)
	return r
}
