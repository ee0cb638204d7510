// Package quotes resolves current market quotes. Caching is explicit and
// caller-injected rather than hidden module state, so tests and callers
// control staleness.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/yhchan/stockledger/internal/domain"
)

// Provider returns the latest quote for a symbol.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

// Cache is the injected quote cache abstraction.
type Cache interface {
	Get(symbol string) (domain.Quote, bool)
	Set(symbol string, quote domain.Quote)
	Expire(symbol string)
}

// TTLCache is an in-memory Cache whose entries expire after a fixed
// duration.
type TTLCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]ttlEntry
}

type ttlEntry struct {
	quote   domain.Quote
	fetched time.Time
}

// NewTTLCache creates a cache with the given entry lifetime.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]ttlEntry),
	}
}

func (c *TTLCache) Get(symbol string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok || time.Since(e.fetched) >= c.ttl {
		return domain.Quote{}, false
	}
	return e.quote, true
}

func (c *TTLCache) Set(symbol string, quote domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = ttlEntry{quote: quote, fetched: time.Now()}
}

func (c *TTLCache) Expire(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

// CachedProvider wraps a Provider with a Cache.
type CachedProvider struct {
	provider Provider
	cache    Cache
}

// NewCachedProvider creates a caching wrapper around a provider.
func NewCachedProvider(provider Provider, cache Cache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache}
}

func (p *CachedProvider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if q, ok := p.cache.Get(symbol); ok {
		return q, nil
	}
	q, err := p.provider.GetQuote(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	p.cache.Set(symbol, q)
	return q, nil
}
