package docstore

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenCache is an explicit short-lived credential cache for the document
// store. It wraps a service-account token source and re-mints only when the
// cached token has expired or outlived the configured TTL, so the cache's
// lifetime is owned by whoever constructed the store adapter.
type TokenCache struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	ttl       time.Duration
	token     *oauth2.Token
	fetchedAt time.Time
	now       func() time.Time
}

// NewTokenCache wraps the base token source with TTL-bounded caching.
func NewTokenCache(base oauth2.TokenSource, ttl time.Duration) (*TokenCache, error) {
	if base == nil {
		return nil, errors.New("base token source is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenCache{base: base, ttl: ttl, now: time.Now}, nil
}

// Token implements oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.token.Valid() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.token, nil
	}

	token, err := c.base.Token()
	if err != nil {
		return nil, err
	}
	c.token = token
	c.fetchedAt = c.now()
	return token, nil
}
