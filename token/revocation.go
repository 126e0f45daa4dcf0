package token

import (
	"sort"
	"sync"
	"time"
)

// RevokedToken is an access token revoked before its natural expiry.
type RevokedToken struct {
	JTI       string
	TenantID  string
	ExpiresAt time.Time
}

// RevokedTokenCache tracks access tokens (by jti) revoked before their natural expiry,
// indexed by the tenant they were minted for.
type RevokedTokenCache interface {
	Add(jti, tenantID string, exp time.Time) error
	IsRevoked(jti string) bool
	ListByTenant(tenantID string) []RevokedToken
	Cleanup(now time.Time) // Remove entries whose token would have expired anyway
}

// InMemoryRevokedTokenCache is a simple in-memory implementation
type InMemoryRevokedTokenCache struct {
	revoked map[string]RevokedToken
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache() RevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]RevokedToken),
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti, tenantID string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = RevokedToken{JTI: jti, TenantID: tenantID, ExpiresAt: exp}
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// ListByTenant returns the tenant's revoked tokens, soonest expiry first.
func (c *InMemoryRevokedTokenCache) ListByTenant(tenantID string) []RevokedToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tokens := make([]RevokedToken, 0)
	for _, rt := range c.revoked {
		if rt.TenantID == tenantID {
			tokens = append(tokens, rt)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ExpiresAt.Before(tokens[j].ExpiresAt)
	})
	return tokens
}

func (c *InMemoryRevokedTokenCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, rt := range c.revoked {
		if now.After(rt.ExpiresAt) {
			delete(c.revoked, jti)
		}
	}
}
