package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Manager handles refresh token creation, lookup and rotation
type Manager struct {
	repo        Repo
	tokenLength int
	expiry      time.Duration
	nowFunc     func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager. tokenLength is in bytes.
func NewManager(repo Repo, tokenLength int, expiry time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:        repo,
		tokenLength: tokenLength,
		expiry:      expiry,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.tokenLength < 16 {
		m.tokenLength = 32
	}
	return m
}

// Create issues a new refresh token for (userID, tenantID), replacing any existing one
func (m *Manager) Create(userID, tenantID, tenantSlug string) (string, *StoredRefreshToken, error) {
	if existing, err := m.repo.GetByUserTenant(userID, tenantID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.TokenHash); err != nil {
			return "", nil, fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	now := m.nowFunc()
	return m.issue(&StoredRefreshToken{
		UserID:     userID,
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.expiry),
	})
}

// Rotate replaces the token behind stored with a new one. The expiry is carried over.
func (m *Manager) Rotate(stored *StoredRefreshToken) (string, *StoredRefreshToken, error) {
	if err := m.repo.Delete(stored.TokenHash); err != nil {
		return "", nil, fmt.Errorf("failed to delete rotated refresh token: %w", err)
	}
	rotated := *stored
	rotated.IssuedAt = m.nowFunc()
	return m.issue(&rotated)
}

// Get retrieves the stored metadata for a raw refresh token
func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(HashToken(token))
}

// Save persists changes to stored metadata (e.g., the latest access jti)
func (m *Manager) Save(stored *StoredRefreshToken) error {
	return m.repo.Upsert(stored)
}

// Delete removes a raw refresh token from storage
func (m *Manager) Delete(token string) error {
	return m.repo.Delete(HashToken(token))
}

// DeleteStored removes a token when only its stored metadata is at hand
func (m *Manager) DeleteStored(stored *StoredRefreshToken) error {
	return m.repo.Delete(stored.TokenHash)
}

// IsExpired checks if a refresh token has passed its explicit expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().After(rt.ExpiresAt)
}

func (m *Manager) issue(stored *StoredRefreshToken) (string, *StoredRefreshToken, error) {
	tokenBytes := make([]byte, m.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	stored.TokenHash = HashToken(tokenStr)
	if err := m.repo.Upsert(stored); err != nil {
		return "", nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, stored, nil
}

// HashToken returns the at-rest digest of a raw refresh token
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
