package refreshrepofake

import (
	"errors"
	"sort"
	"sync"

	"github.com/jrsteele09/go-tenant-session/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken
	owners map[string]string // userID|tenantID to token hash
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
		owners: make(map[string]string),
	}
}

func ownerKey(userID, tenantID string) string {
	return userID + "|" + tenantID
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	key := ownerKey(refreshToken.UserID, refreshToken.TenantID)
	if previous, ok := tr.owners[key]; ok && previous != refreshToken.TokenHash {
		delete(tr.tokens, previous)
	}
	tr.tokens[refreshToken.TokenHash] = refreshToken
	tr.owners[key] = refreshToken.TokenHash
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(tokenHash string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[tokenHash]
	if !ok {
		return errors.New("not found")
	}
	key := ownerKey(rt.UserID, rt.TenantID)
	if tr.owners[key] == tokenHash {
		delete(tr.owners, key)
	}
	delete(tr.tokens, tokenHash)
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(tokenHash string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[tokenHash]
	if !ok {
		return nil, errors.New("not found")
	}
	return rt, nil
}

func (tr *FakeRefreshTokenRepo) GetByUserTenant(userID, tenantID string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	tokenHash, ok := tr.owners[ownerKey(userID, tenantID)]
	if !ok {
		return nil, errors.New("not found")
	}
	return tr.tokens[tokenHash], nil
}

func (tr *FakeRefreshTokenRepo) ListByUser(userID string) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0)
	for _, v := range tr.tokens {
		if v.UserID == userID {
			tokens = append(tokens, v)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.Before(tokens[j].IssuedAt)
	})
	return tokens, nil
}
