package refreshkvrepo

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
	"github.com/jrsteele09/go-tenant-session/kvstore"
	"github.com/jrsteele09/go-tenant-session/token/refresh"
	"github.com/pkg/errors"
)

var _ refresh.Repo = (*KVRefreshTokenRepo)(nil)

const (
	tokenKeyPrefix = "refresh_token:"
	ownerKeyPrefix = "refresh_owner:"
)

// KVRefreshTokenRepo keeps refresh token metadata in a key-value store, so a durable
// store (SQLite) lets issued refresh tokens survive restarts.
type KVRefreshTokenRepo struct {
	store kvstore.Store
	lock  sync.Mutex
}

func New(store kvstore.Store) *KVRefreshTokenRepo {
	return &KVRefreshTokenRepo{store: store}
}

func ownerKey(userID, tenantID string) string {
	return ownerKeyPrefix + userID + "|" + tenantID
}

func (r *KVRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	if refreshToken == nil || refreshToken.TokenHash == "" {
		return errors.New("[Upsert] token hash is required")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	owner := ownerKey(refreshToken.UserID, refreshToken.TenantID)
	previous, ok, err := r.store.Get(owner)
	if err != nil {
		return errors.Wrap(err, "[Upsert] read owner index")
	}
	if ok && string(previous) != refreshToken.TokenHash {
		if err := r.store.Remove(tokenKeyPrefix + string(previous)); err != nil {
			return errors.Wrap(err, "[Upsert] remove replaced token")
		}
	}

	payload, err := json.Marshal(refreshToken)
	if err != nil {
		return errors.Wrap(err, "[Upsert] encode")
	}
	if err := r.store.Set(tokenKeyPrefix+refreshToken.TokenHash, payload); err != nil {
		return errors.Wrap(err, "[Upsert] write token")
	}
	if err := r.store.Set(owner, []byte(refreshToken.TokenHash)); err != nil {
		return errors.Wrap(err, "[Upsert] write owner index")
	}
	return nil
}

func (r *KVRefreshTokenRepo) Delete(tokenHash string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rt, err := r.get(tokenHash)
	if err != nil {
		return err
	}

	owner := ownerKey(rt.UserID, rt.TenantID)
	if current, ok, err := r.store.Get(owner); err == nil && ok && string(current) == tokenHash {
		if err := r.store.Remove(owner); err != nil {
			return errors.Wrap(err, "[Delete] remove owner index")
		}
	}
	if err := r.store.Remove(tokenKeyPrefix + tokenHash); err != nil {
		return errors.Wrap(err, "[Delete] remove token")
	}
	return nil
}

func (r *KVRefreshTokenRepo) Get(tokenHash string) (*refresh.StoredRefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.get(tokenHash)
}

func (r *KVRefreshTokenRepo) GetByUserTenant(userID, tenantID string) (*refresh.StoredRefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	tokenHash, ok, err := r.store.Get(ownerKey(userID, tenantID))
	if err != nil {
		return nil, errors.Wrap(err, "[GetByUserTenant]")
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.get(string(tokenHash))
}

func (r *KVRefreshTokenRepo) ListByUser(userID string) ([]*refresh.StoredRefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	keys, err := r.store.Keys()
	if err != nil {
		return nil, errors.Wrap(err, "[ListByUser]")
	}

	prefix := ownerKey(userID, "")
	tokens := make([]*refresh.StoredRefreshToken, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		tokenHash, ok, err := r.store.Get(key)
		if err != nil || !ok {
			continue
		}
		if rt, err := r.get(string(tokenHash)); err == nil {
			tokens = append(tokens, rt)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.Before(tokens[j].IssuedAt)
	})
	return tokens, nil
}

func (r *KVRefreshTokenRepo) get(tokenHash string) (*refresh.StoredRefreshToken, error) {
	payload, ok, err := r.store.Get(tokenKeyPrefix + tokenHash)
	if err != nil {
		return nil, errors.Wrap(err, "read token")
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	var rt refresh.StoredRefreshToken
	if err := json.Unmarshal(payload, &rt); err != nil {
		return nil, errors.Wrap(err, "decode token")
	}
	return &rt, nil
}
