package tenantsession_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-tenant-session/internal/config"
	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
	"github.com/jrsteele09/go-tenant-session/kvstore"
	"github.com/jrsteele09/go-tenant-session/kvstore/memstore"
	"github.com/jrsteele09/go-tenant-session/kvstore/sqlitestore"
	"github.com/jrsteele09/go-tenant-session/sessionapi"
	"github.com/jrsteele09/go-tenant-session/tenantsession"
	"github.com/stretchr/testify/require"
)

const (
	testUserID    = "u1"
	testUserEmail = "a@x.com"
	refreshExpiry = 30 * 24 * time.Hour
)

// fakeBackend mints predictable sessions and lets tests force failures.
type fakeBackend struct {
	lock       sync.Mutex
	now        func() time.Time
	createErr  map[string]error // tenantSlug -> error
	refreshErr error
	rotate     bool
	creates    int
	refreshes  int
	revoked    []string
	counter    int

	noTenantID bool // echo an empty tenant ID when the caller sends none

	// When set, RefreshToken signals refreshStarted and blocks until refreshRelease closes.
	refreshStarted chan struct{}
	refreshRelease chan struct{}
}

func newFakeBackend(now func() time.Time) *fakeBackend {
	return &fakeBackend{now: now, createErr: make(map[string]error)}
}

func (fb *fakeBackend) CreateSession(_ context.Context, req sessionapi.CreateSessionRequest) (*tenantsession.SessionRecord, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.creates++
	if err := fb.createErr[req.TenantSlug]; err != nil {
		return nil, err
	}
	fb.counter++
	tenantID := req.TenantID
	if tenantID == "" && !fb.noTenantID {
		tenantID = "tid-" + req.TenantSlug
	}
	return &tenantsession.SessionRecord{
		TenantID:     tenantID,
		TenantSlug:   req.TenantSlug,
		UserID:       req.UserID,
		UserEmail:    req.UserEmail,
		RefreshToken: fmt.Sprintf("refresh-%d", fb.counter),
		AccessToken:  fmt.Sprintf("access-%d", fb.counter),
		ExpiresAt:    fb.now().Add(refreshExpiry).UnixMilli(),
		LastAccess:   fb.now().UnixMilli(),
	}, nil
}

func (fb *fakeBackend) RefreshToken(_ context.Context, req sessionapi.RefreshRequest) (*tenantsession.SessionRecord, error) {
	if fb.refreshRelease != nil {
		fb.refreshStarted <- struct{}{}
		<-fb.refreshRelease
	}
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.refreshes++
	if fb.refreshErr != nil {
		return nil, fb.refreshErr
	}
	fb.counter++
	rec := &tenantsession.SessionRecord{
		TenantSlug:   req.TenantSlug,
		RefreshToken: req.RefreshToken,
		AccessToken:  fmt.Sprintf("access-%d", fb.counter),
	}
	if fb.rotate {
		rec.RefreshToken = fmt.Sprintf("rotated-%d", fb.counter)
		rec.ExpiresAt = fb.now().Add(refreshExpiry).UnixMilli()
	}
	return rec, nil
}

func (fb *fakeBackend) Revoke(_ context.Context, refreshToken string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.revoked = append(fb.revoked, refreshToken)
	return nil
}

// testClock is a manually advanced clock shared by the store and the fake backend.
type testClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	clock     *testClock
	longLived kvstore.Store
	backend   *fakeBackend
	store     *tenantsession.Store
}

func setupTestFixture(t *testing.T, options ...tenantsession.StoreOption) *testFixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	f := &testFixture{
		clock:     clock,
		longLived: memstore.New(),
		backend:   newFakeBackend(clock.Now),
	}
	f.store = f.newTab(t, options...)
	return f
}

// newTab opens another Store over the same long-lived store, as a second browser tab would.
func (f *testFixture) newTab(t *testing.T, options ...tenantsession.StoreOption) *tenantsession.Store {
	t.Helper()
	opts := append([]tenantsession.StoreOption{tenantsession.WithNowFunc(f.clock.Now)}, options...)
	store, err := tenantsession.New(f.longLived, memstore.New(), f.backend, opts...)
	require.NoError(t, err)
	return store
}

func (f *testFixture) createSession(t *testing.T, tenantSlug string) *tenantsession.SessionRecord {
	t.Helper()
	rec, err := f.store.CreateSession(context.Background(), "", tenantSlug, testUserID, testUserEmail)
	require.NoError(t, err)
	return rec
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := tenantsession.New(nil, memstore.New(), newFakeBackend(time.Now))
	require.Error(t, err)
	_, err = tenantsession.New(memstore.New(), nil, newFakeBackend(time.Now))
	require.Error(t, err)
	_, err = tenantsession.New(memstore.New(), memstore.New(), nil)
	require.Error(t, err)
}

func TestCreateSession_ThenResolve(t *testing.T) {
	f := setupTestFixture(t)

	created, err := f.store.CreateSession(context.Background(), "tid-acme", "acme", testUserID, testUserEmail)
	require.NoError(t, err)

	resolved := f.store.Resolve(testUserID, testUserEmail, "acme")
	require.NotNil(t, resolved)
	require.Equal(t, created.TenantID, resolved.TenantID)
	require.Equal(t, created.TenantSlug, resolved.TenantSlug)
	require.Equal(t, created.UserID, resolved.UserID)
	require.Equal(t, f.clock.Now().UnixMilli(), resolved.LastAccess)
}

func TestResolve_InvalidInput(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")

	require.Nil(t, f.store.Resolve("", testUserEmail, "acme"))
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, ""))
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "unknown"))
	require.Nil(t, f.store.Resolve("someone-else", testUserEmail, "acme"))
}

func TestCreateSession_Uniqueness(t *testing.T) {
	f := setupTestFixture(t)

	first := f.createSession(t, "acme")
	second := f.createSession(t, "acme")
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	records := f.store.Records(testUserID)
	require.Len(t, records, 1)
	require.Equal(t, second.RefreshToken, records[0].RefreshToken)

	t.Run("same tenant id under a new slug collapses", func(t *testing.T) {
		_, err := f.store.CreateSession(context.Background(), first.TenantID, "acme-renamed", testUserID, testUserEmail)
		require.NoError(t, err)

		records := f.store.Records(testUserID)
		require.Len(t, records, 1)
		require.Equal(t, "acme-renamed", records[0].TenantSlug)
	})
}

func TestCreateSession_EmptyTenantIDKeepsOtherTenants(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.noTenantID = true

	f.createSession(t, "acme")
	f.createSession(t, "beta")

	records := f.store.Records(testUserID)
	require.Len(t, records, 2)
	require.Empty(t, records[0].TenantID)
	require.Empty(t, records[1].TenantID)
	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "beta"))
}

func TestCreateSession_Errors(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.createErr["denied"] = fmt.Errorf("remote: %w", apperrors.ErrAccessDenied)
	f.backend.createErr["closed"] = apperrors.ErrTenantInactive
	f.backend.createErr["down"] = errors.New("connection refused")

	_, err := f.store.CreateSession(context.Background(), "", "denied", testUserID, testUserEmail)
	require.ErrorIs(t, err, tenantsession.ErrAccessDenied)

	_, err = f.store.CreateSession(context.Background(), "", "closed", testUserID, testUserEmail)
	require.ErrorIs(t, err, tenantsession.ErrTenantInactive)

	_, err = f.store.CreateSession(context.Background(), "", "down", testUserID, testUserEmail)
	require.ErrorIs(t, err, tenantsession.ErrBackend)

	_, err = f.store.CreateSession(context.Background(), "", "", testUserID, testUserEmail)
	require.ErrorIs(t, err, tenantsession.ErrInvalidInput)

	require.Empty(t, f.store.Records(testUserID))
}

func TestResolve_ExpiredIsPurged(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")

	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))

	f.clock.Advance(refreshExpiry + time.Millisecond)
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))

	_, found, err := f.longLived.Get("tenant_sessions:" + testUserID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestResolve_ExpiryBoundary(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")

	f.clock.Advance(refreshExpiry)
	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "acme"), "now == expiresAt is still valid")

	f.clock.Advance(time.Millisecond)
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	f := setupTestFixture(t, tenantsession.WithMaxRecords(10))

	for i := 0; i < 10; i++ {
		f.createSession(t, fmt.Sprintf("tenant-%02d", i))
		f.clock.Advance(time.Minute)
	}

	// tenant-00 becomes recently used, leaving tenant-01 as the oldest.
	require.True(t, f.store.Activate(testUserID, "tenant-00"))
	f.clock.Advance(time.Minute)

	f.createSession(t, "tenant-10")

	records := f.store.Records(testUserID)
	require.Len(t, records, 10)

	slugs := make(map[string]bool)
	for _, r := range records {
		slugs[r.TenantSlug] = true
	}
	require.False(t, slugs["tenant-01"])
	require.True(t, slugs["tenant-00"])
	require.True(t, slugs["tenant-10"])
	for i := 2; i < 10; i++ {
		require.True(t, slugs[fmt.Sprintf("tenant-%02d", i)])
	}
}

func TestActivate_TabIsolation(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")
	f.createSession(t, "beta")

	tab1 := f.store
	tab2 := f.newTab(t)

	require.True(t, tab1.Activate(testUserID, "acme"))
	require.True(t, tab2.Activate(testUserID, "beta"))

	current1, ok := tab1.Current()
	require.True(t, ok)
	require.Equal(t, "acme", current1.TenantSlug)

	current2, ok := tab2.Current()
	require.True(t, ok)
	require.Equal(t, "beta", current2.TenantSlug)

	t.Run("later activation wins within a tab", func(t *testing.T) {
		require.True(t, tab1.Activate(testUserID, "beta"))
		_, slug, ok := tab1.ActiveTenant()
		require.True(t, ok)
		require.Equal(t, "beta", slug)

		_, slug, ok = tab2.ActiveTenant()
		require.True(t, ok)
		require.Equal(t, "beta", slug)
	})

	t.Run("tabs share the long-lived refresh token", func(t *testing.T) {
		require.Equal(t, current2.RefreshToken, tab1.Resolve(testUserID, testUserEmail, "beta").RefreshToken)
	})
}

func TestActivate_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")

	require.True(t, f.store.Activate(testUserID, "acme"))
	f.clock.Advance(5 * time.Minute)
	require.True(t, f.store.Activate(testUserID, "acme"))

	rec, ok := f.store.Current()
	require.True(t, ok)
	require.Equal(t, f.clock.Now().UnixMilli(), rec.LastAccess)
	require.Len(t, f.store.Records(testUserID), 1)
}

func TestActivate_Missing(t *testing.T) {
	f := setupTestFixture(t)
	require.False(t, f.store.Activate(testUserID, "acme"))
	require.False(t, f.store.Activate("", "acme"))

	_, ok := f.store.Current()
	require.False(t, ok)
}

func TestCurrent_ClearsDanglingPointer(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")
	require.True(t, f.store.Activate(testUserID, "acme"))

	f.clock.Advance(refreshExpiry + time.Second)
	_, ok := f.store.Current()
	require.False(t, ok)

	_, _, ok = f.store.ActiveTenant()
	require.False(t, ok)
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("success replaces access token and last access", func(t *testing.T) {
		f := setupTestFixture(t)
		created := f.createSession(t, "acme")

		f.clock.Advance(2 * time.Hour)
		require.True(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))

		rec := f.store.Resolve(testUserID, testUserEmail, "acme")
		require.NotNil(t, rec)
		require.NotEqual(t, created.AccessToken, rec.AccessToken)
		require.Equal(t, created.RefreshToken, rec.RefreshToken)
		require.Equal(t, created.ExpiresAt, rec.ExpiresAt)
		require.Equal(t, f.clock.Now().UnixMilli(), rec.LastAccess)
	})

	t.Run("rotation replaces refresh token and expiry", func(t *testing.T) {
		f := setupTestFixture(t)
		created := f.createSession(t, "acme")
		f.backend.rotate = true

		f.clock.Advance(24 * time.Hour)
		require.True(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))

		rec := f.store.Resolve(testUserID, testUserEmail, "acme")
		require.NotEqual(t, created.RefreshToken, rec.RefreshToken)
		require.Greater(t, rec.ExpiresAt, created.ExpiresAt)
	})

	t.Run("expired refresh token fails without a network call and purges", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")

		f.clock.Advance(refreshExpiry + time.Hour)
		require.False(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))
		require.Zero(t, f.backend.refreshes)
		require.Empty(t, f.store.Records(testUserID))
	})

	t.Run("rejected refresh purges", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")
		f.backend.refreshErr = apperrors.ErrInvalidRefreshToken

		require.False(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))
		require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	})

	t.Run("role revoked purges", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")
		f.backend.refreshErr = apperrors.ErrAccessDenied

		require.False(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))
		require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	})

	t.Run("transport failure keeps the record", func(t *testing.T) {
		f := setupTestFixture(t)
		created := f.createSession(t, "acme")
		f.backend.refreshErr = errors.New("dial tcp: connection refused")

		require.False(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))
		rec := f.store.Resolve(testUserID, testUserEmail, "acme")
		require.NotNil(t, rec)
		require.Equal(t, created.AccessToken, rec.AccessToken)
	})

	t.Run("no record", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme"))
	})
}

// Tab one renews while tab two replaces the session for the same tenant. The outcome of
// tab one's renewal must not touch tab two's record.
func TestRefreshAccessToken_ConcurrentCreateSession(t *testing.T) {
	interleave := func(t *testing.T, refreshErr error) (*testFixture, *tenantsession.SessionRecord, bool) {
		t.Helper()
		f := setupTestFixture(t)
		f.createSession(t, "acme")
		other := f.newTab(t)

		f.backend.refreshStarted = make(chan struct{})
		f.backend.refreshRelease = make(chan struct{})
		done := make(chan bool)
		go func() {
			done <- f.store.RefreshAccessToken(context.Background(), testUserID, testUserEmail, "acme")
		}()
		<-f.backend.refreshStarted

		replaced, err := other.CreateSession(context.Background(), "", "acme", testUserID, testUserEmail)
		require.NoError(t, err)

		f.backend.lock.Lock()
		f.backend.refreshErr = refreshErr
		f.backend.lock.Unlock()
		close(f.backend.refreshRelease)
		return f, replaced, <-done
	}

	t.Run("rejection leaves the replacement alone", func(t *testing.T) {
		f, replaced, ok := interleave(t, apperrors.ErrInvalidRefreshToken)
		require.False(t, ok)

		rec := f.store.Resolve(testUserID, testUserEmail, "acme")
		require.NotNil(t, rec)
		require.Equal(t, replaced.RefreshToken, rec.RefreshToken)
		require.Equal(t, replaced.AccessToken, rec.AccessToken)
	})

	t.Run("late success does not overwrite the replacement", func(t *testing.T) {
		f, replaced, ok := interleave(t, nil)
		require.False(t, ok)

		rec := f.store.Resolve(testUserID, testUserEmail, "acme")
		require.NotNil(t, rec)
		require.Equal(t, replaced.RefreshToken, rec.RefreshToken)
		require.Equal(t, replaced.AccessToken, rec.AccessToken)
	})
}

func TestIsExpired(t *testing.T) {
	f := setupTestFixture(t)
	now := f.clock.Now().UnixMilli()

	require.False(t, f.store.IsExpired(now, 0))
	require.True(t, f.store.IsExpired(now-1, 0))
	require.False(t, f.store.IsExpired(now+60_000, 0))
	require.True(t, f.store.IsExpired(now+60_000, 2*time.Minute))
	require.False(t, f.store.IsExpired(now+60_000, 30*time.Second))
}

func TestIsAccessTokenStale(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.createSession(t, "acme")

	require.False(t, f.store.IsAccessTokenStale(rec))
	f.clock.Advance(time.Hour)
	require.False(t, f.store.IsAccessTokenStale(rec))
	f.clock.Advance(time.Millisecond)
	require.True(t, f.store.IsAccessTokenStale(rec))
}

func TestRevoke(t *testing.T) {
	f := setupTestFixture(t)
	acme := f.createSession(t, "acme")
	f.createSession(t, "beta")

	tab2 := f.newTab(t)
	require.True(t, f.store.Activate(testUserID, "acme"))
	require.True(t, tab2.Activate(testUserID, "beta"))

	f.store.Revoke(context.Background(), testUserID, testUserEmail, "acme")

	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "beta"))
	require.Equal(t, []string{acme.RefreshToken}, f.backend.revoked)

	_, _, ok := f.store.ActiveTenant()
	require.False(t, ok)
	_, slug, ok := tab2.ActiveTenant()
	require.True(t, ok)
	require.Equal(t, "beta", slug)

	t.Run("revoking again is a no-op", func(t *testing.T) {
		f.store.Revoke(context.Background(), testUserID, testUserEmail, "acme")
		require.Len(t, f.backend.revoked, 1)
	})

	t.Run("revoke other tenant keeps this tab's pointer", func(t *testing.T) {
		require.True(t, f.store.Activate(testUserID, "beta"))
		f.createSession(t, "gamma")
		f.store.Revoke(context.Background(), testUserID, testUserEmail, "gamma")
		_, slug, ok := f.store.ActiveTenant()
		require.True(t, ok)
		require.Equal(t, "beta", slug)
	})
}

func TestRevokeAll(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")
	f.createSession(t, "beta")
	require.True(t, f.store.Activate(testUserID, "acme"))

	f.store.RevokeAll(context.Background(), testUserID)

	require.Empty(t, f.store.Records(testUserID))
	require.Len(t, f.backend.revoked, 2)
	_, ok := f.store.Current()
	require.False(t, ok)
}

func TestRecords_OrderAndPurge(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")
	f.clock.Advance(time.Minute)
	f.createSession(t, "beta")
	f.clock.Advance(time.Minute)
	require.True(t, f.store.Activate(testUserID, "acme"))

	records := f.store.Records(testUserID)
	require.Len(t, records, 2)
	require.Equal(t, "acme", records[0].TenantSlug)
	require.Equal(t, "beta", records[1].TenantSlug)

	// acme (created first) has expired, beta has a minute left
	f.clock.Advance(refreshExpiry - 90*time.Second)
	records = f.store.Records(testUserID)
	require.Len(t, records, 1)
	require.Equal(t, "beta", records[0].TenantSlug)
}

func TestEnsureAccess(t *testing.T) {
	t.Run("fresh token is activated without renewal", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")

		rec, err := f.store.EnsureAccess(context.Background(), testUserID, testUserEmail, "acme")
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Zero(t, f.backend.refreshes)

		_, slug, ok := f.store.ActiveTenant()
		require.True(t, ok)
		require.Equal(t, "acme", slug)
	})

	t.Run("stale token is renewed", func(t *testing.T) {
		f := setupTestFixture(t)
		created := f.createSession(t, "acme")
		f.clock.Advance(90 * time.Minute)

		rec, err := f.store.EnsureAccess(context.Background(), testUserID, testUserEmail, "acme")
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Equal(t, 1, f.backend.refreshes)
		require.NotEqual(t, created.AccessToken, rec.AccessToken)
	})

	t.Run("renewal refused means no session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")
		f.clock.Advance(90 * time.Minute)
		f.backend.refreshErr = apperrors.ErrTenantInactive

		rec, err := f.store.EnsureAccess(context.Background(), testUserID, testUserEmail, "acme")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("backend down is surfaced", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createSession(t, "acme")
		f.clock.Advance(90 * time.Minute)
		f.backend.refreshErr = apperrors.ErrBackend

		rec, err := f.store.EnsureAccess(context.Background(), testUserID, testUserEmail, "acme")
		require.ErrorIs(t, err, tenantsession.ErrBackend)
		require.Nil(t, rec)
	})

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t)
		rec, err := f.store.EnsureAccess(context.Background(), testUserID, testUserEmail, "acme")
		require.NoError(t, err)
		require.Nil(t, rec)
	})
}

func TestAuthorizationHeader(t *testing.T) {
	f := setupTestFixture(t)

	_, _, err := f.store.AuthorizationHeader()
	require.ErrorIs(t, err, tenantsession.ErrNoActiveSession)

	rec := f.createSession(t, "acme")
	require.True(t, f.store.Activate(testUserID, "acme"))

	header, tenantID, err := f.store.AuthorizationHeader()
	require.NoError(t, err)
	require.Equal(t, "Bearer "+rec.AccessToken, header)
	require.Equal(t, rec.TenantID, tenantID)
}

func TestScenario_ExpiryAcrossClockAdvance(t *testing.T) {
	f := setupTestFixture(t)
	f.createSession(t, "acme")

	rec := f.store.Resolve("u1", "a@x.com", "acme")
	require.NotNil(t, rec)
	require.Equal(t, f.clock.Now().Add(refreshExpiry).UnixMilli(), rec.ExpiresAt)

	f.clock.Advance(refreshExpiry + time.Minute)
	require.Nil(t, f.store.Resolve("u1", "a@x.com", "acme"))
	require.Nil(t, f.store.Resolve("u1", "a@x.com", "acme"))
	require.Empty(t, f.store.Records("u1"))
}

func TestStore_DurableLongLivedStore(t *testing.T) {
	longLived, err := sqlitestore.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = longLived.Close() })

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	backend := newFakeBackend(clock.Now)

	tab1, err := tenantsession.New(longLived, memstore.New(), backend, tenantsession.WithNowFunc(clock.Now))
	require.NoError(t, err)
	_, err = tab1.CreateSession(context.Background(), "", "acme", testUserID, testUserEmail)
	require.NoError(t, err)

	// A tab opened later (e.g., after the first was closed) still finds the session.
	tab2, err := tenantsession.New(longLived, memstore.New(), backend, tenantsession.WithNowFunc(clock.Now))
	require.NoError(t, err)
	require.NotNil(t, tab2.Resolve(testUserID, testUserEmail, "acme"))
	require.True(t, tab2.Activate(testUserID, "acme"))

	_, _, ok := tab1.ActiveTenant()
	require.False(t, ok)
}

func TestStore_CorruptLongLivedValueIsTreatedAsEmpty(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.longLived.Set("tenant_sessions:"+testUserID, []byte("{not json")))

	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
	f.createSession(t, "acme")
	require.NotNil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))
}

func TestWithConfig(t *testing.T) {
	t.Setenv("SESSION_MAX_PER_USER", "2")
	t.Setenv("SESSION_RENEWAL_WINDOW", "15m")

	f := setupTestFixture(t, tenantsession.WithConfig(config.New()))
	f.createSession(t, "acme")
	f.clock.Advance(time.Minute)
	f.createSession(t, "beta")
	f.clock.Advance(time.Minute)
	f.createSession(t, "gamma")

	records := f.store.Records(testUserID)
	require.Len(t, records, 2)
	require.Nil(t, f.store.Resolve(testUserID, testUserEmail, "acme"))

	rec := f.store.Resolve(testUserID, testUserEmail, "gamma")
	require.False(t, f.store.IsAccessTokenStale(rec))
	f.clock.Advance(16 * time.Minute)
	require.True(t, f.store.IsAccessTokenStale(rec))
}
