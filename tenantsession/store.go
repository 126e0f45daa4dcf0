package tenantsession

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-tenant-session/internal/config"
	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
	"github.com/jrsteele09/go-tenant-session/kvstore"
	"github.com/jrsteele09/go-tenant-session/sessionapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	longLivedKeyPrefix = "tenant_sessions:"
	activeTenantKey    = "active_tenant"
)

// activePointer is the tab-scoped value naming the record the tab is looking at.
type activePointer struct {
	UserID     string `json:"userId"`
	TenantSlug string `json:"tenantSlug"`
}

// Store is the single source of truth for whether the current user holds a usable,
// isolated session for a tenant, and for obtaining one when it does not.
//
// The long-lived store is shared by every Store of the same origin (one per tab), so tabs
// on the same tenant reuse one refresh token. The tab-scoped store is private to one Store
// and only holds the pointer to the active record. Concurrent writers to the long-lived
// store resolve as last write wins.
type Store struct {
	longLived     kvstore.Store
	tab           kvstore.Store
	backend       Backend
	maxRecords    int
	renewalWindow time.Duration
	nowFunc       func() time.Time
	logger        zerolog.Logger
	lock          sync.Mutex // serialises read-modify-write cycles issued through this Store
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithMaxRecords caps the number of records kept per user; the least recently used is evicted.
func WithMaxRecords(max int) StoreOption {
	return func(s *Store) {
		s.maxRecords = max
	}
}

// WithRenewalWindow sets how long an access token is trusted after the record's last access.
func WithRenewalWindow(window time.Duration) StoreOption {
	return func(s *Store) {
		s.renewalWindow = window
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = nowFunc
	}
}

// WithLogger sets the logger used for purge, eviction and renewal diagnostics.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithConfig applies the session limits from cfg.
func WithConfig(cfg config.SessionConfig) StoreOption {
	return func(s *Store) {
		s.maxRecords = cfg.GetMaxSessionsPerUser()
		s.renewalWindow = cfg.GetRenewalWindow()
	}
}

// New creates a Store over an origin-wide long-lived store and a tab-scoped store.
func New(longLived, tab kvstore.Store, backend Backend, options ...StoreOption) (*Store, error) {
	if longLived == nil {
		return nil, errors.New("[tenantsession.New] long-lived store is required")
	}
	if tab == nil {
		return nil, errors.New("[tenantsession.New] tab-scoped store is required")
	}
	if backend == nil {
		return nil, errors.New("[tenantsession.New] identity backend is required")
	}

	s := &Store{
		longLived:     longLived,
		tab:           tab,
		backend:       backend,
		maxRecords:    config.DefaultMaxSessionsPerUser,
		renewalWindow: config.DefaultRenewalWindow,
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.maxRecords <= 0 {
		s.maxRecords = config.DefaultMaxSessionsPerUser
	}
	return s, nil
}

// Resolve returns the user's record for tenantSlug, or nil when there is none or it has
// expired. An expired record is purged. No network call is made.
func (s *Store) Resolve(userID, userEmail, tenantSlug string) *SessionRecord {
	if userID == "" || tenantSlug == "" {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	rec, _ := s.resolveLocked(userID, tenantSlug)
	return rec
}

// CreateSession asks the identity backend for a brand-new session and stores it, replacing
// any previous record for the same tenant. Fails with ErrAccessDenied, ErrTenantInactive
// or ErrBackend.
func (s *Store) CreateSession(ctx context.Context, tenantID, tenantSlug, userID, userEmail string) (*SessionRecord, error) {
	if userID == "" || tenantSlug == "" {
		return nil, apperrors.Wrapf(ErrInvalidInput, "[CreateSession] userID and tenantSlug are required")
	}

	rec, err := s.backend.CreateSession(ctx, sessionapi.CreateSessionRequest{
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		UserID:     userID,
		UserEmail:  userEmail,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("tenant_slug", tenantSlug).Msg("create session failed")
		return nil, errors.Wrap(classify(err), "[CreateSession] identity backend")
	}
	if rec == nil || rec.RefreshToken == "" {
		return nil, errors.Wrap(ErrBackend, "[CreateSession] identity backend returned an empty session")
	}

	// The backend is authoritative for the IDs it echoes; fill gaps from the request.
	if rec.UserID == "" {
		rec.UserID = userID
	}
	if rec.UserEmail == "" {
		rec.UserEmail = userEmail
	}
	if rec.TenantSlug == "" {
		rec.TenantSlug = tenantSlug
	}
	if rec.TenantID == "" {
		rec.TenantID = tenantID
	}
	rec.LastAccess = millis(s.nowFunc())

	s.lock.Lock()
	defer s.lock.Unlock()

	records := s.load(rec.UserID)
	records = s.dropExpired(records)
	records = removeMatching(records, func(r SessionRecord) bool {
		return (rec.TenantID != "" && r.TenantID == rec.TenantID) || r.TenantSlug == rec.TenantSlug
	})
	records = s.evict(records, s.maxRecords-1)
	records = append(records, *rec)

	if err := s.save(rec.UserID, records); err != nil {
		return nil, errors.Wrap(err, "[CreateSession] persist session")
	}

	s.logger.Debug().Str("user_id", rec.UserID).Str("tenant_slug", rec.TenantSlug).Msg("session created")
	created := *rec
	return &created, nil
}

// RefreshAccessToken exchanges the stored refresh token for a new access token.
// It returns false when there is no usable record or the backend refused; a refused record
// is purged and the caller is expected to fall back to CreateSession. Transport failures
// leave the record untouched.
func (s *Store) RefreshAccessToken(ctx context.Context, userID, userEmail, tenantSlug string) bool {
	_, err := s.refresh(ctx, userID, tenantSlug)
	return err == nil
}

func (s *Store) refresh(ctx context.Context, userID, tenantSlug string) (*SessionRecord, error) {
	rec := s.Resolve(userID, "", tenantSlug)
	if rec == nil {
		return nil, errors.Wrap(ErrTokenExpired, "[RefreshAccessToken] no usable session")
	}

	renewed, err := s.backend.RefreshToken(ctx, sessionapi.RefreshRequest{
		RefreshToken: rec.RefreshToken,
		TenantSlug:   tenantSlug,
	})
	if err == nil && (renewed == nil || renewed.AccessToken == "") {
		err = errors.Wrap(ErrBackend, "identity backend returned an empty session")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err != nil {
		err = classify(err)
		if apperrors.Is(err, ErrBackend) {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("tenant_slug", tenantSlug).Msg("refresh failed, keeping session")
			return nil, errors.Wrap(err, "[RefreshAccessToken] identity backend")
		}
		// Only purge the record whose token was refused; another tab may have replaced it.
		s.logger.Info().Err(err).Str("user_id", userID).Str("tenant_slug", tenantSlug).Msg("refresh rejected, purging session")
		s.removeLocked(userID, func(r SessionRecord) bool {
			return r.TenantSlug == tenantSlug && r.RefreshToken == rec.RefreshToken
		})
		return nil, errors.Wrap(err, "[RefreshAccessToken] identity backend")
	}

	records := s.load(userID)
	idx := indexBySlug(records, tenantSlug)
	if idx < 0 || records[idx].RefreshToken != rec.RefreshToken {
		// Revoked or replaced by another caller while the request was in flight.
		s.logger.Debug().Str("user_id", userID).Str("tenant_slug", tenantSlug).Msg("session replaced during renewal, discarding result")
		return nil, errors.Wrap(ErrTokenExpired, "[RefreshAccessToken] session replaced during renewal")
	}

	current := &records[idx]
	current.AccessToken = renewed.AccessToken
	current.LastAccess = millis(s.nowFunc())
	if renewed.RefreshToken != "" && renewed.RefreshToken != current.RefreshToken {
		current.RefreshToken = renewed.RefreshToken
		if renewed.ExpiresAt > 0 {
			current.ExpiresAt = renewed.ExpiresAt
		}
	}
	updated := *current

	if err := s.save(userID, records); err != nil {
		return nil, errors.Wrap(err, "[RefreshAccessToken] persist session")
	}
	return &updated, nil
}

// Activate points this tab at the user's record for tenantSlug and refreshes its last access.
// It returns false, leaving the tab untouched, when there is no usable record.
func (s *Store) Activate(userID, tenantSlug string) bool {
	if userID == "" || tenantSlug == "" {
		return false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	rec, records := s.resolveLocked(userID, tenantSlug)
	if rec == nil {
		return false
	}

	idx := indexBySlug(records, tenantSlug)
	records[idx].LastAccess = millis(s.nowFunc())
	if err := s.save(userID, records); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("activate: failed to touch session")
	}

	payload, err := json.Marshal(activePointer{UserID: userID, TenantSlug: tenantSlug})
	if err != nil {
		return false
	}
	if err := s.tab.Set(activeTenantKey, payload); err != nil {
		s.logger.Warn().Err(err).Msg("activate: failed to write tab pointer")
		return false
	}
	return true
}

// ActiveTenant returns the tenant slug this tab currently points at.
func (s *Store) ActiveTenant() (userID, tenantSlug string, ok bool) {
	ptr, ok := s.pointer()
	if !ok {
		return "", "", false
	}
	return ptr.UserID, ptr.TenantSlug, true
}

// Current resolves the tab's active pointer to its long-lived record. A pointer whose record
// has gone or expired is cleared.
func (s *Store) Current() (*SessionRecord, bool) {
	ptr, ok := s.pointer()
	if !ok {
		return nil, false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	rec, _ := s.resolveLocked(ptr.UserID, ptr.TenantSlug)
	if rec == nil {
		s.clearPointer()
		return nil, false
	}
	return rec, true
}

// IsExpired reports whether expiresAt (epoch millis) is within margin of now.
func (s *Store) IsExpired(expiresAt int64, margin time.Duration) bool {
	return IsExpired(s.nowFunc(), expiresAt, margin)
}

// IsAccessTokenStale reports whether rec's access token is older than the renewal window.
func (s *Store) IsAccessTokenStale(rec *SessionRecord) bool {
	return IsExpired(s.nowFunc(), rec.LastAccess+s.renewalWindow.Milliseconds(), 0)
}

// Revoke removes the user's record for tenantSlug and clears this tab's pointer if it
// referenced it. When the backend supports it the refresh token is also revoked server-side;
// failures there are logged, never returned.
func (s *Store) Revoke(ctx context.Context, userID, userEmail, tenantSlug string) {
	if userID == "" || tenantSlug == "" {
		return
	}

	s.lock.Lock()
	removed := s.removeLocked(userID, func(r SessionRecord) bool { return r.TenantSlug == tenantSlug })
	if ptr, ok := s.pointer(); ok && ptr.UserID == userID && ptr.TenantSlug == tenantSlug {
		s.clearPointer()
	}
	s.lock.Unlock()

	s.revokeRemote(ctx, removed)
}

// RevokeAll logs the user out of every tenant.
func (s *Store) RevokeAll(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	s.lock.Lock()
	removed := s.load(userID)
	if err := s.longLived.Remove(longLivedKeyPrefix + userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("revoke all: failed to remove sessions")
	}
	if ptr, ok := s.pointer(); ok && ptr.UserID == userID {
		s.clearPointer()
	}
	s.lock.Unlock()

	s.revokeRemote(ctx, removed)
}

// Records lists the user's live records, most recently used first. Expired ones are purged.
func (s *Store) Records(userID string) []SessionRecord {
	if userID == "" {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	records := s.load(userID)
	live := s.dropExpired(records)
	if len(live) != len(records) {
		if err := s.save(userID, live); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("records: failed to purge expired sessions")
		}
	}

	sortByLastAccessDesc(live)
	return live
}

// EnsureAccess is the navigation-time path into a tenant route: resolve, renew the access
// token if it is stale, then activate. It returns nil without error when there is no usable
// session, in which case the caller should send the user to tenant selection.
func (s *Store) EnsureAccess(ctx context.Context, userID, userEmail, tenantSlug string) (*SessionRecord, error) {
	rec := s.Resolve(userID, userEmail, tenantSlug)
	if rec == nil {
		return nil, nil
	}

	if s.IsAccessTokenStale(rec) {
		if _, err := s.refresh(ctx, userID, tenantSlug); err != nil {
			if apperrors.Is(err, ErrBackend) {
				return nil, err
			}
			return nil, nil
		}
	}

	if !s.Activate(userID, tenantSlug) {
		return nil, nil
	}
	return s.Resolve(userID, userEmail, tenantSlug), nil
}

// ensureFresh is the per-request path: resolve and renew a stale access token. Unlike
// EnsureAccess it never touches LastAccess, so staleness keeps counting from the last mint.
func (s *Store) ensureFresh(ctx context.Context, userID, tenantSlug string) (*SessionRecord, error) {
	rec := s.Resolve(userID, "", tenantSlug)
	if rec == nil || !s.IsAccessTokenStale(rec) {
		return rec, nil
	}
	renewed, err := s.refresh(ctx, userID, tenantSlug)
	if err != nil {
		if apperrors.Is(err, ErrBackend) {
			return nil, err
		}
		return nil, nil
	}
	return renewed, nil
}

// AuthorizationHeader returns the "Bearer <accessToken>" value and tenant ID for the tab's
// active record.
func (s *Store) AuthorizationHeader() (header, tenantID string, err error) {
	rec, ok := s.Current()
	if !ok {
		return "", "", ErrNoActiveSession
	}
	return "Bearer " + rec.AccessToken, rec.TenantID, nil
}

// resolveLocked returns a copy of the matching live record together with the user's records
// as persisted after any purge.
func (s *Store) resolveLocked(userID, tenantSlug string) (*SessionRecord, []SessionRecord) {
	records := s.load(userID)
	idx := indexBySlug(records, tenantSlug)
	if idx < 0 {
		return nil, records
	}

	if s.IsExpired(records[idx].ExpiresAt, 0) {
		s.logger.Debug().Str("user_id", userID).Str("tenant_slug", tenantSlug).Msg("purging expired session")
		records = append(records[:idx], records[idx+1:]...)
		if err := s.save(userID, records); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to purge expired session")
		}
		return nil, records
	}

	rec := records[idx]
	return &rec, records
}

func (s *Store) removeLocked(userID string, match func(SessionRecord) bool) []SessionRecord {
	records := s.load(userID)
	kept := make([]SessionRecord, 0, len(records))
	removed := make([]SessionRecord, 0, 1)
	for _, r := range records {
		if match(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.save(userID, kept); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to remove session")
	}
	return removed
}

func (s *Store) revokeRemote(ctx context.Context, records []SessionRecord) {
	revoker, ok := s.backend.(Revoker)
	if !ok {
		return
	}
	for _, r := range records {
		if err := revoker.Revoke(ctx, r.RefreshToken); err != nil {
			s.logger.Warn().Err(err).Str("user_id", r.UserID).Str("tenant_slug", r.TenantSlug).Msg("server-side revoke failed")
		}
	}
}

// evict removes least recently used records until at most keep remain.
func (s *Store) evict(records []SessionRecord, keep int) []SessionRecord {
	if keep < 0 {
		keep = 0
	}
	for len(records) > keep {
		oldest := 0
		for i := range records {
			if records[i].LastAccess < records[oldest].LastAccess {
				oldest = i
			}
		}
		s.logger.Debug().Str("user_id", records[oldest].UserID).Str("tenant_slug", records[oldest].TenantSlug).Msg("evicting least recently used session")
		records = append(records[:oldest], records[oldest+1:]...)
	}
	return records
}

func (s *Store) dropExpired(records []SessionRecord) []SessionRecord {
	return removeMatching(records, func(r SessionRecord) bool {
		return s.IsExpired(r.ExpiresAt, 0)
	})
}

func (s *Store) load(userID string) []SessionRecord {
	data, found, err := s.longLived.Get(longLivedKeyPrefix + userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to read sessions")
		return nil
	}
	if !found {
		return nil
	}

	var records []SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable sessions")
		return nil
	}
	return records
}

func (s *Store) save(userID string, records []SessionRecord) error {
	key := longLivedKeyPrefix + userID
	if len(records) == 0 {
		return s.longLived.Remove(key)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.longLived.Set(key, payload)
}

func (s *Store) pointer() (activePointer, bool) {
	data, found, err := s.tab.Get(activeTenantKey)
	if err != nil || !found {
		return activePointer{}, false
	}
	var ptr activePointer
	if err := json.Unmarshal(data, &ptr); err != nil || ptr.UserID == "" || strings.TrimSpace(ptr.TenantSlug) == "" {
		return activePointer{}, false
	}
	return ptr, true
}

func (s *Store) clearPointer() {
	if err := s.tab.Remove(activeTenantKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear tab pointer")
	}
}

func indexBySlug(records []SessionRecord, tenantSlug string) int {
	for i := range records {
		if records[i].TenantSlug == tenantSlug {
			return i
		}
	}
	return -1
}

func removeMatching(records []SessionRecord, match func(SessionRecord) bool) []SessionRecord {
	kept := records[:0]
	for _, r := range records {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func sortByLastAccessDesc(records []SessionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastAccess > records[j].LastAccess
	})
}
