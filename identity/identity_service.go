package identity

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-tenant-session/audit"
	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
	"github.com/jrsteele09/go-tenant-session/sessionapi"
	"github.com/jrsteele09/go-tenant-session/tenants"
	"github.com/jrsteele09/go-tenant-session/token"
	"github.com/jrsteele09/go-tenant-session/token/refresh"
	"github.com/jrsteele09/go-tenant-session/users"
	"github.com/pkg/errors"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users   users.UserRepo // Repository for user data
	Tenants tenants.Repo   // Repository for tenant data
}

// Service mints and renews tenant sessions. It is the identity backend the session store
// calls; its two entry points mirror the store's only network calls.
type Service struct {
	repos         Repos
	tokens        *token.Manager   // Access token minting
	refreshTokens *refresh.Manager // Refresh token issue/lookup
	audit         audit.Sink
	rotate        bool             // Rotate refresh tokens on every renewal
	nowTime       func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithAuditSink sets where audit events go. Defaults to a discard sink.
func WithAuditSink(sink audit.Sink) ServiceOption {
	return func(s *Service) {
		s.audit = sink
	}
}

// WithRotation makes every refresh issue a new refresh token with the same expiry.
func WithRotation(rotate bool) ServiceOption {
	return func(s *Service) {
		s.rotate = rotate
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, refreshTokens *refresh.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[NewService] Tenants repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if refreshTokens == nil {
		return nil, errors.New("[NewService] refresh token manager is required")
	}

	s := &Service{
		repos:         repos,
		tokens:        tokens,
		refreshTokens: refreshTokens,
		audit:         discardSink{},
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// CreateSession checks the user may use the tenant and mints a fresh refresh/access pair.
// Any previous refresh token for the same user and tenant is invalidated.
func (s *Service) CreateSession(ctx context.Context, req sessionapi.CreateSessionRequest) (*sessionapi.SessionRecord, error) {
	if strings.TrimSpace(req.UserID) == "" || (strings.TrimSpace(req.TenantID) == "" && strings.TrimSpace(req.TenantSlug) == "") {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, "[CreateSession] userId and tenant are required")
	}

	tenant, user, err := s.authorize(req.TenantID, req.TenantSlug, req.UserID)
	if err != nil {
		s.record(ctx, audit.EventSessionDenied, req.UserID, req.UserEmail, req.TenantID, req.TenantSlug, err.Error())
		return nil, errors.Wrap(err, "[CreateSession]")
	}
	if req.UserEmail != "" && !strings.EqualFold(req.UserEmail, user.Email) {
		s.record(ctx, audit.EventSessionDenied, req.UserID, req.UserEmail, tenant.ID, tenant.Slug, "email mismatch")
		return nil, errors.Wrap(apperrors.ErrAccessDenied, "[CreateSession] email does not match user")
	}

	rawRefresh, stored, err := s.refreshTokens.Create(user.ID, tenant.ID, tenant.Slug)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateSession] refresh token")
	}

	rec, err := s.mint(user, tenant, rawRefresh, stored)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateSession]")
	}

	s.record(ctx, audit.EventSessionCreated, user.ID, user.Email, tenant.ID, tenant.Slug, "")
	return rec, nil
}

// RefreshToken mints a new access token from a refresh token. Refresh tokens that are
// expired, or whose user or tenant no longer qualifies, are deleted.
func (s *Service) RefreshToken(ctx context.Context, req sessionapi.RefreshRequest) (*sessionapi.SessionRecord, error) {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, "[RefreshToken] refreshToken is required")
	}

	stored, err := s.refreshTokens.Get(req.RefreshToken)
	if err != nil || stored == nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRefreshToken, "[RefreshToken] unknown refresh token")
	}
	if req.TenantSlug != "" && req.TenantSlug != stored.TenantSlug {
		return nil, errors.Wrap(apperrors.ErrInvalidRefreshToken, "[RefreshToken] refresh token belongs to another tenant")
	}
	if s.refreshTokens.IsExpired(stored) {
		s.dropRefreshToken(stored)
		return nil, errors.Wrap(apperrors.ErrTokenExpired, "[RefreshToken]")
	}

	tenant, user, err := s.authorize(stored.TenantID, "", stored.UserID)
	if err != nil {
		s.dropRefreshToken(stored)
		s.record(ctx, audit.EventSessionDenied, stored.UserID, "", stored.TenantID, stored.TenantSlug, err.Error())
		return nil, errors.Wrap(err, "[RefreshToken]")
	}

	rawRefresh := req.RefreshToken
	if s.rotate {
		if rawRefresh, stored, err = s.refreshTokens.Rotate(stored); err != nil {
			return nil, errors.Wrap(err, "[RefreshToken] rotate")
		}
	}

	rec, err := s.mint(user, tenant, rawRefresh, stored)
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshToken]")
	}

	s.record(ctx, audit.EventSessionRefreshed, user.ID, user.Email, tenant.ID, tenant.Slug, "")
	return rec, nil
}

// Revoke deletes a refresh token and revokes the last access token minted from it.
// Unknown tokens are ignored.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return errors.Wrap(apperrors.ErrInvalidRequest, "[Revoke] refreshToken is required")
	}

	stored, err := s.refreshTokens.Get(refreshToken)
	if err != nil || stored == nil {
		return nil
	}
	s.dropRefreshToken(stored)
	s.record(ctx, audit.EventSessionRevoked, stored.UserID, "", stored.TenantID, stored.TenantSlug, "")
	return nil
}

// Introspect reports whether an access token is currently valid.
func (s *Service) Introspect(rawToken string) (*token.TokenIntrospection, error) {
	return s.tokens.Introspection(rawToken)
}

// authorize resolves the tenant (by ID, falling back to slug) and user and checks the user
// holds an active role on an active tenant.
func (s *Service) authorize(tenantID, tenantSlug, userID string) (*tenants.Tenant, *users.User, error) {
	var (
		tenant *tenants.Tenant
		err    error
	)
	if tenantID != "" {
		tenant, err = s.repos.Tenants.Get(tenantID)
	} else {
		tenant, err = s.repos.Tenants.GetBySlug(tenantSlug)
	}
	if err != nil || tenant == nil {
		return nil, nil, apperrors.ErrTenantNotFound
	}
	if tenantID != "" && tenantSlug != "" && tenant.Slug != tenantSlug {
		return nil, nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "tenant %s is not %q", tenantID, tenantSlug)
	}
	if !tenant.Active {
		return nil, nil, apperrors.ErrTenantInactive
	}

	user, err := s.repos.Users.GetByID(userID)
	if err != nil || user == nil {
		return nil, nil, apperrors.ErrUserNotFound
	}
	if !user.HasActiveRole(tenant.ID) {
		return nil, nil, apperrors.ErrAccessDenied
	}
	return tenant, user, nil
}

func (s *Service) mint(user *users.User, tenant *tenants.Tenant, rawRefresh string, stored *refresh.StoredRefreshToken) (*sessionapi.SessionRecord, error) {
	access, err := s.tokens.CreateAccessToken(user, tenant)
	if err != nil {
		return nil, errors.Wrap(err, "access token")
	}

	stored.AccessJTI = access.JTI
	stored.AccessExp = access.ExpiresAt
	if err := s.refreshTokens.Save(stored); err != nil {
		return nil, errors.Wrap(err, "save refresh token")
	}

	return &sessionapi.SessionRecord{
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		UserID:       user.ID,
		UserEmail:    user.Email,
		RefreshToken: rawRefresh,
		AccessToken:  access.Token,
		ExpiresAt:    stored.ExpiresAt.UnixMilli(),
		LastAccess:   s.nowTime().UnixMilli(),
	}, nil
}

// dropRefreshToken deletes a refresh token and revokes its latest access token.
func (s *Service) dropRefreshToken(stored *refresh.StoredRefreshToken) {
	_ = s.refreshTokens.DeleteStored(stored)
	if stored.AccessJTI != "" && stored.AccessExp.After(s.nowTime()) {
		_ = s.tokens.RevokeAccessToken(stored.AccessJTI, stored.TenantID, stored.AccessExp)
	}
}

func (s *Service) record(ctx context.Context, eventType, userID, email, tenantID, tenantSlug, reason string) {
	s.audit.Record(ctx, audit.Event{
		Type:       eventType,
		UserID:     userID,
		UserEmail:  email,
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		Reason:     reason,
		At:         s.nowTime(),
	})
}

type discardSink struct{}

func (discardSink) Record(context.Context, audit.Event) {}
