package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-tenant-session/internal/utils"
	"github.com/jrsteele09/go-tenant-session/tenants"
	"github.com/jrsteele09/go-tenant-session/users"
	"github.com/pkg/errors"
)

const defaultIssuer = "tenant-sessions"

// AccessToken is a freshly minted, signed access token.
type AccessToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenIntrospection represents the metadata of a verified access token.
// When Active is false the remaining fields may not be populated.
type TokenIntrospection struct {
	Active     bool     `json:"active"`
	Sub        string   `json:"sub,omitempty"`
	Email      string   `json:"email,omitempty"`
	Tenant     string   `json:"tenant,omitempty"`
	TenantSlug string   `json:"tenant_slug,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Iss        string   `json:"iss,omitempty"`
	Iat        int64    `json:"iat,omitempty"`
	Exp        int64    `json:"exp,omitempty"`
	JTI        string   `json:"jti,omitempty"`
}

// Manager mints and verifies the short-lived access tokens attached to tenant sessions.
type Manager struct {
	signer            Signer
	issuer            string
	accessTokenExpiry time.Duration
	revokedCache      RevokedTokenCache
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		issuer:       defaultIssuer,
		revokedCache: NewInMemoryRevokedTokenCache(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CreateAccessToken mints an access token for user scoped to tenant
func (c *Manager) CreateAccessToken(user *users.User, tenant *tenants.Tenant) (*AccessToken, error) {
	if user == nil || tenant == nil {
		return nil, errors.New("[CreateAccessToken] user and tenant are required")
	}

	now := c.nowFunc()
	exp := now.Add(c.accessTokenExpiry)
	jti := uuid.New().String()

	claims := jwt.MapClaims{
		"iss":         c.issuer,
		"sub":         user.ID,
		"email":       user.Email,
		"tenant":      tenant.ID,
		"tenant_slug": tenant.Slug,
		"roles":       user.CombinedRoles(tenant.ID),
		"iat":         now.Unix(),
		"exp":         exp.Unix(),
		"jti":         jti,
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateAccessToken] sign")
	}

	return &AccessToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// Introspection verifies rawToken and reports its claims. Invalid, expired and revoked
// tokens yield Active=false; the error explains why when verification itself failed.
func (c *Manager) Introspection(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	parsed, err := jwt.Parse(rawToken, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return &TokenIntrospection{Active: false}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	result := &TokenIntrospection{Active: true}
	result.Iss, _ = claims["iss"].(string)
	result.Sub, _ = claims["sub"].(string)
	result.Email, _ = claims["email"].(string)
	result.Tenant, _ = claims["tenant"].(string)
	result.TenantSlug, _ = claims["tenant_slug"].(string)
	result.JTI, _ = claims["jti"].(string)
	if iat, ok := claims["iat"].(float64); ok {
		result.Iat = int64(iat)
	}
	if exp, ok := claims["exp"].(float64); ok {
		result.Exp = int64(exp)
	}
	if roles, ok := claims["roles"].([]any); ok {
		result.Roles = utils.ToStringSlice(roles)
	}

	if result.JTI != "" && c.revokedCache.IsRevoked(result.JTI) {
		result.Active = false
	}
	return result, nil
}

// RevokeAccessToken revokes an access token minted for tenantID by jti until its expiry
func (c *Manager) RevokeAccessToken(jti, tenantID string, exp time.Time) error {
	if jti == "" {
		return errors.New("[RevokeAccessToken] jti is required")
	}
	return c.revokedCache.Add(jti, tenantID, exp)
}

// RevokedAccessTokens lists the tenant's access tokens that are revoked and not yet expired
func (c *Manager) RevokedAccessTokens(tenantID string) []RevokedToken {
	return c.revokedCache.ListByTenant(tenantID)
}

// CleanupRevokedTokens drops revocation entries for tokens that have expired
func (c *Manager) CleanupRevokedTokens() {
	c.revokedCache.Cleanup(c.nowFunc())
}
