package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tenant-session/tenants"
	"github.com/jrsteele09/go-tenant-session/users"
)

// InitialiseSystem creates the system tenant and its super admin when they are missing.
// Running it again against populated repos changes nothing.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	if s.repos.Tenants == nil || s.repos.Users == nil {
		return fmt.Errorf("[Server InitialiseSystem] tenant and user repos are required")
	}

	// Step 1: Create or get system tenant
	systemTenant, err := s.initialiseSystemTenant(s.config.GetSystemTenantSlug())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap system tenant: %w", err)
	}

	// Step 2: Create or get super admin user
	admin, created, err := s.createSuperAdmin(systemTenant.ID, s.config.GetSystemAdminEmail())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap super admin: %w", err)
	}

	if created {
		s.logger.Info().
			Str("tenant_id", systemTenant.ID).
			Str("tenant_slug", systemTenant.Slug).
			Str("admin_id", admin.ID).
			Str("admin_email", admin.Email).
			Msg("system initialised")
	}
	return nil
}

// initialiseSystemTenant creates the system tenant if it doesn't exist
func (s *Server) initialiseSystemTenant(slug string) (*tenants.Tenant, error) {
	if slug == "" {
		return nil, fmt.Errorf("[server initialiseSystemTenant] system tenant slug is empty")
	}
	if existing, err := s.repos.Tenants.GetBySlug(slug); err == nil && existing != nil {
		return existing, nil
	}

	systemTenant := &tenants.Tenant{
		ID:     uuid.New().String(),
		Slug:   slug,
		Name:   strings.ToUpper(slug[:1]) + slug[1:],
		Active: true,
	}
	if err := s.repos.Tenants.Upsert(systemTenant); err != nil {
		return nil, fmt.Errorf("[server initialiseSystemTenant] failed to create system tenant: %w", err)
	}
	return systemTenant, nil
}

// createSuperAdmin seeds a super admin who also administers the system tenant
func (s *Server) createSuperAdmin(systemTenantID, email string) (*users.User, bool, error) {
	if existing, err := s.repos.Users.GetByEmail(email); err == nil && existing != nil {
		return existing, false, nil
	}

	admin := &users.User{
		ID:          uuid.New().String(),
		Email:       email,
		FirstName:   "System",
		LastName:    "Admin",
		SystemRoles: []users.RoleType{users.RoleSuperAdmin},
	}
	admin.SetTenantRoles(systemTenantID, []users.RoleType{users.RoleTenantAdmin}, time.Now())
	if err := s.repos.Users.Upsert(admin); err != nil {
		return nil, false, fmt.Errorf("[server createSuperAdmin] failed to create super admin: %w", err)
	}
	return admin, true, nil
}
