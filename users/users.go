package users

import (
	"time"
)

// RoleType represents a user role either at system or tenant level
type RoleType string

const (
	// System-level roles
	RoleSuperAdmin RoleType = "super_admin" // Can open a session on any active tenant

	// Tenant-level roles
	RoleTenantAdmin  RoleType = "tenant_admin"  // Manages billing, customers and settings within a tenant
	RoleTenantUser   RoleType = "tenant_user"   // Regular user within a tenant
	RoleTenantViewer RoleType = "tenant_viewer" // Read-only access within a tenant
)

// TenantMembership represents a user's membership and roles within a specific tenant
type TenantMembership struct {
	TenantID string     `json:"tenant_id"`
	Roles    []RoleType `json:"roles"`
	JoinedAt time.Time  `json:"joined_at"`
}

type User struct {
	ID          string             `json:"id,omitempty"`
	Email       string             `json:"email,omitempty"`
	FirstName   string             `json:"first_name,omitempty"`
	LastName    string             `json:"last_name,omitempty"`
	SystemRoles []RoleType         `json:"system_roles,omitempty"`
	Tenants     []TenantMembership `json:"tenants,omitempty"`
	Blocked     bool               `json:"blocked,omitempty"` // Blocked users cannot open or renew any session
}

// GetTenantMembership returns the user's membership for a specific tenant
func (u *User) GetTenantMembership(tenantID string) *TenantMembership {
	for i := range u.Tenants {
		if u.Tenants[i].TenantID == tenantID {
			return &u.Tenants[i]
		}
	}
	return nil
}

// GetRolesForTenant returns the user's roles within a specific tenant
func (u *User) GetRolesForTenant(tenantID string) []RoleType {
	membership := u.GetTenantMembership(tenantID)
	if membership != nil {
		return membership.Roles
	}
	return nil
}

// IsSuperAdmin returns true if the user has super admin privileges
func (u *User) IsSuperAdmin() bool {
	for _, role := range u.SystemRoles {
		if role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// HasActiveRole reports whether the user may hold a session on tenantID.
func (u *User) HasActiveRole(tenantID string) bool {
	if u.Blocked {
		return false
	}
	if u.IsSuperAdmin() {
		return true
	}
	return len(u.GetRolesForTenant(tenantID)) > 0
}

// CombinedRoles returns system roles followed by the roles held within tenantID
func (u *User) CombinedRoles(tenantID string) []string {
	roles := make([]string, 0, len(u.SystemRoles))
	for _, role := range u.SystemRoles {
		roles = append(roles, string(role))
	}
	for _, role := range u.GetRolesForTenant(tenantID) {
		roles = append(roles, string(role))
	}
	return roles
}

// SetTenantRoles replaces the roles on tenantID, adding the membership if needed.
// Passing no roles removes the membership.
func (u *User) SetTenantRoles(tenantID string, roles []RoleType, now time.Time) {
	for i := range u.Tenants {
		if u.Tenants[i].TenantID != tenantID {
			continue
		}
		if len(roles) == 0 {
			u.Tenants = append(u.Tenants[:i], u.Tenants[i+1:]...)
			return
		}
		u.Tenants[i].Roles = roles
		return
	}
	if len(roles) > 0 {
		u.Tenants = append(u.Tenants, TenantMembership{TenantID: tenantID, Roles: roles, JoinedAt: now})
	}
}
