package tenants

// Tenant is an isolated customer organization. Every session is scoped to exactly one tenant.
type Tenant struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"` // URL-safe stable name (e.g., "acme")
	Name   string `json:"name"`
	Active bool   `json:"active"` // Deactivated tenants cannot mint or renew sessions
}
