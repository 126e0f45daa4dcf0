package server

import "github.com/jrsteele09/go-tenant-session/identity/client"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session API routes, shared with the identity client
	RouteCreateSession  = client.PathCreateSession
	RouteRefreshSession = client.PathRefresh
	RouteRevokeSession  = client.PathRevoke

	// Token routes
	RouteIntrospect = "/api/v1/tokens/introspect"

	// Operational routes
	RouteHealth = "/healthz"
)
