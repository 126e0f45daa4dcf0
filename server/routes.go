package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Session lifecycle
	s.RegisterRouteHandler("POST "+RouteCreateSession, ChainMiddleware(s.CreateSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefreshSession, ChainMiddleware(s.RefreshSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRevokeSession, ChainMiddleware(s.RevokeSessionHandler(), s.APIMiddleware()...))

	// Resource servers check access tokens here
	s.RegisterRouteHandler("POST "+RouteIntrospect, ChainMiddleware(s.IntrospectHandler(), s.APIMiddleware()...))
}
