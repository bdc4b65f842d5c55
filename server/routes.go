package server

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+s.path(RouteLaunch), ChainMiddleware(s.LaunchHandler(), s.APIMiddleware()...))

	// Re-authentication: redirect out, then the identity provider calls back.
	s.RegisterRouteHandler("GET "+s.path(RouteRefreshAuth), ChainMiddleware(s.RefreshStartHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+s.path(RouteRefreshCallback), ChainMiddleware(s.RefreshCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+s.path(RouteRefreshCallback), ChainMiddleware(s.RefreshCallbackHandler(), s.HTMLMiddleWare()...)) // For form_post response mode

	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler())
	}
}
