package server

// Route paths, relative to the configured base URL.
const (
	RouteLaunch          = "/autolaunch"
	RouteRefreshAuth     = "/autolaunch/refresh-auth"
	RouteRefreshCallback = "/autolaunch/refresh-auth/callback"

	RouteMetrics = "/metrics"
)
