package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-autolaunch/internal/config"
	"github.com/jrsteele09/go-autolaunch/launch"
	"github.com/jrsteele09/go-autolaunch/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	baseURL  string
	mux      *http.ServeMux
	routes   []string
	config   config.EnvConfig
	launcher *launch.Orchestrator
	refresh  *refresh.Manager
	gatherer prometheus.Gatherer
}

// New builds the HTTP surface. gatherer may be nil, in which case no metrics
// route is registered.
func New(cfg config.EnvConfig, launcher *launch.Orchestrator, refresher *refresh.Manager, gatherer prometheus.Gatherer) (*Server, error) {
	if launcher == nil {
		return nil, errors.New("[Server New] launch orchestrator is required")
	}
	if refresher == nil {
		return nil, errors.New("[Server New] refresh manager is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		baseURL:  cfg.GetBaseURL(),
		mux:      http.NewServeMux(),
		config:   cfg,
		launcher: launcher,
		refresh:  refresher,
		gatherer: gatherer,
	}
	if !strings.HasSuffix(s.baseURL, "/") {
		s.baseURL += "/"
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// path places a route under the configured base URL.
func (s *Server) path(route string) string {
	return s.baseURL + strings.TrimPrefix(route, "/")
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
