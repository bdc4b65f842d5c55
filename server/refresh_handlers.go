package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/go-autolaunch/auth"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/rs/zerolog/log"
)

type formField struct {
	Name  string
	Value string
}

// RefreshStartHandler renders a self-submitting form that takes the browser
// to the identity provider recorded for the session in the id parameter.
func (s *Server) RefreshStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("id")
		if sessionID == "" {
			writeJSONError(w, "invalid_request", "Missing id parameter", http.StatusBadRequest)
			return
		}

		descriptor, err := s.refresh.Start(sessionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		method := strings.ToUpper(descriptor.Method)
		if method != http.MethodGet && method != http.MethodPost {
			writeError(w, r, fmt.Errorf("%w: unsupported refresh method %q", apperrors.ErrConfiguration, descriptor.Method))
			return
		}

		params := make(map[string]string, len(descriptor.Params)+2)
		for k, v := range descriptor.Params {
			params[k] = v
		}
		params["state"] = sessionID
		params["redirect_uri"] = s.callbackURL(r)

		fields := make([]formField, 0, len(params))
		for k, v := range params {
			fields = append(fields, formField{Name: k, Value: v})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

		tmpl, err := ParseTemplate("refresh_redirect.html")
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.WriteHeader(http.StatusOK)
		data := struct {
			Method   string
			Endpoint string
			Fields   []formField
		}{
			Method:   strings.ToLower(method),
			Endpoint: descriptor.Endpoint,
			Fields:   fields,
		}
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render refresh redirect")
		}
	}
}

// RefreshCallbackHandler applies the identity provider's answer to every
// index file recorded under state and closes the window.
func (s *Server) RefreshCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			writeJSONError(w, "authorization_failed", fmt.Sprintf("Authorization failed: %s - %s", errorParam, errorDesc), http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			writeJSONError(w, "invalid_request", "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		res, err := s.refresh.Apply(r.Context(), state, auth.RefreshRequest{Code: code, RedirectURI: s.callbackURL(r)})
		if err != nil {
			writeError(w, r, err)
			return
		}

		tmpl, err := ParseTemplate("refresh_complete.html")
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.WriteHeader(http.StatusOK)
		data := struct {
			Refreshed   int
			EngineError bool
		}{
			Refreshed:   len(res.Refreshed),
			EngineError: res.NotifyErr != nil,
		}
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render refresh result")
		}
	}
}

// callbackURL is the redirect URI the identity provider returns to. Start and
// callback must compute the same value.
func (s *Server) callbackURL(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + s.path(RouteRefreshCallback)
}
