package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

// errorResponse maps an error to its wire code and HTTP status.
func errorResponse(err error) (string, int) {
	switch {
	case apperrors.Is(err, apperrors.ErrConfiguration):
		return "configuration_error", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrDecode):
		return "decode_error", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		return "invalid_request", http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNotFound):
		return "not_found", http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrNoRefresh):
		return "no_refresh", http.StatusConflict
	case apperrors.Is(err, apperrors.ErrRefresh):
		return "refresh_failed", http.StatusBadGateway
	case apperrors.Is(err, apperrors.ErrExternalProcess):
		return "mount_engine_error", http.StatusInternalServerError
	case apperrors.Is(err, apperrors.ErrIO):
		return "io_error", http.StatusInternalServerError
	default:
		return "server_error", http.StatusInternalServerError
	}
}

// writeError logs err and reports it as JSON. Server side failures keep
// their detail out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSONError(w, code, http.StatusText(status), status)
		return
	}
	log.Warn().Err(err).Str("path", r.URL.Path).Msg("Request rejected")
	writeJSONError(w, code, err.Error(), status)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
