package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-autolaunch/auth"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/launch"
)

// LaunchHandler mounts the requested files and sends the browser on to the
// analysis workspace.
//
// Query parameters:
//
//	auth_token       credential blob for the selected provider
//	auth_token_hint  provider kind; the configured default when empty
//	files            base64url JSON array of index file lines
//	analysis_hint    analysis type; detected from the files when empty or unknown
//	get_return_url   respond with {"return_url": ...} instead of redirecting
func (s *Server) LaunchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		files, err := decodeFiles(q.Get("files"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		res, err := s.launcher.Launch(r.Context(), launch.Request{
			Credential:   q.Get("auth_token"),
			ProviderHint: q.Get("auth_token_hint"),
			Files:        files,
			AnalysisHint: q.Get("analysis_hint"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		if wantsReturnURL(q.Get("get_return_url")) {
			w.Header().Set("Content-Type", contentTypeJSON)
			_ = json.NewEncoder(w).Encode(map[string]string{"return_url": res.ReturnURL})
			return
		}
		http.Redirect(w, r, res.ReturnURL, http.StatusFound)
	}
}

func decodeFiles(param string) ([]string, error) {
	if param == "" {
		return nil, fmt.Errorf("[decodeFiles] %w: files parameter is required", apperrors.ErrInvalidRequest)
	}
	var files []string
	if err := auth.DecodeBase64JSON(param, &files); err != nil {
		return nil, fmt.Errorf("[decodeFiles] files: %w", err)
	}
	return files, nil
}

// wantsReturnURL treats any value other than an explicit false as a request
// for the JSON response.
func wantsReturnURL(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}
