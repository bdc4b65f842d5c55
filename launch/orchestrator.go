// Package launch turns a credential and a list of remote file references into
// a mounted, classified analysis session.
package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-autolaunch/analysis"
	"github.com/jrsteele09/go-autolaunch/auth"
	"github.com/jrsteele09/go-autolaunch/internal/config"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/jrsteele09/go-autolaunch/refresh"
	"github.com/rs/zerolog/log"
)

// Deps wires an Orchestrator. Metrics is optional.
type Deps struct {
	Providers       *auth.Registry
	DefaultProvider string
	Classifiers     *analysis.Registry
	Mounts          *mount.Registry
	Refresh         *refresh.Registry
	Notifier        *mount.Notifier
	Paths           config.Paths
	BaseURL         string
	Metrics         *metrics.Metrics
}

type Orchestrator struct {
	deps Deps
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Providers == nil:
		return nil, errors.New("[NewOrchestrator] provider registry is required")
	case deps.Classifiers == nil:
		return nil, errors.New("[NewOrchestrator] classifier registry is required")
	case deps.Mounts == nil:
		return nil, errors.New("[NewOrchestrator] mount registry is required")
	case deps.Refresh == nil:
		return nil, errors.New("[NewOrchestrator] refresh registry is required")
	case deps.Notifier == nil:
		return nil, errors.New("[NewOrchestrator] notifier is required")
	case deps.Paths.Root == "":
		return nil, errors.New("[NewOrchestrator] storage root is required")
	}
	if deps.DefaultProvider == "" {
		deps.DefaultProvider = auth.PolyauthKind
	}
	if _, err := deps.Providers.Get(deps.DefaultProvider); err != nil {
		return nil, fmt.Errorf("[NewOrchestrator] default provider: %w", err)
	}
	if !strings.HasSuffix(deps.BaseURL, "/") {
		deps.BaseURL += "/"
	}
	return &Orchestrator{deps: deps}, nil
}

// Request is one launch. Files are index file lines in the mount engine's
// reference syntax. ProviderHint and AnalysisHint may be empty.
type Request struct {
	Credential   string
	ProviderHint string
	Files        []string
	AnalysisHint string
}

// Result describes a completed launch. NotifyErr is set when the registries
// were written but the mount engine could not be started or signaled.
type Result struct {
	IndexPath    string
	Provider     string
	SessionID    string
	Refreshable  bool
	AnalysisHint string
	Template     string
	ReturnURL    string
	Notification mount.Notification
	NotifyErr    error
}

// Launch resolves and decodes the credential before touching the filesystem,
// so a rejected hint or credential leaves no trace. It then allocates and
// writes the index file, records refresh metadata ahead of the mount line,
// and tells the mount engine about the change.
func (o *Orchestrator) Launch(ctx context.Context, req Request) (*Result, error) {
	kind := req.ProviderHint
	if kind == "" {
		kind = o.deps.DefaultProvider
	}
	provider, err := o.deps.Providers.Get(kind)
	if err != nil {
		o.deps.Metrics.Launch(kind, "rejected")
		return nil, fmt.Errorf("[Orchestrator.Launch] %w", err)
	}
	if err := validateFiles(req.Files); err != nil {
		o.deps.Metrics.Launch(kind, "rejected")
		return nil, fmt.Errorf("[Orchestrator.Launch] %w", err)
	}

	tok, err := provider.Decode(ctx, req.Credential)
	if err != nil {
		o.deps.Metrics.Launch(kind, "rejected")
		return nil, fmt.Errorf("[Orchestrator.Launch] %w", err)
	}

	res := &Result{Provider: kind, SessionID: tok.SessionID, Refreshable: tok.Refresh != nil}
	err = fileutil.WithLock(o.deps.Paths.LockFile, func() error {
		id, err := o.deps.Mounts.AllocateIndexID()
		if err != nil {
			return err
		}
		path, err := o.deps.Mounts.WriteIndexFile(id, req.Files)
		if err != nil {
			return err
		}
		res.IndexPath = path

		if tok.Refresh != nil {
			if err := o.deps.Refresh.Record(refresh.Entry{
				IndexPath:    path,
				SessionID:    tok.SessionID,
				ProviderKind: kind,
				Info:         *tok.Refresh,
			}); err != nil {
				return err
			}
		}
		return o.deps.Mounts.Append(path, tok.Headers)
	})
	if err != nil {
		o.deps.Metrics.Launch(kind, "error")
		return nil, fmt.Errorf("[Orchestrator.Launch] %w", err)
	}
	log.Info().Str("index_path", res.IndexPath).Str("provider", kind).Bool("refreshable", res.Refreshable).Msg("Index file registered")

	res.Notification, res.NotifyErr = o.deps.Notifier.Notify(ctx, o.deps.Mounts.ConfigPath(), o.deps.Paths.MountPoint)
	if res.NotifyErr != nil {
		log.Err(res.NotifyErr).Str("index_path", res.IndexPath).Msg("Mount engine was not notified of new index file")
	}

	res.AnalysisHint = req.AnalysisHint
	if !o.deps.Classifiers.Known(res.AnalysisHint) {
		res.AnalysisHint = o.classify(req.Files)
	}
	res.Template, err = o.deps.Classifiers.Materialize(res.AnalysisHint, o.deps.Paths.AnalysisDir)
	if err != nil {
		o.deps.Metrics.Launch(kind, "error")
		return nil, fmt.Errorf("[Orchestrator.Launch] %w", err)
	}
	res.ReturnURL = FollowUpURL(o.deps.BaseURL, res.Template)

	o.deps.Metrics.Launch(kind, "ok")
	return res, nil
}

// classify tries every file entry in order and returns the hint of the first
// one a classifier recognizes, or DefaultHint.
func (o *Orchestrator) classify(files []string) string {
	for _, line := range files {
		local, ok := LocalPath(o.deps.Paths.MountPoint, line)
		if !ok {
			continue
		}
		hint, matched, err := o.deps.Classifiers.ClassifyFile(local)
		if err != nil {
			log.Warn().Err(err).Str("path", local).Msg("Mounted file could not be classified")
			continue
		}
		if matched {
			log.Debug().Str("path", local).Str("analysis_hint", hint).Msg("Analysis type detected")
			return hint
		}
	}
	return analysis.DefaultHint
}

func validateFiles(files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files to mount", apperrors.ErrInvalidRequest)
	}
	for i, f := range files {
		if strings.TrimSpace(f) == "" || strings.ContainsAny(f, "\r\n") {
			return fmt.Errorf("%w: file entry %d is empty or spans lines", apperrors.ErrInvalidRequest, i)
		}
	}
	return nil
}
