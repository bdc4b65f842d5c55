// Package refresh keeps mounted credentials alive. It stores per index file
// refresh metadata and applies identity provider callbacks to both the
// refresh registry and the mount config.
package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-autolaunch/auth"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/fileutil"
	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/rs/zerolog/log"
)

// Deps are the stores and collaborators a Manager works on. Every field
// except Metrics is required.
type Deps struct {
	Refresh    *Registry
	Mounts     *mount.Registry
	Providers  *auth.Registry
	Notifier   *mount.Notifier
	MountPoint string
	LockFile   string
	Metrics    *metrics.Metrics
}

// Manager starts and completes re-authentication for mounted index files.
type Manager struct {
	deps Deps
}

func NewManager(deps Deps) (*Manager, error) {
	if deps.Refresh == nil {
		return nil, errors.New("[NewManager] refresh registry is required")
	}
	if deps.Mounts == nil {
		return nil, errors.New("[NewManager] mount registry is required")
	}
	if deps.Providers == nil {
		return nil, errors.New("[NewManager] provider registry is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("[NewManager] notifier is required")
	}
	if deps.MountPoint == "" || deps.LockFile == "" {
		return nil, errors.New("[NewManager] mount point and lock file are required")
	}
	return &Manager{deps: deps}, nil
}

// Refreshed is the outcome for one index file. NewSessionID is empty when the
// provider issued no further refresh metadata and the entry was removed.
type Refreshed struct {
	IndexPath    string
	ProviderKind string
	NewSessionID string
}

// Result reports an applied refresh. NotifyErr is set when the registries
// were updated but the mount engine could not be told.
type Result struct {
	Refreshed    []Refreshed
	Notification mount.Notification
	NotifyErr    error
}

// Start returns the descriptor the browser follows to re-authenticate the
// session.
func (m *Manager) Start(sessionID string) (*auth.RefreshDescriptor, error) {
	entry, err := m.deps.Refresh.Lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("[Manager.Start] %w", err)
	}
	if entry.Info.InitialRedirect == nil || entry.Info.InitialRedirect.Endpoint == "" {
		return nil, fmt.Errorf("[Manager.Start] %w: %s", apperrors.ErrNoRefresh, entry.IndexPath)
	}
	return entry.Info.InitialRedirect, nil
}

// Apply completes a refresh for every entry recorded under sessionID. All
// provider exchanges happen before anything is written, so a failed exchange
// leaves both registries untouched. Each entry is rewritten in the refresh
// registry first and the mount config second; the engine is notified once
// for the whole batch.
func (m *Manager) Apply(ctx context.Context, sessionID string, req auth.RefreshRequest) (*Result, error) {
	res := &Result{}

	err := fileutil.WithLock(m.deps.LockFile, func() error {
		entries, err := m.deps.Refresh.LookupAll(sessionID)
		if err != nil {
			return err
		}

		tokens := make([]*auth.Token, len(entries))
		for i, e := range entries {
			tok, err := m.exchange(ctx, e, req)
			if err != nil {
				return err
			}
			tokens[i] = tok
		}

		for i, e := range entries {
			tok := tokens[i]
			var next *Entry
			if tok.Refresh != nil {
				next = &Entry{IndexPath: e.IndexPath, SessionID: tok.SessionID, ProviderKind: e.ProviderKind, Info: *tok.Refresh}
			}
			if err := m.deps.Refresh.Replace(e.IndexPath, next); err != nil {
				return err
			}
			if err := m.deps.Mounts.Rewrite(e.IndexPath, tok.Headers); err != nil {
				return err
			}

			r := Refreshed{IndexPath: e.IndexPath, ProviderKind: e.ProviderKind}
			if next != nil {
				r.NewSessionID = next.SessionID
			}
			res.Refreshed = append(res.Refreshed, r)
			m.deps.Metrics.Refresh(e.ProviderKind, "ok")
			log.Info().Str("index_path", e.IndexPath).Str("provider", e.ProviderKind).Bool("renewable", next != nil).Msg("Credential refreshed")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("[Manager.Apply] %w", err)
	}

	res.Notification, res.NotifyErr = m.deps.Notifier.Notify(ctx, m.deps.Mounts.ConfigPath(), m.deps.MountPoint)
	if res.NotifyErr != nil {
		log.Err(res.NotifyErr).Msg("Mount engine was not notified of refreshed credentials")
	}
	return res, nil
}

func (m *Manager) exchange(ctx context.Context, e Entry, req auth.RefreshRequest) (*auth.Token, error) {
	provider, err := m.deps.Providers.Get(e.ProviderKind)
	if err != nil {
		m.deps.Metrics.Refresh(e.ProviderKind, "error")
		return nil, err
	}
	tok, err := provider.Refresh(ctx, req, e.Info.Clone())
	if err != nil {
		m.deps.Metrics.Refresh(e.ProviderKind, "error")
		return nil, fmt.Errorf("%s: %w", e.IndexPath, err)
	}
	return tok, nil
}
