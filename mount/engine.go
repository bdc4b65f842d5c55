package mount

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Engine controls the external mount engine process. The engine reads the
// mount config itself; this side only starts it or tells running instances
// to re-read the config.
type Engine interface {
	// IsMounted reports whether mountPoint is an active mount.
	IsMounted(mountPoint string) (bool, error)
	// Start mounts configPath at mountPoint.
	Start(ctx context.Context, configPath, mountPoint string) error
	// ReloadAll signals every running engine instance to reload and returns
	// how many were signaled. Delivery is not acknowledged.
	ReloadAll(ctx context.Context) (int, error)
}

// Notification describes what Notify did.
type Notification struct {
	Started  bool
	Signaled int
}

// Notifier makes the mount engine pick up config changes: it starts the
// engine when the mount point is not active and signals a reload otherwise.
type Notifier struct {
	engine  Engine
	metrics *metrics.Metrics
}

func NewNotifier(engine Engine, m *metrics.Metrics) *Notifier {
	return &Notifier{engine: engine, metrics: m}
}

// Notify returns an ErrExternalProcess error when the engine cannot be
// started, checked or signaled. Registry state on disk is never rolled back.
func (n *Notifier) Notify(ctx context.Context, configPath, mountPoint string) (Notification, error) {
	mounted, err := n.engine.IsMounted(mountPoint)
	if err != nil {
		n.metrics.EngineError()
		return Notification{}, fmt.Errorf("[Notifier.Notify] mount check %s: %w", mountPoint, apperrors.Wrap(apperrors.ErrExternalProcess, err))
	}

	if !mounted {
		if err := os.MkdirAll(mountPoint, 0o755); err != nil {
			return Notification{}, fmt.Errorf("[Notifier.Notify] %w", apperrors.Wrap(apperrors.ErrIO, err))
		}
		if err := n.engine.Start(ctx, configPath, mountPoint); err != nil {
			n.metrics.EngineError()
			return Notification{}, fmt.Errorf("[Notifier.Notify] start: %w", apperrors.Wrap(apperrors.ErrExternalProcess, err))
		}
		n.metrics.MountStarted()
		log.Info().Str("mount_point", mountPoint).Msg("Mount engine started")
		return Notification{Started: true}, nil
	}

	signaled, err := n.engine.ReloadAll(ctx)
	n.metrics.Reloaded(signaled)
	if err != nil {
		n.metrics.EngineError()
		return Notification{Signaled: signaled}, fmt.Errorf("[Notifier.Notify] reload: %w", apperrors.Wrap(apperrors.ErrExternalProcess, err))
	}
	if signaled == 0 {
		log.Warn().Str("mount_point", mountPoint).Msg("Mount point is active but no mount engine instance was signaled")
	} else {
		log.Info().Str("mount_point", mountPoint).Int("signaled", signaled).Msg("Mount engine reload signaled")
	}
	return Notification{Signaled: signaled}, nil
}
