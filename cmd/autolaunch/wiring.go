package main

import (
	"os"

	"github.com/jrsteele09/go-autolaunch/analysis"
	"github.com/jrsteele09/go-autolaunch/auth"
	"github.com/jrsteele09/go-autolaunch/internal/config"
	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/jrsteele09/go-autolaunch/launch"
	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/jrsteele09/go-autolaunch/mount/urlfs"
	"github.com/jrsteele09/go-autolaunch/refresh"
	"github.com/prometheus/client_golang/prometheus"
)

type app struct {
	paths     config.Paths
	launcher  *launch.Orchestrator
	refresher *refresh.Manager
}

// newApp wires every component against the storage root in c. reg may be
// nil when metrics are not exported.
func newApp(c config.Config, reg prometheus.Registerer) (*app, error) {
	paths := c.GetPaths()
	m := metrics.New(reg)

	providers := auth.NewRegistry(auth.DefaultProviders()...)
	classifiers := analysis.NewRegistry(os.DirFS(c.GetAnalysisTemplateDir()), analysis.DefaultClassifiers()...)
	mounts := mount.NewRegistry(paths.IndexDir, paths.MountConfig)
	refreshes := refresh.NewRegistry(paths.RefreshConfig)
	engine := urlfs.New(c.GetMountEngineBinary(), c.GetMountEngineProcessName(), c.GetMountEngineTimeout())
	notifier := mount.NewNotifier(engine, m)

	launcher, err := launch.NewOrchestrator(launch.Deps{
		Providers:       providers,
		DefaultProvider: c.GetDefaultAuthProvider(),
		Classifiers:     classifiers,
		Mounts:          mounts,
		Refresh:         refreshes,
		Notifier:        notifier,
		Paths:           paths,
		BaseURL:         c.GetBaseURL(),
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}

	refresher, err := refresh.NewManager(refresh.Deps{
		Refresh:    refreshes,
		Mounts:     mounts,
		Providers:  providers,
		Notifier:   notifier,
		MountPoint: paths.MountPoint,
		LockFile:   paths.LockFile,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}

	return &app{paths: paths, launcher: launcher, refresher: refresher}, nil
}
