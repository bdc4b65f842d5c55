package config

import "path/filepath"

// Fixed names relative to the storage root.
const (
	MountSubpath    = "remote"
	AnalysisSubpath = "analysis"
	stateSubpath    = ".autolaunch"
)

// Paths holds every filesystem location the service touches. All of them
// are derived from a single root directory.
type Paths struct {
	Root          string
	MountPoint    string
	AnalysisDir   string
	IndexDir      string
	MountConfig   string
	RefreshConfig string
	LockFile      string
}

func NewPaths(root string) Paths {
	state := filepath.Join(root, stateSubpath)
	return Paths{
		Root:          root,
		MountPoint:    filepath.Join(root, MountSubpath),
		AnalysisDir:   filepath.Join(root, AnalysisSubpath),
		IndexDir:      filepath.Join(state, "index"),
		MountConfig:   filepath.Join(state, "urlfs.config"),
		RefreshConfig: filepath.Join(state, "refresh.config"),
		LockFile:      filepath.Join(state, "lock"),
	}
}
