package enginefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-autolaunch/mount"
)

var _ mount.Engine = (*FakeEngine)(nil)

type StartCall struct {
	ConfigPath string
	MountPoint string
}

// FakeEngine records starts and reloads. A started mount point reports as
// mounted from then on, and every reload signals Instances processes.
type FakeEngine struct {
	Instances int
	StartErr  error
	ReloadErr error

	mounted map[string]bool
	starts  []StartCall
	reloads int
	lock    sync.Mutex
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{Instances: 1, mounted: make(map[string]bool)}
}

func (e *FakeEngine) IsMounted(mountPoint string) (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.mounted[mountPoint], nil
}

func (e *FakeEngine) Start(_ context.Context, configPath, mountPoint string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	e.starts = append(e.starts, StartCall{ConfigPath: configPath, MountPoint: mountPoint})
	e.mounted[mountPoint] = true
	return nil
}

func (e *FakeEngine) ReloadAll(context.Context) (int, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.ReloadErr != nil {
		return 0, e.ReloadErr
	}
	e.reloads++
	return e.Instances, nil
}

// SetMounted marks mountPoint as already mounted.
func (e *FakeEngine) SetMounted(mountPoint string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.mounted[mountPoint] = true
}

func (e *FakeEngine) Starts() []StartCall {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]StartCall(nil), e.starts...)
}

func (e *FakeEngine) Reloads() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.reloads
}
