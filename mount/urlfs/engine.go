// Package urlfs drives the real mount engine: a FUSE helper binary that is
// started once per mount point and re-reads its config on SIGUSR1.
package urlfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/moby/sys/mountinfo"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

const ReloadSignal = unix.SIGUSR1

type Engine struct {
	binary      string
	processName string
	timeout     time.Duration
}

var _ mount.Engine = (*Engine)(nil)

// New returns an engine that starts binary and finds running instances by
// processName. timeout bounds every start; zero means no bound.
func New(binary, processName string, timeout time.Duration) *Engine {
	return &Engine{binary: binary, processName: processName, timeout: timeout}
}

func (e *Engine) IsMounted(mountPoint string) (bool, error) {
	mounted, err := mountinfo.Mounted(mountPoint)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return mounted, nil
}

// Start runs the mount helper, which daemonizes once the mount is up.
func (e *Engine) Start(ctx context.Context, configPath, mountPoint string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary, configPath, mountPoint)
	// A daemonized child may keep the output pipe open after a kill.
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The helper exited cleanly; its daemon still holds the pipe.
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out after %s: %w", e.binary, e.timeout, ctx.Err())
		}
		return fmt.Errorf("%+v, %s", err, string(output))
	}
	return nil
}

// ReloadAll sends the reload signal to every process named processName.
// Processes that exit while being enumerated are skipped.
func (e *Engine) ReloadAll(ctx context.Context) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	self := int32(os.Getpid())
	signaled := 0
	var errs []error
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name != e.processName {
			continue
		}
		if err := p.SendSignalWithContext(ctx, ReloadSignal); err != nil {
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			errs = append(errs, fmt.Errorf("pid %d: %w", p.Pid, err))
			continue
		}
		log.Debug().Int32("pid", p.Pid).Str("process", e.processName).Msg("Reload signal sent")
		signaled++
	}

	if len(errs) > 0 {
		return signaled, errors.Join(errs...)
	}
	return signaled, nil
}
