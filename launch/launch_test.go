package launch_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/jrsteele09/go-autolaunch/analysis"
	"github.com/jrsteele09/go-autolaunch/auth"
	"github.com/jrsteele09/go-autolaunch/internal/config"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"github.com/jrsteele09/go-autolaunch/launch"
	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/jrsteele09/go-autolaunch/mount/enginefake"
	"github.com/jrsteele09/go-autolaunch/refresh"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	paths        config.Paths
	engine       *enginefake.FakeEngine
	mounts       *mount.Registry
	refresh      *refresh.Registry
	orchestrator *launch.Orchestrator
	manager      *refresh.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	f := &fixture{
		paths:   paths,
		engine:  enginefake.NewFakeEngine(),
		mounts:  mount.NewRegistry(paths.IndexDir, paths.MountConfig),
		refresh: refresh.NewRegistry(paths.RefreshConfig),
	}
	providers := auth.NewRegistry(auth.DefaultProviders()...)
	notifier := mount.NewNotifier(f.engine, nil)
	templates := fstest.MapFS{
		"PPMS-CW.ipynb": {Data: []byte(`{"cells": ["ppms"]}`)},
		"MPMS-CW.ipynb": {Data: []byte(`{"cells": ["mpms"]}`)},
	}

	o, err := launch.NewOrchestrator(launch.Deps{
		Providers:   providers,
		Classifiers: analysis.NewRegistry(templates, analysis.DefaultClassifiers()...),
		Mounts:      f.mounts,
		Refresh:     f.refresh,
		Notifier:    notifier,
		Paths:       paths,
		BaseURL:     "/user/ada",
	})
	require.NoError(t, err)
	f.orchestrator = o

	m, err := refresh.NewManager(refresh.Deps{
		Refresh:    f.refresh,
		Mounts:     f.mounts,
		Providers:  providers,
		Notifier:   notifier,
		MountPoint: paths.MountPoint,
		LockFile:   paths.LockFile,
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func polyauthCredential(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"token":                   "abc",
		"refresh_endpoint":        "https://idp/auth",
		"refresh_endpoint_params": map[string]string{"client_id": "x"},
	})
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(data)
}

// snapshot maps every path under root to its content.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			out[p] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[p] = string(data)
		return nil
	}))
	return out
}

func TestLaunchThenRefreshCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orchestrator.Launch(ctx, launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/run1.dat"},
	})
	require.NoError(t, err)
	require.NoError(t, res.NotifyErr)
	require.Equal(t, f.mounts.IndexPath(0), res.IndexPath)
	require.Equal(t, "0.index", filepath.Base(res.IndexPath))
	require.True(t, res.Refreshable)
	require.True(t, res.Notification.Started)

	index, err := os.ReadFile(res.IndexPath)
	require.NoError(t, err)
	require.Equal(t, "F\t/data/run1.dat\n", string(index))

	mountCfg, err := os.ReadFile(f.paths.MountConfig)
	require.NoError(t, err)
	require.Equal(t, res.IndexPath+"\tX-Auth-Access-Token: abc\n", string(mountCfg))

	refreshCfg, err := os.ReadFile(f.paths.RefreshConfig)
	require.NoError(t, err)
	line := regexp.MustCompile(`^(\S+)\t([0-9a-f-]{36})\tpolyauth\t(\{"initial_redirect":.*\})\n$`).FindStringSubmatch(string(refreshCfg))
	require.NotNil(t, line, string(refreshCfg))
	require.Equal(t, res.IndexPath, line[1])
	require.Equal(t, res.SessionID, line[2])
	require.JSONEq(t, `{"initial_redirect":{"method":"POST","endpoint":"https://idp/auth","params":{"client_id":"x"}}}`, line[3])

	applied, err := f.manager.Apply(ctx, res.SessionID, auth.RefreshRequest{Code: "xyz"})
	require.NoError(t, err)
	require.NoError(t, applied.NotifyErr)

	mountCfg, err = os.ReadFile(f.paths.MountConfig)
	require.NoError(t, err)
	require.Equal(t, res.IndexPath+"\tX-Auth-Access-Token: xyz\n", string(mountCfg))
	require.Equal(t, 1, f.engine.Reloads())
	require.Len(t, f.engine.Starts(), 1)
}

func TestLaunchUnknownProviderWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/run1.dat"},
	})
	require.NoError(t, err)
	before := snapshot(t, f.paths.Root)

	_, err = f.orchestrator.Launch(context.Background(), launch.Request{
		Credential:   polyauthCredential(t),
		ProviderHint: "kerberos",
		Files:        []string{"F\t/data/run2.dat"},
	})
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.Equal(t, before, snapshot(t, f.paths.Root))
}

func TestLaunchRejectedInputWritesNothing(t *testing.T) {
	f := newFixture(t)
	before := snapshot(t, f.paths.Root)

	_, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: "%%%not-base64",
		Files:      []string{"F\t/data/run1.dat"},
	})
	require.ErrorIs(t, err, apperrors.ErrDecode)

	_, err = f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/run1.dat\nF\t/data/run2.dat"},
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	require.Equal(t, before, snapshot(t, f.paths.Root))
	require.Empty(t, f.engine.Starts())
}

func TestLaunchWithoutRefreshRecordsNoRefreshEntry(t *testing.T) {
	f := newFixture(t)

	res, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential:   "raw-token",
		ProviderHint: auth.LegacyKind,
		Files:        []string{"F\t/data/run1.dat"},
	})
	require.NoError(t, err)
	require.False(t, res.Refreshable)
	require.NoFileExists(t, f.paths.RefreshConfig)

	e, err := f.mounts.Lookup(res.IndexPath)
	require.NoError(t, err)
	require.Equal(t, []string{"X-Auth-Access-Token: raw-token"}, e.Headers)
}

func TestLaunchClassifiesMountedFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.paths.MountPoint, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.paths.MountPoint, "run1.dat"), []byte("unrelated\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.paths.MountPoint, "run2.dat"), []byte("[Header]\nTITLE,PPMS ACMS II\n"), 0o644))

	res, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/missing.dat", "F\t/data/run1.dat", "F\thttps://store/data/run2.dat?v=1"},
	})
	require.NoError(t, err)
	require.Equal(t, "PPMS-CW", res.AnalysisHint)
	require.Equal(t, "PPMS-CW.ipynb", res.Template)
	require.Equal(t, "/user/ada/lab/tree/analysis/PPMS-CW.ipynb", res.ReturnURL)

	info, err := os.Stat(filepath.Join(f.paths.AnalysisDir, "PPMS-CW.ipynb"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}

func TestLaunchAnalysisHintOverride(t *testing.T) {
	f := newFixture(t)

	res, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential:   polyauthCredential(t),
		Files:        []string{"F\t/data/run1.dat"},
		AnalysisHint: "MPMS-CW",
	})
	require.NoError(t, err)
	require.Equal(t, "MPMS-CW.ipynb", res.Template)

	res, err = f.orchestrator.Launch(context.Background(), launch.Request{
		Credential:   polyauthCredential(t),
		Files:        []string{"F\t/data/run1.dat"},
		AnalysisHint: "Unheard-Of",
	})
	require.NoError(t, err)
	require.Equal(t, analysis.DefaultHint, res.AnalysisHint)
	require.Empty(t, res.Template)
	require.Equal(t, "/user/ada/lab/", res.ReturnURL)
	require.Equal(t, "1.index", filepath.Base(res.IndexPath))
}

func TestLaunchReportsEngineFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.StartErr = errors.New("fuse: device not found")

	res, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/run1.dat"},
	})
	require.NoError(t, err)
	require.ErrorIs(t, res.NotifyErr, apperrors.ErrExternalProcess)

	_, err = f.mounts.Lookup(res.IndexPath)
	require.NoError(t, err)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)

	res, err := f.orchestrator.Launch(context.Background(), launch.Request{
		Credential: polyauthCredential(t),
		Files:      []string{"F\t/data/run1.dat"},
	})
	require.NoError(t, err)

	report, err := f.orchestrator.Reconcile()
	require.NoError(t, err)
	require.True(t, report.Consistent())

	orphan, err := f.mounts.WriteIndexFile(1, []string{"F\t/data/run2.dat"})
	require.NoError(t, err)
	require.NoError(t, f.refresh.Record(refresh.Entry{IndexPath: f.mounts.IndexPath(2), SessionID: "stale", ProviderKind: auth.PolyauthKind}))
	require.NoError(t, f.mounts.Append(f.mounts.IndexPath(3), nil))
	before := snapshot(t, f.paths.Root)

	report, err = f.orchestrator.Reconcile()
	require.NoError(t, err)
	require.False(t, report.Consistent())
	require.Equal(t, []string{orphan}, report.OrphanIndexFiles)
	require.Equal(t, []string{f.mounts.IndexPath(2)}, report.RefreshWithoutMount)
	require.Equal(t, []string{f.mounts.IndexPath(3)}, report.MountWithoutIndex)
	require.NotContains(t, report.OrphanIndexFiles, res.IndexPath)
	require.Equal(t, before, snapshot(t, f.paths.Root))
}

func TestLocalPathAndFollowUpURL(t *testing.T) {
	p, ok := launch.LocalPath("/home/u/remote", "F\t/data/run1.dat")
	require.True(t, ok)
	require.Equal(t, "/home/u/remote/run1.dat", p)

	_, ok = launch.LocalPath("/home/u/remote", "D\t/data")
	require.False(t, ok)
	_, ok = launch.LocalPath("/home/u/remote", "F")
	require.False(t, ok)

	require.Equal(t, "/lab/", launch.FollowUpURL("/", ""))
	require.Equal(t, "/lab/tree/analysis/MPMS-CW.ipynb", launch.FollowUpURL("/", "MPMS-CW.ipynb"))
}
