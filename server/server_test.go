package server_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jrsteele09/go-autolaunch/analysis"
	"github.com/jrsteele09/go-autolaunch/auth"
	"github.com/jrsteele09/go-autolaunch/internal/config"
	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/jrsteele09/go-autolaunch/launch"
	"github.com/jrsteele09/go-autolaunch/mount"
	"github.com/jrsteele09/go-autolaunch/mount/enginefake"
	"github.com/jrsteele09/go-autolaunch/refresh"
	"github.com/jrsteele09/go-autolaunch/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetPort() string     { return ":0" }
func (c testConfig) GetAppName() string  { return "autolaunch" }
func (c testConfig) GetEnv() string      { return "TEST" }
func (c testConfig) GetBaseURL() string  { return c.baseURL }
func (c testConfig) GetLogLevel() string { return "debug" }

type fixture struct {
	paths   config.Paths
	engine  *enginefake.FakeEngine
	mounts  *mount.Registry
	refresh *refresh.Registry
	handler http.Handler
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := &fixture{
		paths:   paths,
		engine:  enginefake.NewFakeEngine(),
		mounts:  mount.NewRegistry(paths.IndexDir, paths.MountConfig),
		refresh: refresh.NewRegistry(paths.RefreshConfig),
	}
	providers := auth.NewRegistry(auth.DefaultProviders()...)
	notifier := mount.NewNotifier(f.engine, m)

	launcher, err := launch.NewOrchestrator(launch.Deps{
		Providers:   providers,
		Classifiers: analysis.NewRegistry(fstest.MapFS{"MPMS-CW.ipynb": {Data: []byte("{}")}}, analysis.DefaultClassifiers()...),
		Mounts:      f.mounts,
		Refresh:     f.refresh,
		Notifier:    notifier,
		Paths:       paths,
		BaseURL:     baseURL,
		Metrics:     m,
	})
	require.NoError(t, err)
	refresher, err := refresh.NewManager(refresh.Deps{
		Refresh:    f.refresh,
		Mounts:     f.mounts,
		Providers:  providers,
		Notifier:   notifier,
		MountPoint: paths.MountPoint,
		LockFile:   paths.LockFile,
		Metrics:    m,
	})
	require.NoError(t, err)

	s, err := server.New(testConfig{baseURL: baseURL}, launcher, refresher, reg)
	require.NoError(t, err)
	f.handler = s
	return f
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.URLEncoding.EncodeToString(data)
}

func launchQuery(t *testing.T, extra url.Values) string {
	q := url.Values{}
	q.Set("auth_token", encode(t, map[string]any{
		"token":                   "abc",
		"refresh_endpoint":        "https://idp/auth",
		"refresh_endpoint_params": map[string]string{"client_id": "x"},
	}))
	q.Set("files", encode(t, []string{"F\t/data/run1.dat"}))
	for k, v := range extra {
		q[k] = v
	}
	return q.Encode()
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["error_description"])
	return body["error"]
}

func TestLaunchRedirects(t *testing.T) {
	f := newFixture(t, "/user/ada/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/user/ada/autolaunch?"+launchQuery(t, nil), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/user/ada/lab/", rec.Header().Get("Location"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	e, err := f.mounts.Lookup(f.mounts.IndexPath(0))
	require.NoError(t, err)
	require.Equal(t, []string{"X-Auth-Access-Token: abc"}, e.Headers)
}

func TestLaunchReturnURL(t *testing.T) {
	f := newFixture(t, "/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?"+launchQuery(t, url.Values{
		"get_return_url": {"1"},
		"analysis_hint":  {"MPMS-CW"},
	}), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"return_url": "/lab/tree/analysis/MPMS-CW.ipynb"}`, rec.Body.String())
}

func TestLaunchErrors(t *testing.T) {
	f := newFixture(t, "/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?"+launchQuery(t, url.Values{"auth_token_hint": {"kerberos"}}), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "configuration_error", decodeError(t, rec))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?"+launchQuery(t, url.Values{"files": {"!!"}}), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "decode_error", decodeError(t, rec))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?auth_token=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeError(t, rec))

	require.NoFileExists(t, f.paths.MountConfig)
}

func TestRefreshRoundTrip(t *testing.T) {
	f := newFixture(t, "/")
	rec := f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?"+launchQuery(t, nil), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	entries, err := f.refresh.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	sessionID := entries[0].SessionID

	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth?id="+sessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	require.Contains(t, page, `method="post"`)
	require.Contains(t, page, `action="https://idp/auth"`)
	require.Contains(t, page, `name="client_id" value="x"`)
	require.Contains(t, page, `name="state" value="`+sessionID+`"`)
	require.Contains(t, page, `name="redirect_uri" value="http://example.com/autolaunch/refresh-auth/callback"`)

	form := url.Values{"state": {sessionID}, "code": {"xyz"}}
	req := httptest.NewRequest(http.MethodPost, "/autolaunch/refresh-auth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "window.close()")

	data, err := os.ReadFile(f.paths.MountConfig)
	require.NoError(t, err)
	require.Equal(t, f.mounts.IndexPath(0)+"\tX-Auth-Access-Token: xyz\n", string(data))
	require.Equal(t, 1, f.engine.Reloads())

	// The old session id was rotated away.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth/callback?state="+sessionID+"&code=again", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec))
}

func TestRefreshStartErrors(t *testing.T) {
	f := newFixture(t, "/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth?id=forged", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.refresh.Record(refresh.Entry{IndexPath: f.mounts.IndexPath(0), SessionID: "terminal", ProviderKind: auth.PolyauthKind}))
	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth?id=terminal", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "no_refresh", decodeError(t, rec))
}

func TestRefreshCallbackErrors(t *testing.T) {
	f := newFixture(t, "/")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth/callback?state=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/autolaunch/refresh-auth/callback?error=access_denied&error_description=nope", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "authorization_failed", decodeError(t, rec))

	require.Zero(t, f.engine.Reloads())
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, "/")
	f.do(httptest.NewRequest(http.MethodGet, "/autolaunch?"+launchQuery(t, nil), nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `autolaunch_launches_total{outcome="ok",provider="polyauth"} 1`)
	require.Contains(t, string(body), "autolaunch_mount_starts_total 1")
}
