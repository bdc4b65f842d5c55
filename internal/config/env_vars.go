package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
)

const (
	portEnvVar           = "PORT"
	appNameVar           = "APP_NAME"
	environmentVar       = "ENV"
	baseURLVar           = "BASE_URL"
	logLevelVar          = "LOG_LEVEL"
	rootDirVar           = "ROOT_DIR"
	engineBinaryVar      = "MOUNT_ENGINE_BINARY"
	engineProcessVar     = "MOUNT_ENGINE_PROCESS"
	engineTimeoutVar     = "MOUNT_ENGINE_TIMEOUT"
	templateDirVar       = "ANALYSIS_TEMPLATE_DIR"
	defaultProviderVar   = "DEFAULT_AUTH_PROVIDER"
	defaultEngineTimeout = 30 * time.Second
)

// EnvVars resolves each setting from the environment first, then the loaded
// koanf tree, then a compiled default.
type EnvVars struct {
	k *koanf.Koanf
}

var _ EnvConfig = EnvVars{}
var _ StorageConfig = EnvVars{}
var _ MountConfig = EnvVars{}
var _ AnalysisConfig = EnvVars{}
var _ AuthConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.lookup(portEnvVar, "app.port", "8888")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.lookup(appNameVar, "app.name", "Autolaunch")
}

func (e EnvVars) GetEnv() string {
	return e.lookup(environmentVar, "app.env", "DEV")
}

// GetBaseURL returns the base path the host server is mounted under
// (e.g., "/user/alice/"). It always ends in a slash.
func (e EnvVars) GetBaseURL() string {
	base := e.lookup(baseURLVar, "app.base_url", "/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (e EnvVars) GetLogLevel() string {
	return e.lookup(logLevelVar, "app.log_level", "info")
}

func (e EnvVars) GetRootDir() string {
	return expandHome(e.lookup(rootDirVar, "storage.root_dir", "~/"))
}

func (e EnvVars) GetPaths() Paths {
	return NewPaths(e.GetRootDir())
}

func (e EnvVars) GetMountEngineBinary() string {
	return e.lookup(engineBinaryVar, "mount.engine_binary", "/urlfs/src/mount.urlfs")
}

func (e EnvVars) GetMountEngineProcessName() string {
	return e.lookup(engineProcessVar, "mount.engine_process", "mount.urlfs")
}

func (e EnvVars) GetMountEngineTimeout() time.Duration {
	d, err := time.ParseDuration(e.lookup(engineTimeoutVar, "mount.engine_timeout", ""))
	if err != nil || d <= 0 {
		return defaultEngineTimeout
	}
	return d
}

func (e EnvVars) GetAnalysisTemplateDir() string {
	return e.lookup(templateDirVar, "analysis.template_dir", "/autolaunch/notebooks")
}

func (e EnvVars) GetDefaultAuthProvider() string {
	return e.lookup(defaultProviderVar, "auth.default_provider", "polyauth")
}

func (e EnvVars) lookup(envVar, key, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if e.k != nil && e.k.Exists(key) {
		if value := e.k.String(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
